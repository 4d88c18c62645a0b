package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/huangang/uptask/internal/authz"
	"github.com/huangang/uptask/internal/models"
	"github.com/huangang/uptask/pkg/response"
	"gorm.io/gorm"
)

type ProjectService struct {
	db *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

type CreateProjectRequest struct {
	Name        string  `json:"name" binding:"required,max=200"`
	Description string  `json:"description" binding:"required"`
	Client      string  `json:"client" binding:"required,max=200"`
	DueDate     *string `json:"due_date"`
}

func (r *CreateProjectRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.Client = strings.TrimSpace(r.Client)
}

// UpdateProjectRequest is a patch: nil fields are left untouched.
type UpdateProjectRequest struct {
	Name        *string `json:"name" binding:"omitnil,min=1,max=200"`
	Description *string `json:"description" binding:"omitnil,min=1"`
	Client      *string `json:"client" binding:"omitnil,min=1,max=200"`
	DueDate     *string `json:"due_date"`
}

func (r *UpdateProjectRequest) normalize() {
	trimPtr(r.Name)
	trimPtr(r.Description)
	trimPtr(r.Client)
}

type SearchCollaboratorRequest struct {
	Email     string `json:"email" binding:"required,email"`
	ProjectID *uint  `json:"project_id"`
}

type AddCollaboratorRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type RemoveCollaboratorRequest struct {
	ID uint `json:"id" binding:"required"`
}

func loadMembership(tx *gorm.DB, project *models.Project) (authz.Membership, error) {
	var ids []uint
	if err := tx.Model(&models.ProjectCollaborator{}).
		Where("project_id = ?", project.ID).
		Pluck("user_id", &ids).Error; err != nil {
		return authz.Membership{}, err
	}
	return authz.Membership{CreatorID: project.CreatorID, Collaborators: ids}, nil
}

// membershipOf loads the project and checks op for caller.
func (s *ProjectService) membershipOf(ctx context.Context, projectID, caller uint, op authz.Operation) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, projectID).Error; err != nil {
		if isNotFound(err) {
			return nil, errProjectNotFound
		}
		return nil, internal("load project", err)
	}

	m, err := loadMembership(s.db.WithContext(ctx), &project)
	if err != nil {
		return nil, internal("load project", err)
	}
	if d := authz.Check(caller, op, m); !d.Allowed {
		return nil, forbidden(d)
	}
	return &project, nil
}

// List returns the projects userID created or collaborates on, without tasks.
func (s *ProjectService) List(ctx context.Context, userID uint) ([]models.Project, error) {
	db := s.db.WithContext(ctx)
	collaborating := db.Model(&models.ProjectCollaborator{}).Select("project_id").Where("user_id = ?", userID)

	projects := []models.Project{}
	if err := db.Preload("Collaborators").
		Where("creator_id = ? OR id IN (?)", userID, collaborating).
		Order("created_at DESC").
		Find(&projects).Error; err != nil {
		return nil, internal("list projects", err)
	}
	return projects, nil
}

// Get returns the project with its collaborators and tasks.
func (s *ProjectService) Get(ctx context.Context, projectID, userID uint) (*models.Project, error) {
	if _, err := s.membershipOf(ctx, projectID, userID, authz.ProjectRead); err != nil {
		return nil, err
	}

	var project models.Project
	if err := s.db.WithContext(ctx).
		Preload("Collaborators").
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Tasks.CompletedBy").
		First(&project, projectID).Error; err != nil {
		if isNotFound(err) {
			return nil, errProjectNotFound
		}
		return nil, internal("load project", err)
	}
	if project.Tasks == nil {
		project.Tasks = []models.Task{}
	}
	return &project, nil
}

// SearchCollaborator looks a user up by email. When a project is named the
// caller must be able to read it.
func (s *ProjectService) SearchCollaborator(ctx context.Context, userID uint, req *SearchCollaboratorRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.ProjectID != nil {
		if _, err := s.membershipOf(ctx, *req.ProjectID, userID, authz.CollaboratorSearch); err != nil {
			return nil, err
		}
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "name", "email").Where("email = ?", req.Email).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, errUserNotFound
		}
		return nil, internal("search user", err)
	}
	return &user, nil
}

// AuthorizeJoin lets a realtime session join a project room only when the
// user can read the project.
func (s *ProjectService) AuthorizeJoin(ctx context.Context, userID uint, room string) error {
	id, err := strconv.ParseUint(room, 10, 64)
	if err != nil || id == 0 {
		return response.NewInvalid("invalid room")
	}
	_, err = s.membershipOf(ctx, uint(id), userID, authz.ProjectRead)
	return err
}
