package services

import (
	"context"
	"strings"

	"github.com/huangang/uptask/internal/authz"
	"github.com/huangang/uptask/internal/models"
	"gorm.io/gorm"
)

type TaskService struct {
	db       *gorm.DB
	projects *ProjectService
}

func NewTaskService(db *gorm.DB, projects *ProjectService) *TaskService {
	return &TaskService{db: db, projects: projects}
}

type CreateTaskRequest struct {
	ProjectID   uint    `json:"project_id" binding:"required"`
	Name        string  `json:"name" binding:"required,max=200"`
	Description string  `json:"description" binding:"required"`
	Priority    string  `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *string `json:"due_date"`
}

func (r *CreateTaskRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.Priority = strings.ToLower(strings.TrimSpace(r.Priority))
}

// UpdateTaskRequest is a patch. The owning project cannot be changed.
type UpdateTaskRequest struct {
	Name        *string `json:"name" binding:"omitnil,min=1,max=200"`
	Description *string `json:"description" binding:"omitnil,min=1"`
	Priority    *string `json:"priority" binding:"omitnil,oneof=low medium high"`
	DueDate     *string `json:"due_date"`
}

func (r *UpdateTaskRequest) normalize() {
	trimPtr(r.Name)
	trimPtr(r.Description)
	if r.Priority != nil {
		p := strings.ToLower(strings.TrimSpace(*r.Priority))
		r.Priority = &p
	}
}

// Get returns a task to the creator or a collaborator of its project.
func (s *TaskService) Get(ctx context.Context, taskID, userID uint) (*models.Task, error) {
	task, err := loadTask(s.db.WithContext(ctx), taskID)
	if err != nil {
		return nil, internal("load task", err)
	}
	if _, err := s.projects.membershipOf(ctx, task.ProjectID, userID, authz.TaskRead); err != nil {
		return nil, err
	}
	return task, nil
}
