package services

import (
	"context"
	"strings"
	"time"

	"github.com/huangang/uptask/internal/authz"
	"github.com/huangang/uptask/internal/models"
	"github.com/huangang/uptask/internal/realtime"
	"github.com/huangang/uptask/pkg/logger"
	"github.com/huangang/uptask/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Broadcaster receives task events once the mutation is committed.
type Broadcaster interface {
	Broadcast(ctx context.Context, room, event string, payload interface{}) error
}

// CollaborationService is the only writer of collaborator sets, tasks and
// task completion. Every mutation takes the project's lock, re-reads the
// project inside a transaction and re-checks authorization before writing.
type CollaborationService struct {
	db     *gorm.DB
	locks  *keyedMutex
	events Broadcaster
}

func NewCollaborationService(db *gorm.DB, events Broadcaster) *CollaborationService {
	return &CollaborationService{
		db:     db,
		locks:  newKeyedMutex(),
		events: events,
	}
}

// lockedProject loads a project with a row lock where the dialect has one.
func lockedProject(tx *gorm.DB, projectID uint) (*models.Project, authz.Membership, error) {
	var project models.Project
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&project, projectID).Error; err != nil {
		if isNotFound(err) {
			return nil, authz.Membership{}, errProjectNotFound
		}
		return nil, authz.Membership{}, err
	}
	m, err := loadMembership(tx, &project)
	if err != nil {
		return nil, authz.Membership{}, err
	}
	return &project, m, nil
}

func touchProject(tx *gorm.DB, projectID uint) error {
	return tx.Model(&models.Project{}).Where("id = ?", projectID).Update("updated_at", time.Now().UTC()).Error
}

// taskProjectID resolves the project a task belongs to so the right lock
// can be taken. A task's project never changes.
func (s *CollaborationService) taskProjectID(ctx context.Context, taskID uint) (uint, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Select("id", "project_id").First(&task, taskID).Error; err != nil {
		if isNotFound(err) {
			return 0, errTaskNotFound
		}
		return 0, internal("load task", err)
	}
	return task.ProjectID, nil
}

func loadTask(tx *gorm.DB, taskID uint) (*models.Task, error) {
	var task models.Task
	if err := tx.Preload("CompletedBy").First(&task, taskID).Error; err != nil {
		if isNotFound(err) {
			return nil, errTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (s *CollaborationService) publish(ctx context.Context, projectID uint, event string, task *models.Task) {
	if s.events == nil {
		return
	}
	if err := s.events.Broadcast(ctx, realtime.RoomFor(projectID), event, task); err != nil {
		logger.Warn().Err(err).Str("event", event).Uint("task_id", task.ID).Msg("broadcast failed")
	}
}

// AddCollaborator adds the user registered under email to the project.
func (s *CollaborationService) AddCollaborator(ctx context.Context, projectID, byUser uint, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, response.NewInvalid("email is required")
	}

	unlock := s.locks.Lock(projectID)
	defer unlock()

	var target models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, m, err := lockedProject(tx, projectID)
		if err != nil {
			return err
		}
		if d := authz.Check(byUser, authz.CollaboratorManage, m); !d.Allowed {
			return forbidden(d)
		}

		if err := tx.Where("email = ?", email).First(&target).Error; err != nil {
			if isNotFound(err) {
				return errUserNotFound
			}
			return err
		}
		if target.ID == project.CreatorID {
			return response.NewInvalidOperation("the project creator cannot be a collaborator")
		}
		if m.IsCollaborator(target.ID) {
			return response.NewAlreadyExists("user is already a collaborator")
		}

		if err := tx.Create(&models.ProjectCollaborator{ProjectID: projectID, UserID: target.ID}).Error; err != nil {
			if isDuplicate(err) {
				return response.NewAlreadyExists("user is already a collaborator")
			}
			return err
		}
		return touchProject(tx, projectID)
	})
	if err != nil {
		return nil, internal("add collaborator", err)
	}

	logger.Info().Uint("project_id", projectID).Uint("user_id", target.ID).Uint("by", byUser).Msg("collaborator added")
	return &target, nil
}

// RemoveCollaborator removes userID from the project's collaborators. It
// fails with NotFound when userID is not a current collaborator.
func (s *CollaborationService) RemoveCollaborator(ctx context.Context, projectID, byUser, userID uint) error {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, m, err := lockedProject(tx, projectID)
		if err != nil {
			return err
		}
		if d := authz.Check(byUser, authz.CollaboratorManage, m); !d.Allowed {
			return forbidden(d)
		}
		if !m.IsCollaborator(userID) {
			return response.NewNotFound("user is not a collaborator of this project")
		}

		if err := tx.Where("project_id = ? AND user_id = ?", projectID, userID).
			Delete(&models.ProjectCollaborator{}).Error; err != nil {
			return err
		}
		return touchProject(tx, projectID)
	})
	if err != nil {
		return internal("remove collaborator", err)
	}

	logger.Info().Uint("project_id", projectID).Uint("user_id", userID).Uint("by", byUser).Msg("collaborator removed")
	return nil
}

// CreateProject makes byUser the creator of a new project.
func (s *CollaborationService) CreateProject(ctx context.Context, byUser uint, req *CreateProjectRequest) (*models.Project, error) {
	req.normalize()
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}

	project := models.Project{
		Name:          req.Name,
		Description:   req.Description,
		Client:        req.Client,
		DueDate:       due,
		CreatorID:     byUser,
		Collaborators: []models.User{},
	}
	if err := s.db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, internal("create project", err)
	}
	return &project, nil
}

// UpdateProject applies the fields present in req. Absent fields keep
// their stored value.
func (s *CollaborationService) UpdateProject(ctx context.Context, projectID, byUser uint, req *UpdateProjectRequest) (*models.Project, error) {
	req.normalize()
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Client != nil {
		updates["client"] = *req.Client
	}
	due, ok, err := patchDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}
	if ok {
		updates["due_date"] = due
	}

	unlock := s.locks.Lock(projectID)
	defer unlock()

	var project models.Project
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, m, err := lockedProject(tx, projectID)
		if err != nil {
			return err
		}
		if d := authz.Check(byUser, authz.ProjectWrite, m); !d.Allowed {
			return forbidden(d)
		}
		if len(updates) > 0 {
			if err := tx.Model(locked).Updates(updates).Error; err != nil {
				return err
			}
		}
		return tx.Preload("Collaborators").First(&project, projectID).Error
	})
	if err != nil {
		return nil, internal("update project", err)
	}
	return &project, nil
}

// DeleteProject removes the project together with its tasks and
// collaborator rows.
func (s *CollaborationService) DeleteProject(ctx context.Context, projectID, byUser uint) error {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, m, err := lockedProject(tx, projectID)
		if err != nil {
			return err
		}
		if d := authz.Check(byUser, authz.ProjectWrite, m); !d.Allowed {
			return forbidden(d)
		}

		res := tx.Where("project_id = ?", projectID).Delete(&models.Task{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		if err := tx.Where("project_id = ?", projectID).Delete(&models.ProjectCollaborator{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Project{}, projectID).Error
	})
	if err != nil {
		return internal("delete project", err)
	}

	logger.Info().Uint("project_id", projectID).Int64("tasks", removed).Uint("by", byUser).Msg("project deleted")
	return nil
}

// CreateTask adds a task to req.ProjectID. Only the creator may do this.
func (s *CollaborationService) CreateTask(ctx context.Context, byUser uint, req *CreateTaskRequest) (*models.Task, error) {
	req.normalize()
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityLow
	}

	unlock := s.locks.Lock(req.ProjectID)
	defer unlock()

	var task *models.Task
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, m, err := lockedProject(tx, req.ProjectID)
		if err != nil {
			return err
		}
		if d := authz.Check(byUser, authz.TaskCreate, m); !d.Allowed {
			return forbidden(d)
		}

		task = &models.Task{
			Name:        req.Name,
			Description: req.Description,
			Priority:    priority,
			DueDate:     due,
			ProjectID:   req.ProjectID,
		}
		if err := tx.Create(task).Error; err != nil {
			return err
		}
		return touchProject(tx, req.ProjectID)
	})
	if err != nil {
		return nil, internal("create task", err)
	}

	s.publish(ctx, task.ProjectID, realtime.EventTaskAdded, task)
	return task, nil
}

// UpdateTask applies the fields present in req. Only the creator may do this.
func (s *CollaborationService) UpdateTask(ctx context.Context, taskID, byUser uint, req *UpdateTaskRequest) (*models.Task, error) {
	req.normalize()
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	due, ok, err := patchDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}
	if ok {
		updates["due_date"] = due
	}

	projectID, err := s.taskProjectID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(projectID)
	defer unlock()

	var task *models.Task
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, m, err := lockedProject(tx, projectID)
		if err != nil {
			return err
		}
		if d := authz.Check(byUser, authz.TaskEdit, m); !d.Allowed {
			return forbidden(d)
		}
		if len(updates) > 0 {
			res := tx.Model(&models.Task{}).Where("id = ?", taskID).Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errTaskNotFound
			}
		}
		task, err = loadTask(tx, taskID)
		return err
	})
	if err != nil {
		return nil, internal("update task", err)
	}

	s.publish(ctx, projectID, realtime.EventTaskEdited, task)
	return task, nil
}

// DeleteTask removes a task and touches its project in one transaction.
// Nothing is applied when either write fails.
func (s *CollaborationService) DeleteTask(ctx context.Context, taskID, byUser uint) (*models.Task, error) {
	projectID, err := s.taskProjectID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(projectID)
	defer unlock()

	var task *models.Task
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, m, err := lockedProject(tx, projectID)
		if err != nil {
			return err
		}
		if d := authz.Check(byUser, authz.TaskDelete, m); !d.Allowed {
			return forbidden(d)
		}

		task, err = loadTask(tx, taskID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&models.Task{}, taskID).Error; err != nil {
			return err
		}
		return touchProject(tx, projectID)
	})
	if err != nil {
		return nil, internal("delete task", err)
	}

	s.publish(ctx, projectID, realtime.EventTaskRemoved, task)
	return task, nil
}

// ToggleTask flips the completion state and records byUser as the last
// modifier, whichever direction the flip goes.
func (s *CollaborationService) ToggleTask(ctx context.Context, taskID, byUser uint) (*models.Task, error) {
	projectID, err := s.taskProjectID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(projectID)
	defer unlock()

	var task *models.Task
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, m, err := lockedProject(tx, projectID)
		if err != nil {
			return err
		}
		if d := authz.Check(byUser, authz.TaskToggle, m); !d.Allowed {
			return forbidden(d)
		}

		res := tx.Model(&models.Task{}).Where("id = ?", taskID).Updates(map[string]interface{}{
			"completed":       gorm.Expr("NOT completed"),
			"completed_by_id": byUser,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errTaskNotFound
		}
		task, err = loadTask(tx, taskID)
		return err
	})
	if err != nil {
		return nil, internal("toggle task", err)
	}

	s.publish(ctx, projectID, realtime.EventTaskCompleted, task)
	return task, nil
}
