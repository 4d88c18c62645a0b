package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/huangang/uptask/internal/models"
	"github.com/huangang/uptask/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const reconcileLease = "reconcile"

// SweepResult counts the rows a sweep removed.
type SweepResult struct {
	OrphanTasks         int64 `json:"orphan_tasks"`
	OrphanCollaborators int64 `json:"orphan_collaborators"`
	CreatorRows         int64 `json:"creator_rows"`
}

func (r SweepResult) Total() int64 {
	return r.OrphanTasks + r.OrphanCollaborators + r.CreatorRows
}

// Reconciler periodically removes rows that break the data model:
// tasks whose project is gone, collaborator rows whose project is gone,
// and collaborator rows naming the project's own creator. A database lease
// keeps concurrent instances from sweeping at the same time.
type Reconciler struct {
	db       *gorm.DB
	schedule string
	holder   string
	leaseTTL time.Duration

	cronScheduler *cron.Cron
	entryID       cron.EntryID
}

func NewReconciler(db *gorm.DB, schedule string) *Reconciler {
	host, _ := os.Hostname()
	return &Reconciler{
		db:       db,
		schedule: schedule,
		holder:   fmt.Sprintf("%s-%s", host, uuid.New().String()[:8]),
		leaseTTL: 5 * time.Minute,
	}
}

func (r *Reconciler) StartScheduler() error {
	r.cronScheduler = cron.New()

	id, err := r.cronScheduler.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.leaseTTL)
		defer cancel()
		if _, err := r.Sweep(ctx); err != nil {
			logger.Error().Err(err).Msg("[Reconcile] sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", r.schedule, err)
	}
	r.entryID = id

	r.cronScheduler.Start()
	logger.Info().Str("schedule", r.schedule).Msg("[Reconcile] Scheduler started")
	return nil
}

func (r *Reconciler) StopScheduler() {
	if r.cronScheduler != nil {
		<-r.cronScheduler.Stop().Done()
	}
}

// Sweep runs one pass if this instance holds the lease.
func (r *Reconciler) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	ok, err := r.acquireLease(ctx)
	if err != nil {
		return result, err
	}
	if !ok {
		logger.Debug().Msg("[Reconcile] lease held elsewhere, skipping")
		return result, nil
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projectIDs := tx.Model(&models.Project{}).Select("id")

		res := tx.Where("project_id NOT IN (?)", projectIDs).Delete(&models.Task{})
		if res.Error != nil {
			return res.Error
		}
		result.OrphanTasks = res.RowsAffected

		res = tx.Where("project_id NOT IN (?)", projectIDs).Delete(&models.ProjectCollaborator{})
		if res.Error != nil {
			return res.Error
		}
		result.OrphanCollaborators = res.RowsAffected

		res = tx.Where("EXISTS (SELECT 1 FROM projects WHERE projects.id = project_collaborators.project_id AND projects.creator_id = project_collaborators.user_id)").
			Delete(&models.ProjectCollaborator{})
		if res.Error != nil {
			return res.Error
		}
		result.CreatorRows = res.RowsAffected
		return nil
	})
	if err != nil {
		return result, err
	}

	if result.Total() > 0 {
		logger.Warn().
			Int64("orphan_tasks", result.OrphanTasks).
			Int64("orphan_collaborators", result.OrphanCollaborators).
			Int64("creator_rows", result.CreatorRows).
			Msg("[Reconcile] repaired inconsistent rows")
	}
	return result, nil
}

// acquireLease takes the lease when it is free, expired or already ours.
func (r *Reconciler) acquireLease(ctx context.Context) (bool, error) {
	db := r.db.WithContext(ctx)
	now := time.Now().UTC()
	expires := now.Add(r.leaseTTL)

	lease := models.JobLease{Name: reconcileLease, Holder: r.holder, ExpiresAt: expires}
	err := db.Create(&lease).Error
	if err == nil {
		return true, nil
	}
	if !isDuplicate(err) {
		return false, err
	}

	res := db.Model(&models.JobLease{}).
		Where("name = ? AND (holder = ? OR expires_at < ?)", reconcileLease, r.holder, now).
		Updates(map[string]interface{}{"holder": r.holder, "expires_at": expires})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
