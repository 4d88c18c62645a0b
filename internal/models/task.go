package models

import "time"

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task belongs to exactly one project for its whole lifetime.
type Task struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:200;not null" json:"name"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	Priority      string    `gorm:"size:10;not null;default:low" json:"priority"`
	DueDate       time.Time `json:"due_date"`
	Completed     bool      `gorm:"not null;default:false" json:"completed"`
	ProjectID     uint      `gorm:"index;not null" json:"project_id"`
	CompletedByID *uint     `json:"completed_by_id"`
	CompletedBy   *User     `gorm:"foreignKey:CompletedByID" json:"completed_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Task) TableName() string { return "tasks" }
