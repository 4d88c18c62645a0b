package models

import "time"

// Project is owned by exactly one creator. Collaborators never include the creator.
type Project struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:200;not null" json:"name"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	Client        string    `gorm:"size:200;not null" json:"client"`
	DueDate       time.Time `json:"due_date"`
	CreatorID     uint      `gorm:"index;not null" json:"creator"`
	Collaborators []User    `gorm:"many2many:project_collaborators" json:"collaborators"`
	Tasks         []Task    `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Project) TableName() string { return "projects" }

// ProjectCollaborator is one row of the collaborator relation.
type ProjectCollaborator struct {
	ProjectID uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"primaryKey;index"`
	CreatedAt time.Time
}

func (ProjectCollaborator) TableName() string { return "project_collaborators" }
