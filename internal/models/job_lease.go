package models

import "time"

// JobLease lets one instance at a time run a scheduled job.
type JobLease struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Holder    string    `gorm:"size:100" json:"holder"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (JobLease) TableName() string { return "job_leases" }
