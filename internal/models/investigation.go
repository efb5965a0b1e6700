package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Investigation statuses. Transitions only move forward:
// pending -> investigating -> completed | failed. Terminal records are never
// mutated again.
const (
	InvestigationPending       = "pending"
	InvestigationInvestigating = "investigating"
	InvestigationCompleted     = "completed"
	InvestigationFailed        = "failed"
)

// Investigation is one incident's end-to-end analysis record, from trigger to
// terminal state. Exactly one pipeline run owns a record at a time.
type Investigation struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RepositoryID   uuid.UUID      `gorm:"type:uuid;index;not null" json:"repository_id" validate:"required"`
	Status         string         `gorm:"type:varchar(32);index;not null" json:"status" validate:"required,oneof=pending investigating completed failed"`
	ErrorMessage   string         `gorm:"type:text" json:"error_message"`
	DeploymentLogs string         `gorm:"type:text" json:"deployment_logs,omitempty"`
	CommitSHA      string         `gorm:"type:varchar(64)" json:"commit_sha,omitempty"`
	RootCause      string         `gorm:"type:text" json:"root_cause,omitempty"`
	SuggestedFix   string         `gorm:"type:text" json:"suggested_fix,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// Terminal reports whether the investigation reached a final state.
func (i *Investigation) Terminal() bool {
	return i.Status == InvestigationCompleted || i.Status == InvestigationFailed
}
