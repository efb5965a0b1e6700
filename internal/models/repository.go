package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is a registered source repository watched for deployment failures.
// RailwayProjectName links it to a deployment-provider project; repositories
// without one are never polled by the monitor.
type Repository struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Owner              string         `gorm:"not null;index:idx_repositories_owner_name,unique" json:"owner" validate:"required"`
	Name               string         `gorm:"not null;index:idx_repositories_owner_name,unique" json:"name" validate:"required"`
	DefaultBranch      string         `gorm:"not null;default:main" json:"default_branch"`
	RailwayProjectName string         `gorm:"type:varchar(255);index" json:"railway_project_name,omitempty"`
	AccessToken        string         `gorm:"type:varchar(255)" json:"-"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}
