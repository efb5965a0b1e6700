package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is an uploaded documentation file attached to a repository.
// Content holds the plain text used as analysis context; binary formats are
// stored with empty content.
type Document struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RepositoryID uuid.UUID      `gorm:"type:uuid;index;not null" json:"repository_id" validate:"required"`
	Filename     string         `gorm:"not null" json:"filename" validate:"required"`
	FilePath     string         `gorm:"not null" json:"-"`
	Content      string         `gorm:"type:text" json:"-"`
	FileType     string         `gorm:"type:varchar(16)" json:"file_type"`
	UploadedAt   time.Time      `gorm:"autoCreateTime" json:"uploaded_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
