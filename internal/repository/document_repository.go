package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/oncall-agent/engine/internal/models"
	appErr "github.com/oncall-agent/engine/pkg/errors"
	"gorm.io/gorm"
)

// DocumentRepository persists uploaded documentation files.
type DocumentRepository interface {
	BaseRepository[models.Document]
	ListByRepository(ctx context.Context, repositoryID uuid.UUID) ([]models.Document, error)
	ContentsByRepository(ctx context.Context, repositoryID uuid.UUID) ([]string, error)
}

type documentRepository struct {
	BaseRepository[models.Document]
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{BaseRepository: NewBaseRepository[models.Document](db), db: db}
}

func (r *documentRepository) ListByRepository(ctx context.Context, repositoryID uuid.UUID) ([]models.Document, error) {
	var out []models.Document
	if err := r.db.WithContext(ctx).Where("repository_id = ?", repositoryID).Order("uploaded_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list documents failed")
	}
	return out, nil
}

// ContentsByRepository returns the non-empty text contents of a repository's
// documents, newest first.
func (r *documentRepository) ContentsByRepository(ctx context.Context, repositoryID uuid.UUID) ([]string, error) {
	docs, err := r.ListByRepository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.Content != "" {
			out = append(out, d.Content)
		}
	}
	return out, nil
}
