package repository

import (
	"context"

	"github.com/oncall-agent/engine/internal/models"
	appErr "github.com/oncall-agent/engine/pkg/errors"
	"gorm.io/gorm"
)

// RepositoryRepository persists registered source repositories.
type RepositoryRepository interface {
	BaseRepository[models.Repository]
	List(ctx context.Context) ([]models.Repository, error)
	GetByOwnerName(ctx context.Context, owner, name string, dest *models.Repository) error
	ListMonitored(ctx context.Context) ([]models.Repository, error)
}

type repositoryRepository struct {
	BaseRepository[models.Repository]
	db *gorm.DB
}

func NewRepositoryRepository(db *gorm.DB) RepositoryRepository {
	return &repositoryRepository{BaseRepository: NewBaseRepository[models.Repository](db), db: db}
}

func (r *repositoryRepository) List(ctx context.Context) ([]models.Repository, error) {
	var out []models.Repository
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list repositories failed")
	}
	return out, nil
}

func (r *repositoryRepository) GetByOwnerName(ctx context.Context, owner, name string, dest *models.Repository) error {
	if err := r.db.WithContext(ctx).Where("owner = ? AND name = ?", owner, name).First(dest).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "repository not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get repository failed")
	}
	return nil
}

// ListMonitored returns repositories with a deployment-provider project name,
// i.e. the monitor's target set.
func (r *repositoryRepository) ListMonitored(ctx context.Context) ([]models.Repository, error) {
	var out []models.Repository
	if err := r.db.WithContext(ctx).Where("railway_project_name <> ''").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list monitored repositories failed")
	}
	return out, nil
}
