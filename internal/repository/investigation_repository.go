package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oncall-agent/engine/internal/models"
	appErr "github.com/oncall-agent/engine/pkg/errors"
	"gorm.io/gorm"
)

// InvestigationRepository persists investigation records. Terminal transitions
// are guarded at the SQL level: a completed or failed record can never be
// flipped again, regardless of caller bugs.
type InvestigationRepository interface {
	BaseRepository[models.Investigation]
	ListRecent(ctx context.Context, limit int) ([]models.Investigation, error)
	ListByRepository(ctx context.Context, repositoryID uuid.UUID) ([]models.Investigation, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, rootCause, suggestedFix string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, rootCause string) error
}

type investigationRepository struct {
	BaseRepository[models.Investigation]
	db *gorm.DB
}

func NewInvestigationRepository(db *gorm.DB) InvestigationRepository {
	return &investigationRepository{BaseRepository: NewBaseRepository[models.Investigation](db), db: db}
}

func (r *investigationRepository) ListRecent(ctx context.Context, limit int) ([]models.Investigation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []models.Investigation
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list investigations failed")
	}
	return out, nil
}

func (r *investigationRepository) ListByRepository(ctx context.Context, repositoryID uuid.UUID) ([]models.Investigation, error) {
	var out []models.Investigation
	if err := r.db.WithContext(ctx).Where("repository_id = ?", repositoryID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list investigations by repository failed")
	}
	return out, nil
}

func (r *investigationRepository) MarkCompleted(ctx context.Context, id uuid.UUID, rootCause, suggestedFix string, completedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Investigation{}).
		Where("id = ? AND status = ?", id, models.InvestigationInvestigating).
		Updates(map[string]any{
			"status":        models.InvestigationCompleted,
			"root_cause":    rootCause,
			"suggested_fix": suggestedFix,
			"completed_at":  completedAt,
		})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "mark investigation completed failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeConflict, "investigation not in investigating state")
	}
	return nil
}

func (r *investigationRepository) MarkFailed(ctx context.Context, id uuid.UUID, rootCause string) error {
	res := r.db.WithContext(ctx).Model(&models.Investigation{}).
		Where("id = ? AND status IN ?", id, []string{models.InvestigationPending, models.InvestigationInvestigating}).
		Updates(map[string]any{
			"status":     models.InvestigationFailed,
			"root_cause": rootCause,
		})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "mark investigation failed failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeConflict, "investigation already terminal")
	}
	return nil
}
