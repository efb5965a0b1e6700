package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/oncall-agent/engine/internal/models"
	"github.com/oncall-agent/engine/internal/queue/tasks"
	"github.com/oncall-agent/engine/internal/repository"
	appErr "github.com/oncall-agent/engine/pkg/errors"
	"github.com/oncall-agent/engine/pkg/logger"
	"go.uber.org/zap"
)

// StartInput carries the caller-supplied incident context.
type StartInput struct {
	ErrorMessage   string
	DeploymentLogs string
	CommitSHA      string
}

// InvestigationService creates investigation records and dispatches their
// background runs. Both manual triggers (HTTP) and the deployment monitor go
// through Start, so dispatch semantics are identical for either path.
type InvestigationService interface {
	Start(ctx context.Context, repositoryID uuid.UUID, input StartInput) (*models.Investigation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Investigation, error)
	ListRecent(ctx context.Context, limit int) ([]models.Investigation, error)
}

type investigationService struct {
	invRepo     repository.InvestigationRepository
	repoRepo    repository.RepositoryRepository
	runner      *tasks.InvestigateRunner
	asynqClient *asynq.Client
}

// NewInvestigationService wires the service. asynqClient may be nil, in which
// case runs execute on a dedicated goroutine instead of the queue.
func NewInvestigationService(
	invRepo repository.InvestigationRepository,
	repoRepo repository.RepositoryRepository,
	runner *tasks.InvestigateRunner,
	asynqClient *asynq.Client,
) InvestigationService {
	return &investigationService{
		invRepo:     invRepo,
		repoRepo:    repoRepo,
		runner:      runner,
		asynqClient: asynqClient,
	}
}

var _ InvestigationService = (*investigationService)(nil)

func (s *investigationService) Start(ctx context.Context, repositoryID uuid.UUID, input StartInput) (*models.Investigation, error) {
	if input.ErrorMessage == "" {
		return nil, appErr.New(appErr.CodeInvalid, "error message is required")
	}

	var repo models.Repository
	if err := s.repoRepo.GetByID(ctx, repositoryID, &repo); err != nil {
		return nil, err
	}

	inv := &models.Investigation{
		RepositoryID:   repositoryID,
		Status:         models.InvestigationInvestigating,
		ErrorMessage:   input.ErrorMessage,
		DeploymentLogs: input.DeploymentLogs,
		CommitSHA:      input.CommitSHA,
	}
	if err := s.invRepo.Create(ctx, inv); err != nil {
		return nil, err
	}

	logger.L().Info("investigation started",
		zap.String("investigation_id", inv.ID.String()),
		zap.String("repo", repo.Owner+"/"+repo.Name),
	)

	if s.asynqClient == nil {
		// The run owns a fresh context: it must outlive the HTTP request or
		// monitor iteration that triggered it.
		go s.runner.Run(context.Background(), inv.ID)
		return inv, nil
	}

	task, err := tasks.NewRunTask(inv.ID)
	if err != nil {
		_ = s.invRepo.MarkFailed(ctx, inv.ID, "Error: could not build run task")
		return nil, appErr.Wrap(err, appErr.CodeInternal, "build run task failed")
	}
	if _, err := s.asynqClient.EnqueueContext(ctx, task); err != nil {
		logger.L().Error("enqueue investigation run failed",
			zap.String("investigation_id", inv.ID.String()), zap.Error(err))
		_ = s.invRepo.MarkFailed(ctx, inv.ID, "Error: could not enqueue investigation run")
		return nil, appErr.Wrap(err, appErr.CodeInternal, "enqueue investigation run failed")
	}
	return inv, nil
}

func (s *investigationService) Get(ctx context.Context, id uuid.UUID) (*models.Investigation, error) {
	var inv models.Investigation
	if err := s.invRepo.GetByID(ctx, id, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *investigationService) ListRecent(ctx context.Context, limit int) ([]models.Investigation, error) {
	return s.invRepo.ListRecent(ctx, limit)
}
