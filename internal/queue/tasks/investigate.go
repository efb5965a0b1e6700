package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/oncall-agent/engine/internal/agent"
	"github.com/oncall-agent/engine/internal/broadcast"
	"github.com/oncall-agent/engine/internal/models"
	"github.com/oncall-agent/engine/internal/repository"
	"github.com/oncall-agent/engine/pkg/logger"
	"go.uber.org/zap"
)

// TypeInvestigationRun is the asynq task type for one investigation run.
const TypeInvestigationRun = "investigation:run"

// Stored result budgets, matching the persisted column contracts.
const (
	rootCauseMaxRunes    = 1000
	suggestedFixMaxRunes = 2000
)

// RunPayload is the task payload for an investigation run.
type RunPayload struct {
	InvestigationID string `json:"investigation_id"`
}

// NewRunTask builds the asynq task for an investigation id.
func NewRunTask(id uuid.UUID) (*asynq.Task, error) {
	b, err := json.Marshal(RunPayload{InvestigationID: id.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInvestigationRun, b), nil
}

// InvestigateRunner drives the investigation pipeline for one incident:
// gather evidence, analyze, persist the terminal state, and publish a step
// event at each stage. Run is a top-level isolation boundary: it never
// panics or returns an error past itself; every failure lands the record in
// the failed state with a readable root cause.
type InvestigateRunner struct {
	invRepo  repository.InvestigationRepository
	repoRepo repository.RepositoryRepository
	docRepo  repository.DocumentRepository
	gatherer *agent.Gatherer
	analyzer *agent.Analyzer
	bcast    *broadcast.Broadcaster

	analysisTimeout time.Duration
}

func NewInvestigateRunner(
	invRepo repository.InvestigationRepository,
	repoRepo repository.RepositoryRepository,
	docRepo repository.DocumentRepository,
	gatherer *agent.Gatherer,
	analyzer *agent.Analyzer,
	bcast *broadcast.Broadcaster,
	analysisTimeout time.Duration,
) *InvestigateRunner {
	if analysisTimeout <= 0 {
		analysisTimeout = 90 * time.Second
	}
	return &InvestigateRunner{
		invRepo:         invRepo,
		repoRepo:        repoRepo,
		docRepo:         docRepo,
		gatherer:        gatherer,
		analyzer:        analyzer,
		bcast:           bcast,
		analysisTimeout: analysisTimeout,
	}
}

// HandleRun is the asynq entry point.
func (r *InvestigateRunner) HandleRun(ctx context.Context, t *asynq.Task) error {
	var p RunPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid investigation task payload", zap.Error(err))
		return err
	}
	id, err := uuid.Parse(p.InvestigationID)
	if err != nil {
		logger.L().Error("invalid investigation id in task", zap.Error(err))
		return err
	}
	r.Run(ctx, id)
	return nil
}

// Run executes the full pipeline for one investigation. Safe to call from a
// plain goroutine; callers never observe an error or a panic.
func (r *InvestigateRunner) Run(ctx context.Context, id uuid.UUID) {
	log := logger.L().With(zap.String("investigation_id", id.String()))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("investigation run panicked", zap.Any("panic", rec))
			r.fail(ctx, id, fmt.Errorf("internal error: %v", rec))
		}
	}()

	var inv models.Investigation
	if err := r.invRepo.GetByID(ctx, id, &inv); err != nil {
		log.Error("load investigation failed", zap.Error(err))
		return
	}
	if inv.Terminal() {
		log.Warn("investigation already terminal, skipping run", zap.String("status", inv.Status))
		return
	}

	var repo models.Repository
	if err := r.repoRepo.GetByID(ctx, inv.RepositoryID, &repo); err != nil {
		log.Error("load repository failed", zap.Error(err))
		r.fail(ctx, id, err)
		return
	}

	log.Info("investigation run started", zap.String("repo", repo.Owner+"/"+repo.Name))

	r.publish(id, broadcast.StageFetchingContext, "Fetching repository context...", nil)

	docs, err := r.docRepo.ContentsByRepository(ctx, repo.ID)
	if err != nil {
		// documentation is optional evidence; proceed without it
		log.Warn("load documents failed", zap.Error(err))
		docs = nil
	}

	r.publish(id, broadcast.StageSearchingWeb,
		fmt.Sprintf("Searching web for: %s", headline(inv.ErrorMessage)), nil)

	bundle := r.gatherer.Gather(ctx, agent.GatherRequest{
		Owner:     repo.Owner,
		Name:      repo.Name,
		CommitSHA: inv.CommitSHA,
		ErrorText: inv.ErrorMessage,
		Documents: docs,
	})

	r.publish(id, broadcast.StageAnalyzing, "Analyzing incident...", nil)

	analysisCtx, cancel := context.WithTimeout(ctx, r.analysisTimeout)
	verdict := r.analyzer.Analyze(analysisCtx, agent.AnalysisInput{
		ErrorText:      inv.ErrorMessage,
		DeploymentLogs: inv.DeploymentLogs,
		Bundle:         bundle,
	})
	cancel()

	rootCause := truncateRunes(verdict.RootCause, rootCauseMaxRunes)
	suggestedFix := truncateRunes(verdict.SuggestedFix, suggestedFixMaxRunes)

	if err := r.invRepo.MarkCompleted(ctx, id, rootCause, suggestedFix, time.Now().UTC()); err != nil {
		log.Error("persist completion failed", zap.Error(err))
		r.fail(ctx, id, err)
		return
	}

	r.publish(id, broadcast.StageCompleted, "Investigation complete", verdict)
	log.Info("investigation completed",
		zap.String("action", verdict.Action),
		zap.String("confidence", verdict.Confidence),
	)
}

func (r *InvestigateRunner) fail(ctx context.Context, id uuid.UUID, cause error) {
	rootCause := truncateRunes(fmt.Sprintf("Error: %v", cause), rootCauseMaxRunes)
	if err := r.invRepo.MarkFailed(ctx, id, rootCause); err != nil {
		logger.L().Error("persist failure state failed",
			zap.String("investigation_id", id.String()), zap.Error(err))
		return
	}
	r.publish(id, broadcast.StageFailed, rootCause, nil)
}

func (r *InvestigateRunner) publish(id uuid.UUID, stage broadcast.Stage, message string, payload any) {
	r.bcast.Publish(id.String(), broadcast.StepEvent{
		Stage:   stage,
		Message: message,
		Payload: payload,
	})
}

func headline(s string) string {
	r := []rune(s)
	if len(r) <= 100 {
		return s
	}
	return string(r[:100]) + "..."
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
