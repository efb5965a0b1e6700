package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oncall-agent/engine/internal/integrations/railway"
	"github.com/oncall-agent/engine/internal/models"
	"github.com/oncall-agent/engine/internal/repository"
	"github.com/oncall-agent/engine/internal/services"
	"go.uber.org/zap"
)

// DeploymentProvider resolves projects and reports their latest deployment.
type DeploymentProvider interface {
	ResolveProject(ctx context.Context, name string) (string, error)
	LatestDeployment(ctx context.Context, projectID string) (railway.Deployment, error)
}

// failureStatuses is the set of deployment states that trigger an
// investigation.
var failureStatuses = map[string]struct{}{
	"failed":  {},
	"crashed": {},
}

type seenDeployment struct {
	id     string
	status string
}

// Options tune the monitor loop. Zero values fall back to the documented
// defaults.
type Options struct {
	Interval      time.Duration // delay between full iterations (default 60s)
	StartupDelay  time.Duration // delay before the first check (default 10s)
	IdleBackoff   time.Duration // delay when no targets are registered (default 60s)
	OutageBackoff time.Duration // delay after a provider-wide outage (default 300s)
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Interval <= 0 {
		out.Interval = 60 * time.Second
	}
	if out.IdleBackoff <= 0 {
		out.IdleBackoff = out.Interval
	}
	if out.OutageBackoff <= 0 {
		out.OutageBackoff = 300 * time.Second
	}
	return out
}

// Monitor is the perpetual polling loop that watches deployment state per
// registered repository and starts investigations on new failures.
//
// The last-seen map is written only by the monitor goroutine, so it needs no
// locking. It is process-local and rebuilt empty on restart: a restart can
// re-trigger for an already-investigated failure or miss one that transitions
// during downtime. That trade-off is accepted.
type Monitor struct {
	provider       DeploymentProvider
	repos          repository.RepositoryRepository
	investigations services.InvestigationService
	opts           Options
	log            *zap.Logger

	lastSeen map[uuid.UUID]seenDeployment
}

func New(provider DeploymentProvider, repos repository.RepositoryRepository, investigations services.InvestigationService, opts Options, log *zap.Logger) *Monitor {
	return &Monitor{
		provider:       provider,
		repos:          repos,
		investigations: investigations,
		opts:           opts.withDefaults(),
		log:            log,
		lastSeen:       make(map[uuid.UUID]seenDeployment),
	}
}

// Run blocks until ctx is cancelled. Each iteration decides its own backoff:
// the regular interval, a shorter idle sleep when no targets exist, or the
// long outage backoff when the provider looks globally unreachable.
func (m *Monitor) Run(ctx context.Context) {
	if m.provider == nil {
		m.log.Warn("deployment provider not configured, monitor disabled")
		return
	}

	if !sleep(ctx, m.opts.StartupDelay) {
		return
	}
	m.log.Info("deployment monitor started", zap.Duration("interval", m.opts.Interval))

	for {
		delay := m.pollOnce(ctx)
		if !sleep(ctx, delay) {
			return
		}
	}
}

// pollOnce runs one full iteration over all monitored targets and returns the
// delay before the next iteration.
func (m *Monitor) pollOnce(ctx context.Context) time.Duration {
	repos, err := m.repos.ListMonitored(ctx)
	if err != nil {
		m.log.Error("load monitor targets failed", zap.Error(err))
		return m.opts.OutageBackoff
	}
	if len(repos) == 0 {
		return m.opts.IdleBackoff
	}

	failures := 0
	for _, repo := range repos {
		if err := m.checkTarget(ctx, repo); err != nil {
			failures++
			m.log.Warn("target check failed",
				zap.String("repo", repo.Owner+"/"+repo.Name),
				zap.String("project", repo.RailwayProjectName),
				zap.Error(err),
			)
		}
		if ctx.Err() != nil {
			return m.opts.Interval
		}
	}

	// Every target failing in the same iteration looks like a provider-wide
	// outage (expired key, API down) rather than per-target flakiness.
	if failures == len(repos) {
		m.log.Warn("all target checks failed, backing off", zap.Duration("backoff", m.opts.OutageBackoff))
		return m.opts.OutageBackoff
	}
	return m.opts.Interval
}

// checkTarget polls one repository's project. A new investigation is
// triggered only when the latest deployment id differs from the last-seen id
// AND its status is in the failure set; the id, not the status word, is the
// dedup key. Tracked state is updated on every observation.
func (m *Monitor) checkTarget(ctx context.Context, repo models.Repository) error {
	projectID, err := m.provider.ResolveProject(ctx, repo.RailwayProjectName)
	if err != nil {
		return err
	}

	dep, err := m.provider.LatestDeployment(ctx, projectID)
	if err != nil {
		return err
	}
	if dep.ID == "" {
		return nil
	}

	prev, known := m.lastSeen[repo.ID]
	_, failing := failureStatuses[dep.Status]
	newDeployment := !known || prev.id != dep.ID

	if newDeployment && failing {
		m.trigger(ctx, repo, dep)
	}
	m.lastSeen[repo.ID] = seenDeployment{id: dep.ID, status: dep.Status}
	return nil
}

func (m *Monitor) trigger(ctx context.Context, repo models.Repository, dep railway.Deployment) {
	errText := dep.ErrorText
	if errText == "" {
		errText = fmt.Sprintf("Railway deployment %s", dep.Status)
	}

	m.log.Info("deployment failure detected",
		zap.String("repo", repo.Owner+"/"+repo.Name),
		zap.String("deployment_id", dep.ID),
		zap.String("status", dep.Status),
		zap.String("service", dep.ServiceName),
	)

	// Start persists the record and dispatches the run asynchronously; the
	// loop moves on to the next target immediately.
	inv, err := m.investigations.Start(ctx, repo.ID, services.StartInput{
		ErrorMessage:   fmt.Sprintf("Railway deployment %s: %s", dep.Status, errText),
		DeploymentLogs: errText,
	})
	if err != nil {
		m.log.Error("auto-investigation start failed",
			zap.String("repo", repo.Owner+"/"+repo.Name), zap.Error(err))
		return
	}
	m.log.Info("auto-investigation started", zap.String("investigation_id", inv.ID.String()))
}

// sleep waits for d or until ctx is done; it reports whether the monitor
// should keep running.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
