package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/oncall-agent/engine/internal/integrations/parallelai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// maxCommits caps how much history is pulled per investigation.
	maxCommits = 5
	// diffMaxRunes bounds diff text before it reaches the analyzer.
	diffMaxRunes = 4000
	// snippetMaxRunes bounds each search snippet.
	snippetMaxRunes = 500
	// queryErrorMaxRunes bounds the error text embedded in search queries.
	queryErrorMaxRunes = 200
	// resultsPerQuery caps hits requested per search query.
	resultsPerQuery = 5
)

// GatherRequest identifies what evidence to collect for one investigation.
type GatherRequest struct {
	Owner     string
	Name      string
	CommitSHA string
	ErrorText string
	Documents []string
}

// Gatherer concurrently collects commits, a diff, and web search hits for one
// incident. Every source is optional and fails soft: an unreachable provider
// yields an empty section, never an error. Gather itself cannot fail.
type Gatherer struct {
	source  SourceControl
	search  WebSearcher
	timeout time.Duration
	log     *zap.Logger
}

func NewGatherer(source SourceControl, search WebSearcher, timeout time.Duration, log *zap.Logger) *Gatherer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gatherer{source: source, search: search, timeout: timeout, log: log}
}

// searchQueries derives the fixed query set for an error. Order is
// significant: results concatenate in query-definition order.
func searchQueries(errorText string) []string {
	base := truncate(errorText, queryErrorMaxRunes)
	return []string{
		fmt.Sprintf("%s causes", base),
		fmt.Sprintf("%s solution", base),
	}
}

// Gather collects all evidence sources within the configured time budget.
func (g *Gatherer) Gather(ctx context.Context, req GatherRequest) EvidenceBundle {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	bundle := EvidenceBundle{Documents: req.Documents}
	queries := searchQueries(req.ErrorText)
	perQuery := make([][]parallelai.Result, len(queries))

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if g.source == nil {
			return nil
		}
		commits, err := g.source.RecentCommits(ctx, req.Owner, req.Name, maxCommits)
		if err != nil {
			g.log.Warn("fetch commits failed", zap.String("repo", req.Owner+"/"+req.Name), zap.Error(err))
			return nil
		}
		if len(commits) > maxCommits {
			commits = commits[:maxCommits]
		}
		bundle.Commits = commits
		return nil
	})

	eg.Go(func() error {
		if g.source == nil || req.CommitSHA == "" {
			return nil
		}
		diff, err := g.source.CommitDiff(ctx, req.Owner, req.Name, req.CommitSHA)
		if err != nil {
			g.log.Warn("fetch diff failed", zap.String("sha", req.CommitSHA), zap.Error(err))
			return nil
		}
		bundle.Diff = truncate(diff, diffMaxRunes)
		return nil
	})

	for i, q := range queries {
		i, q := i, q
		eg.Go(func() error {
			if g.search == nil {
				return nil
			}
			hits, err := g.search.Search(ctx, q, resultsPerQuery)
			if err != nil {
				g.log.Warn("web search failed", zap.String("query", q), zap.Error(err))
				return nil
			}
			for j := range hits {
				hits[j].Snippet = truncate(hits[j].Snippet, snippetMaxRunes)
			}
			perQuery[i] = hits
			return nil
		})
	}

	// goroutines only ever return nil; the group is used for joining
	_ = eg.Wait()

	for _, hits := range perQuery {
		bundle.SearchResults = append(bundle.SearchResults, hits...)
	}
	return bundle
}
