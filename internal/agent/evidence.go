package agent

import (
	"context"

	"github.com/oncall-agent/engine/internal/integrations/github"
	"github.com/oncall-agent/engine/internal/integrations/parallelai"
)

// SourceControl provides commit history and diffs for a repository.
type SourceControl interface {
	RecentCommits(ctx context.Context, owner, name string, limit int) ([]github.Commit, error)
	CommitDiff(ctx context.Context, owner, name, sha string) (string, error)
}

// WebSearcher runs a single web search query.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]parallelai.Result, error)
}

// Completer invokes the language model with a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// EvidenceBundle is the transient aggregation of context for one
// investigation. It is built fresh per run, owned by that run, and discarded
// after analysis.
type EvidenceBundle struct {
	Commits       []github.Commit
	Diff          string
	SearchResults []parallelai.Result
	Documents     []string
}

// truncate caps s at max runes. A budget of zero or less means unlimited.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
