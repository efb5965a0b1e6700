package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oncall-agent/engine/internal/integrations/github"
	"github.com/oncall-agent/engine/internal/integrations/parallelai"
)

type fakeSource struct {
	commits    []github.Commit
	commitsErr error
	diff       string
	diffErr    error
	diffCalls  int
}

func (f *fakeSource) RecentCommits(context.Context, string, string, int) ([]github.Commit, error) {
	return f.commits, f.commitsErr
}

func (f *fakeSource) CommitDiff(context.Context, string, string, string) (string, error) {
	f.diffCalls++
	return f.diff, f.diffErr
}

type fakeSearcher struct {
	byQuery map[string][]parallelai.Result
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]parallelai.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byQuery[query], nil
}

func TestGatherCollectsAllSources(t *testing.T) {
	src := &fakeSource{
		commits: []github.Commit{{SHA: "abc1234", Message: "fix config parsing"}},
		diff:    "--- a/main.go\n+++ b/main.go\n",
	}
	search := &fakeSearcher{byQuery: map[string][]parallelai.Result{
		"timeout causes":   {{Title: "t1", Snippet: "first"}},
		"timeout solution": {{Title: "t2", Snippet: "second"}},
	}}
	g := NewGatherer(src, search, 0, zap.NewNop())

	bundle := g.Gather(context.Background(), GatherRequest{
		Owner:     "acme",
		Name:      "api",
		CommitSHA: "abc1234",
		ErrorText: "timeout",
		Documents: []string{"doc"},
	})

	require.Len(t, bundle.Commits, 1)
	require.Contains(t, bundle.Diff, "main.go")
	require.Equal(t, []string{"doc"}, bundle.Documents)
	// results concatenate in query-definition order: causes first
	require.Len(t, bundle.SearchResults, 2)
	require.Equal(t, "t1", bundle.SearchResults[0].Title)
	require.Equal(t, "t2", bundle.SearchResults[1].Title)
}

func TestGatherFailuresYieldEmptySections(t *testing.T) {
	src := &fakeSource{
		commitsErr: errors.New("github 502"),
		diffErr:    errors.New("github 502"),
	}
	search := &fakeSearcher{err: errors.New("search down")}
	g := NewGatherer(src, search, 0, zap.NewNop())

	bundle := g.Gather(context.Background(), GatherRequest{
		Owner: "acme", Name: "api", CommitSHA: "abc", ErrorText: "boom",
	})
	require.Empty(t, bundle.Commits)
	require.Empty(t, bundle.Diff)
	require.Empty(t, bundle.SearchResults)
}

func TestGatherNilProviders(t *testing.T) {
	g := NewGatherer(nil, nil, 0, zap.NewNop())
	bundle := g.Gather(context.Background(), GatherRequest{ErrorText: "boom"})
	require.Empty(t, bundle.Commits)
	require.Empty(t, bundle.SearchResults)
}

func TestGatherSkipsDiffWithoutSHA(t *testing.T) {
	src := &fakeSource{diff: "should not be fetched"}
	g := NewGatherer(src, nil, 0, zap.NewNop())

	bundle := g.Gather(context.Background(), GatherRequest{Owner: "acme", Name: "api", ErrorText: "err"})
	require.Empty(t, bundle.Diff)
	require.Equal(t, 0, src.diffCalls)
}

func TestGatherTruncatesDiffAndSnippets(t *testing.T) {
	src := &fakeSource{diff: strings.Repeat("d", diffMaxRunes*2)}
	search := &fakeSearcher{byQuery: map[string][]parallelai.Result{}}
	long := strings.Repeat("s", snippetMaxRunes*2)
	for _, q := range searchQueries("err") {
		search.byQuery[q] = []parallelai.Result{{Title: "t", Snippet: long}}
	}
	g := NewGatherer(src, search, 0, zap.NewNop())

	bundle := g.Gather(context.Background(), GatherRequest{Owner: "o", Name: "n", CommitSHA: "s", ErrorText: "err"})
	require.Len(t, []rune(bundle.Diff), diffMaxRunes)
	for _, hit := range bundle.SearchResults {
		require.LessOrEqual(t, len([]rune(hit.Snippet)), snippetMaxRunes)
	}
}

func TestSearchQueriesTruncateLongErrors(t *testing.T) {
	long := strings.Repeat("e", queryErrorMaxRunes*3)
	queries := searchQueries(long)
	require.Len(t, queries, 2)
	require.True(t, strings.HasSuffix(queries[0], " causes"))
	require.True(t, strings.HasSuffix(queries[1], " solution"))
	for _, q := range queries {
		require.LessOrEqual(t, len([]rune(q)), queryErrorMaxRunes+len(" solution"))
	}
}
