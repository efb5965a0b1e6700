package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCompleter struct {
	response string
	err      error
	prompt   string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func TestAnalyzeParsesJSONFence(t *testing.T) {
	llm := &fakeCompleter{response: "Here is my analysis.\n```json\n" +
		`{"root_cause":"db connection pool exhausted","suggested_fix":"raise pool size","action":"patch","confidence":"high"}` +
		"\n```\nLet me know if you need more."}
	a := NewAnalyzer(llm, zap.NewNop())

	v := a.Analyze(context.Background(), AnalysisInput{ErrorText: "connection refused"})
	require.Equal(t, "db connection pool exhausted", v.RootCause)
	require.Equal(t, "raise pool size", v.SuggestedFix)
	require.Equal(t, ActionPatch, v.Action)
	require.Equal(t, ConfidenceHigh, v.Confidence)
}

func TestAnalyzeParsesBareFence(t *testing.T) {
	llm := &fakeCompleter{response: "```\n" +
		`{"root_cause":"bad migration","action":"revert","confidence":"medium"}` +
		"\n```"}
	a := NewAnalyzer(llm, zap.NewNop())

	v := a.Analyze(context.Background(), AnalysisInput{ErrorText: "migration failed"})
	require.Equal(t, "bad migration", v.RootCause)
	require.Equal(t, ActionRevert, v.Action)
	require.Equal(t, ConfidenceMedium, v.Confidence)
}

func TestAnalyzeParsesWholeBodyJSON(t *testing.T) {
	llm := &fakeCompleter{response: `{"root_cause":"missing env var","action":"patch","confidence":"low"}`}
	a := NewAnalyzer(llm, zap.NewNop())

	v := a.Analyze(context.Background(), AnalysisInput{ErrorText: "boom"})
	require.Equal(t, "missing env var", v.RootCause)
	require.Equal(t, ActionPatch, v.Action)
}

func TestAnalyzeUnparseableResponseFallsBack(t *testing.T) {
	raw := "The failure seems related to memory pressure but I cannot say more."
	llm := &fakeCompleter{response: raw}
	a := NewAnalyzer(llm, zap.NewNop())

	v := a.Analyze(context.Background(), AnalysisInput{ErrorText: "OOM killed"})
	require.Equal(t, raw, v.RootCause)
	require.Equal(t, ActionManualReview, v.Action)
	require.Equal(t, ConfidenceLow, v.Confidence)
}

func TestAnalyzeModelFailureProducesVerdict(t *testing.T) {
	llm := &fakeCompleter{err: errors.New("anthropic 529 Overloaded")}
	a := NewAnalyzer(llm, zap.NewNop())

	v := a.Analyze(context.Background(), AnalysisInput{ErrorText: "crash loop"})
	require.Contains(t, v.RootCause, "Error analyzing incident")
	require.Contains(t, v.RootCause, "529")
	require.Equal(t, ActionManualReview, v.Action)
	require.Equal(t, ConfidenceLow, v.Confidence)
}

func TestAnalyzeNilModelProducesVerdict(t *testing.T) {
	a := NewAnalyzer(nil, zap.NewNop())
	v := a.Analyze(context.Background(), AnalysisInput{ErrorText: "anything"})
	require.Contains(t, v.RootCause, "not configured")
	require.Equal(t, ActionManualReview, v.Action)
}

func TestAnalyzeNormalizesUnknownEnums(t *testing.T) {
	llm := &fakeCompleter{response: `{"root_cause":"flaky test","action":"rollback","confidence":"certain"}`}
	a := NewAnalyzer(llm, zap.NewNop())

	v := a.Analyze(context.Background(), AnalysisInput{ErrorText: "ci red"})
	require.Equal(t, "flaky test", v.RootCause)
	require.Equal(t, ActionManualReview, v.Action)
	require.Equal(t, ConfidenceLow, v.Confidence)
}

func TestPromptContainsBoundedEvidence(t *testing.T) {
	llm := &fakeCompleter{response: `{"root_cause":"x","action":"patch","confidence":"low"}`}
	a := NewAnalyzer(llm, zap.NewNop())

	in := AnalysisInput{
		ErrorText:      "segfault on startup",
		DeploymentLogs: strings.Repeat("x", logsBudget*3),
		Bundle: EvidenceBundle{
			Diff:      strings.Repeat("d", diffBudget*3),
			Documents: []string{"runbook: restart the pod"},
		},
	}
	a.Analyze(context.Background(), in)

	require.Contains(t, llm.prompt, "segfault on startup")
	require.Contains(t, llm.prompt, "runbook: restart the pod")
	// bounded sections never carry the full oversized inputs
	require.Less(t, len(llm.prompt), logsBudget+diffBudget+4096)
}

func TestPromptEmptyEvidencePlaceholders(t *testing.T) {
	llm := &fakeCompleter{response: `{"root_cause":"x","action":"patch","confidence":"low"}`}
	a := NewAnalyzer(llm, zap.NewNop())

	a.Analyze(context.Background(), AnalysisInput{ErrorText: "OOM killed"})

	require.Contains(t, llm.prompt, "No recent commits available")
	require.Contains(t, llm.prompt, "No search results available")
	require.Contains(t, llm.prompt, "No logs provided")
	require.Contains(t, llm.prompt, "No diff available")
	require.Contains(t, llm.prompt, "No documentation provided.")
}
