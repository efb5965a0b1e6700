package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Verdict actions.
const (
	ActionRevert       = "revert"
	ActionPatch        = "patch"
	ActionManualReview = "manual_review"
)

// Verdict confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Verdict is the structured result of analysis. Analyze always produces one,
// even on total model failure.
type Verdict struct {
	RootCause       string `json:"root_cause"`
	ProblematicCode string `json:"problematic_code"`
	SuggestedFix    string `json:"suggested_fix"`
	Action          string `json:"action"`
	Confidence      string `json:"confidence"`
}

// Prompt composition budgets, in runes. Each input is bounded independently
// so total prompt size stays bounded regardless of evidence volume.
const (
	logsBudget    = 1000
	diffBudget    = 1000
	docsBudget    = 1000
	snippetBudget = 200
	maxDocs       = 3
	maxSnippets   = 3
)

// AnalysisInput is everything the engine considers for one incident.
type AnalysisInput struct {
	ErrorText      string
	DeploymentLogs string
	Bundle         EvidenceBundle
}

// Analyzer assembles evidence into a bounded prompt, invokes the language
// model, and parses a structured verdict with deterministic fallbacks.
type Analyzer struct {
	llm Completer
	log *zap.Logger
}

func NewAnalyzer(llm Completer, log *zap.Logger) *Analyzer {
	return &Analyzer{llm: llm, log: log}
}

// Analyze is total: for any input, including model transport failures and
// malformed model output, it returns a Verdict and never an error.
func (a *Analyzer) Analyze(ctx context.Context, in AnalysisInput) Verdict {
	prompt := composePrompt(in)

	if a.llm == nil {
		return hardFailureVerdict(fmt.Errorf("language model not configured"))
	}

	response, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		a.log.Warn("model invocation failed", zap.Error(err))
		return hardFailureVerdict(err)
	}

	verdict, err := parseVerdict(response)
	if err != nil {
		a.log.Debug("structured parse failed, falling back to raw response", zap.Error(err))
		return Verdict{
			RootCause:  response,
			Action:     ActionManualReview,
			Confidence: ConfidenceLow,
		}
	}
	return normalize(verdict, response)
}

func hardFailureVerdict(err error) Verdict {
	return Verdict{
		RootCause:  fmt.Sprintf("Error analyzing incident: %v", err),
		Action:     ActionManualReview,
		Confidence: ConfidenceLow,
	}
}

// normalize guarantees the enumerated fields hold valid values and the root
// cause is never empty.
func normalize(v Verdict, raw string) Verdict {
	switch v.Action {
	case ActionRevert, ActionPatch, ActionManualReview:
	default:
		v.Action = ActionManualReview
	}
	switch v.Confidence {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
	default:
		v.Confidence = ConfidenceLow
	}
	if strings.TrimSpace(v.RootCause) == "" {
		v.RootCause = raw
	}
	return v
}

// parseVerdict locates a fenced JSON block (```json or bare ```) in the
// response, falling back to parsing the whole response as JSON.
func parseVerdict(content string) (Verdict, error) {
	candidate := content
	if block, ok := fencedBlock(content, "```json"); ok {
		candidate = block
	} else if block, ok := fencedBlock(content, "```"); ok {
		candidate = block
	}

	var v Verdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &v); err != nil {
		return Verdict{}, err
	}
	return v, nil
}

func fencedBlock(content, fence string) (string, bool) {
	start := strings.Index(content, fence)
	if start < 0 {
		return "", false
	}
	rest := content[start+len(fence):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

func composePrompt(in AnalysisInput) string {
	var commits strings.Builder
	for i, c := range in.Bundle.Commits {
		if i >= maxCommits {
			break
		}
		sha := c.SHA
		if len(sha) > 7 {
			sha = sha[:7]
		}
		fmt.Fprintf(&commits, "- %s: %s\n", sha, firstLine(c.Message))
	}
	commitsSummary := commits.String()
	if commitsSummary == "" {
		commitsSummary = "No recent commits available"
	}

	var search strings.Builder
	for i, r := range in.Bundle.SearchResults {
		if i >= maxSnippets {
			break
		}
		fmt.Fprintf(&search, "- %s: %s\n", r.Title, truncate(r.Snippet, snippetBudget))
	}
	searchSummary := search.String()
	if searchSummary == "" {
		searchSummary = "No search results available"
	}

	docs := in.Bundle.Documents
	if len(docs) > maxDocs {
		docs = docs[:maxDocs]
	}
	docsSummary := "No documentation provided."
	if len(docs) > 0 {
		docsSummary = truncate(strings.Join(docs, "\n"), docsBudget)
	}

	logs := "No logs provided"
	if in.DeploymentLogs != "" {
		logs = truncate(in.DeploymentLogs, logsBudget)
	}

	diff := "No diff available"
	if in.Bundle.Diff != "" {
		diff = truncate(in.Bundle.Diff, diffBudget)
	}

	return fmt.Sprintf(`You are an on-call engineer investigating a deployment failure. Analyze the following information and provide:

1. Root cause analysis
2. Specific problematic code (if any)
3. Suggested fix with code
4. Whether to revert the commit or patch the code

INCIDENT DETAILS:
Error: %s

DEPLOYMENT LOGS:
%s

RECENT COMMITS:
%s
COMMIT DIFF:
%s

UPLOADED DOCUMENTATION:
%s

WEB SEARCH RESULTS:
%s
Provide your analysis in JSON format:
{
    "root_cause": "Brief explanation",
    "problematic_code": "Code snippet if applicable",
    "suggested_fix": "Specific fix with code",
    "action": "revert" or "patch",
    "confidence": "high" or "medium" or "low"
}`, in.ErrorText, logs, commitsSummary, diff, docsSummary, searchSummary)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
