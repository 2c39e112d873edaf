package research

import (
	"context"
	"encoding/json"
	"time"
)

// ToolKind identifies one of the supervisor's fixed tool vocabulary entries.
type ToolKind string

const (
	ToolResearch ToolKind = "research"
	ToolThink    ToolKind = "think"
	ToolFinish   ToolKind = "finish"
)

// ToolCall is one supervisor decision. Calls are immutable once appended to
// the state's log; the log gives full replayability of a run.
type ToolCall struct {
	Kind  ToolKind  `json:"kind"`
	Query string    `json:"query,omitempty"` // research
	Note  string    `json:"note,omitempty"`  // think
	At    time.Time `json:"at"`
}

// DomainStatus tracks a dispatched sub-task through its lifecycle.
type DomainStatus string

const (
	DomainPending   DomainStatus = "pending"
	DomainRunning   DomainStatus = "running"
	DomainSucceeded DomainStatus = "succeeded"
	DomainFailed    DomainStatus = "failed"
	DomainTimedOut  DomainStatus = "timed_out"
)

// DomainQuery is one breadth-first sub-task created at fan-out time.
// It is terminal once its sub-task completes or is abandoned.
type DomainQuery struct {
	Domain string       `json:"domain"`
	Query  string       `json:"query"`
	Status DomainStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// DomainResult records what a finished sub-task contributed.
type DomainResult struct {
	Query      DomainQuery `json:"query"`
	URLs       []string    `json:"urls,omitempty"`
	FactsAdded int         `json:"facts_added"`
}

// FactRecord is one canonical piece of researched information.
type FactRecord struct {
	ID         string `json:"id"`
	Category   string `json:"category"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	SourceURL  string `json:"source_url,omitempty"`
	SourceDate string `json:"source_date,omitempty"`
}

// State is the accumulating knowledge of one run. It is owned exclusively by
// that run's supervisor loop: sub-tasks build local deltas and the merge
// engine applies them one domain at a time behind the dispatcher's join
// barrier, so no locking is needed.
type State struct {
	RunID      string
	Subject    string
	Type       string
	ToolLog    []ToolCall
	Domains    map[string]DomainResult
	Facts      []FactRecord
	Iterations int
	Gaps       []string
	GapSummary string
	UsedHosts  map[string]struct{}
}

// NewState initializes an empty research state for one run.
func NewState(runID, subject, researchType string) *State {
	return &State{
		RunID:     runID,
		Subject:   subject,
		Type:      researchType,
		Domains:   make(map[string]DomainResult),
		UsedHosts: make(map[string]struct{}),
	}
}

func (s *State) appendCall(c ToolCall) { s.ToolLog = append(s.ToolLog, c) }

func (s *State) addGap(gap string) {
	if gap == "" {
		return
	}
	s.Gaps = append(s.Gaps, gap)
}

// LastNote returns the note of the most recent think call, if any.
func (s *State) LastNote() string {
	for i := len(s.ToolLog) - 1; i >= 0; i-- {
		if s.ToolLog[i].Kind == ToolThink {
			return s.ToolLog[i].Note
		}
	}
	return ""
}

// Request is the run entry point input.
type Request struct {
	Subject   string
	Type      string
	Overrides Overrides
}

// Overrides lets callers tighten run budgets without touching global config.
// Zero values mean "use configured default".
type Overrides struct {
	MaxToolIterations          int
	MaxStructuredOutputRetries int
	RunDeadline                time.Duration
}

// Result is the immutable artifact of a completed run.
type Result struct {
	RunID     string          `json:"run_id"`
	Subject   string          `json:"subject"`
	Type      string          `json:"type"`
	Output    any             `json:"output"`
	RawOutput json.RawMessage `json:"raw_output"`
	Facts     []FactRecord    `json:"facts"`
	Gaps      []string        `json:"gaps,omitempty"`
	ToolLog   []ToolCall      `json:"tool_log"`
	Elapsed   time.Duration   `json:"elapsed"`
	CreatedAt time.Time       `json:"created_at"`
}

// SearchResult is one hit returned by a search provider.
type SearchResult struct {
	URL     string
	Title   string
	Snippet string
}

// Searcher is the search-provider collaborator. Implementations must be safe
// for concurrent use by multiple domain sub-tasks.
type Searcher interface {
	Search(ctx context.Context, query string, k int, excludeHosts []string) ([]SearchResult, error)
}

// Page is extracted content for one URL.
type Page struct {
	URL         string
	Title       string
	Text        string
	PublishedAt string
}

// Fetcher is the content-extraction collaborator.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Oracle abstracts the language-model collaborator. All calls may fail or
// time out; callers apply the configured retry budgets.
type Oracle interface {
	// Decide selects the next tool call given the supervisor prompt.
	Decide(ctx context.Context, prompt string) (ToolCall, error)

	// SelectURLs picks the k most promising URLs for a research question.
	SelectURLs(ctx context.Context, question string, results []SearchResult, k int) ([]string, error)

	// JudgeRelevance reports whether a text chunk is relevant to the subject.
	JudgeRelevance(ctx context.Context, subject, chunk string) (bool, error)

	// ExtractFacts pulls categorized candidate facts out of a relevant chunk.
	ExtractFacts(ctx context.Context, subject, chunk string, categories []string) ([]FactRecord, error)

	// Summarize produces a short free-text answer (gap analysis).
	Summarize(ctx context.Context, prompt string) (string, error)

	// RenderStructured asks for a schema-conformant JSON rendering.
	RenderStructured(ctx context.Context, prompt string) (json.RawMessage, error)
}

// Archive optionally persists completed run results. Persistence is a
// collaborator concern; the core never reads archived runs back.
type Archive interface {
	SaveRun(ctx context.Context, runID string, report []byte) error
}
