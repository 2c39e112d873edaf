package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/quillworks/scout/config"
	"github.com/quillworks/scout/internal/bundle"
	"github.com/quillworks/scout/internal/telemetry"
)

// Engine drives the supervisor loop: ask the oracle for the next tool
// decision, execute it, fold the result back into state, and repeat until a
// terminal condition. With deterministic collaborators the sequence of tool
// decisions and merge outcomes is fully reproducible.
type Engine struct {
	cfg       *config.Config
	logger    *log.Logger
	telemetry *telemetry.Telemetry
	registry  *bundle.Registry

	oracle     Oracle
	dispatcher *Dispatcher
	merger     *Merger
	archive    Archive
}

// NewEngine wires an engine from its collaborators. archive may be nil when
// run persistence is disabled.
func NewEngine(cfg *config.Config, logger *log.Logger, tel *telemetry.Telemetry, registry *bundle.Registry, oracle Oracle, searcher Searcher, fetcher Fetcher, archive Archive) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[research] ", log.LstdFlags)
	}
	if registry == nil {
		registry = bundle.DefaultRegistry()
	}
	rc := cfg.Research
	merger := newMerger(oracle, rc.ChunkSize, rc.MaxChunks, rc.ChunkRetries, rc.SimilarityThreshold, logger)
	merger.telemetry = tel
	return &Engine{
		cfg:        cfg,
		logger:     logger,
		telemetry:  tel,
		registry:   registry,
		oracle:     oracle,
		dispatcher: newDispatcher(searcher, fetcher, oracle, merger, rc.URLsPerQuery, rc.ResultsPerSearch, rc.DomainTimeout, logger),
		merger:     merger,
		archive:    archive,
	}
}

// Types lists the research types this engine can run.
func (e *Engine) Types() []string { return e.registry.List() }

// Run executes one research request to completion. It returns a structured
// result or a RunFailure carrying the state gathered before the failure;
// it never returns a partially valid structured output.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	b, ok := e.registry.Get(req.Type)
	if !ok {
		e.telemetry.RunFinished("rejected", time.Since(started))
		return nil, UnknownResearchTypeError{Name: req.Type, Available: e.registry.List()}
	}

	maxIters := e.cfg.Research.MaxToolIterations
	if req.Overrides.MaxToolIterations > 0 {
		maxIters = req.Overrides.MaxToolIterations
	}
	structRetries := e.cfg.Research.MaxStructuredOutputRetries
	if req.Overrides.MaxStructuredOutputRetries > 0 {
		structRetries = req.Overrides.MaxStructuredOutputRetries
	}
	deadline := e.cfg.Research.RunDeadline
	if req.Overrides.RunDeadline > 0 {
		deadline = req.Overrides.RunDeadline
	}
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	st := NewState(uuid.NewString(), req.Subject, b.Name())
	e.logger.Printf("run %s: %s research on %q (max %d tool iterations)", st.RunID, b.Name(), req.Subject, maxIters)

	if err := e.supervise(ctx, st, b, maxIters); err != nil {
		return e.abort(st, err, started)
	}

	s := &structurer{oracle: e.oracle, retries: structRetries, telemetry: e.telemetry, logger: e.logger}
	out, raw, err := s.Render(ctx, st, b)
	if err != nil {
		return e.abort(st, err, started)
	}

	res := &Result{
		RunID:     st.RunID,
		Subject:   st.Subject,
		Type:      st.Type,
		Output:    out,
		RawOutput: raw,
		Facts:     st.Facts,
		Gaps:      st.Gaps,
		ToolLog:   st.ToolLog,
		Elapsed:   time.Since(started),
		CreatedAt: time.Now().UTC(),
	}
	e.persist(ctx, res)
	e.telemetry.RunFinished("succeeded", res.Elapsed)
	e.logger.Printf("run %s: finished with %d facts, %d gaps in %s", st.RunID, len(res.Facts), len(res.Gaps), res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// supervise runs the tool loop until the oracle finishes, stalls, or the
// iteration budget runs out. The latter two are implicit finishes recorded
// as gaps, not errors.
func (e *Engine) supervise(ctx context.Context, st *State, b bundle.Bundle, maxIters int) error {
	consecutiveThinks := 0
	for {
		if st.Iterations >= maxIters {
			st.addGap(fmt.Sprintf("tool iteration budget (%d) exhausted before the supervisor finished", maxIters))
			e.telemetry.GapRecorded()
			return nil
		}
		if err := ctx.Err(); err != nil {
			return CollaboratorTimeoutError{Op: "supervisor loop", Err: err}
		}

		call, err := e.oracle.Decide(ctx, b.SupervisorPrompt(st.Subject, st.GapSummary, st.LastNote()))
		if err != nil {
			return CollaboratorError{Op: "supervisor decision", Err: err}
		}
		call.At = time.Now().UTC()
		st.appendCall(call)
		st.Iterations++
		e.telemetry.ToolCall(string(call.Kind))

		switch call.Kind {
		case ToolFinish:
			return nil
		case ToolThink:
			consecutiveThinks++
			if consecutiveThinks >= 2 {
				st.addGap("supervisor stalled on consecutive reflection steps without new research")
				e.telemetry.GapRecorded()
				return nil
			}
		case ToolResearch:
			consecutiveThinks = 0
			if err := e.researchBatch(ctx, st, b, call.Query); err != nil {
				return err
			}
		default:
			return CollaboratorError{Op: "supervisor decision", Err: fmt.Errorf("unrecognized tool %q", call.Kind)}
		}
	}
}

// researchBatch dispatches one query across the bundle's domains and then
// refreshes the gap summary the next supervisor prompt will see.
func (e *Engine) researchBatch(ctx context.Context, st *State, b bundle.Bundle, query string) error {
	factsBefore := len(st.Facts)
	gapsBefore := len(st.Gaps)

	if err := e.dispatcher.Dispatch(ctx, st, b, query); err != nil {
		var allFailed DispatcherAllFailedError
		if errors.As(err, &allFailed) {
			return err
		}
		return CollaboratorError{Op: "dispatch", Err: err}
	}

	e.telemetry.FactsMerged(len(st.Facts) - factsBefore)
	for i := gapsBefore; i < len(st.Gaps); i++ {
		e.telemetry.GapRecorded()
	}
	e.logger.Printf("run %s: batch %q merged %d facts (%d total, %d gaps)",
		st.RunID, query, len(st.Facts)-factsBefore, len(st.Facts), len(st.Gaps))

	summary, err := e.oracle.Summarize(ctx, b.GapPrompt(Digest(st.Facts)))
	if err != nil {
		// Gap analysis is advisory; the supervisor can still decide from
		// its tool log.
		e.logger.Printf("run %s: gap analysis failed: %v", st.RunID, err)
		st.addGap(fmt.Sprintf("gap analysis unavailable: %v", err))
		e.telemetry.GapRecorded()
		return nil
	}
	st.GapSummary = summary
	return nil
}

func (e *Engine) abort(st *State, err error, started time.Time) (*Result, error) {
	e.telemetry.RunFinished("aborted", time.Since(started))
	e.logger.Printf("run %s: aborted: %v", st.RunID, err)
	return nil, RunFailure{Err: err, State: st}
}

// persist archives the finished result. Archive failures degrade to a log
// line; the caller already has the result in hand.
func (e *Engine) persist(ctx context.Context, res *Result) {
	if e.archive == nil {
		return
	}
	report, err := json.Marshal(res)
	if err != nil {
		e.logger.Printf("run %s: marshaling report for archive: %v", res.RunID, err)
		return
	}
	if err := e.archive.SaveRun(ctx, res.RunID, report); err != nil {
		e.logger.Printf("run %s: archiving report: %v", res.RunID, err)
	}
}
