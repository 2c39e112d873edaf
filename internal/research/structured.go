package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/quillworks/scout/internal/bundle"
	"github.com/quillworks/scout/internal/telemetry"
)

// structurer renders the accumulated facts into the bundle's output schema.
// Each failed attempt feeds the validation error back to the oracle as a
// corrective hint; the ceiling is a hard stop, never a partially valid
// answer.
type structurer struct {
	oracle    Oracle
	retries   int
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

func (s *structurer) Render(ctx context.Context, st *State, b bundle.Bundle) (any, json.RawMessage, error) {
	prompt := b.StructurePrompt(st.Subject, Digest(st.Facts))

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, CollaboratorTimeoutError{Op: "structured output", Err: err}
		}
		p := prompt
		if lastErr != nil {
			s.telemetry.OracleRetry("structured output")
			p += fmt.Sprintf("\n\nYour previous answer was rejected: %v\nReturn corrected JSON that fixes this.", lastErr)
		}
		raw, err := s.oracle.RenderStructured(ctx, p)
		if err != nil {
			lastErr = CollaboratorError{Op: "structured output", Err: err}
			s.logger.Printf("structured output attempt %d: %v", attempt+1, err)
			continue
		}
		out, err := b.DecodeOutput(raw)
		if err != nil {
			lastErr = err
			s.logger.Printf("structured output attempt %d rejected: %v", attempt+1, err)
			continue
		}
		return out, raw, nil
	}
	return nil, nil, ValidationError{Attempt: s.retries + 1, Err: lastErr}
}

// Digest renders the fact set grouped by category, in a stable order, for
// oracle prompts. Facts keep their merge order within a category.
func Digest(facts []FactRecord) string {
	if len(facts) == 0 {
		return "(no facts gathered yet)"
	}
	byCat := make(map[string][]FactRecord)
	for _, f := range facts {
		byCat[f.Category] = append(byCat[f.Category], f)
	}
	cats := make([]string, 0, len(byCat))
	for c := range byCat {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	var b strings.Builder
	for _, c := range cats {
		fmt.Fprintf(&b, "## %s\n", c)
		for _, f := range byCat[c] {
			fmt.Fprintf(&b, "- %s: %s", f.Title, f.Content)
			if f.SourceDate != "" {
				fmt.Fprintf(&b, " (%s)", f.SourceDate)
			}
			if f.SourceURL != "" {
				fmt.Fprintf(&b, " [%s]", f.SourceURL)
			}
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}
