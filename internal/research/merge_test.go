package research

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", 0)
}

func TestMergeFactExactDuplicateDropped(t *testing.T) {
	f := FactRecord{ID: "a", Category: "career", Title: "First Program", Content: "Wrote the first published algorithm."}
	set := mergeFact(nil, f, 0.55)
	dup := f
	dup.ID = "b"
	set = mergeFact(set, dup, 0.55)
	if len(set) != 1 {
		t.Fatalf("expected 1 fact after exact duplicate, got %d", len(set))
	}
	if set[0].ID != "a" {
		t.Fatalf("duplicate replaced the original: got id %s", set[0].ID)
	}
}

func TestMergeFactNearDuplicateKeepsMoreDetailed(t *testing.T) {
	short := FactRecord{ID: "a", Category: "career", Title: "First Program",
		Content: "She wrote the first published algorithm for a machine."}
	long := FactRecord{ID: "b", Category: "career", Title: "First Program",
		Content: "She wrote the first published algorithm for a machine, the Analytical Engine, in 1843."}

	set := mergeFact(nil, short, 0.55)
	set = mergeFact(set, long, 0.55)
	if len(set) != 1 {
		t.Fatalf("expected near-duplicates to collapse, got %d facts", len(set))
	}
	if set[0].Content != long.Content {
		t.Fatalf("kept the less detailed version: %q", set[0].Content)
	}
	if set[0].ID != "a" {
		t.Fatalf("merge changed canonical identity: got id %s", set[0].ID)
	}
}

func TestMergeFactNearDuplicateTieBreaksOnRecency(t *testing.T) {
	older := FactRecord{ID: "a", Category: "news", Title: "Funding Round",
		Content: "Raised a large series B round this year xx.", SourceDate: "2024-01-10"}
	newer := older
	newer.ID = "b"
	newer.Content = "Raised a large series B round this year yy."
	newer.SourceDate = "2025-06-01"

	set := mergeFact(nil, older, 0.55)
	set = mergeFact(set, newer, 0.55)
	if len(set) != 1 {
		t.Fatalf("expected collapse, got %d facts", len(set))
	}
	if set[0].SourceDate != "2025-06-01" {
		t.Fatalf("expected the more recent version to win, got date %s", set[0].SourceDate)
	}
}

func TestMergeFactReplacementCollapsesTransitively(t *testing.T) {
	// first and second share too little to collapse, but a richer third
	// version overlaps both. After it replaces first, the set must not be
	// left holding two near-duplicates of the same signature.
	first := FactRecord{ID: "a", Category: "career", Title: "Funding",
		Content: "alpha beta gamma delta epsilon zeta eta"}
	second := FactRecord{ID: "b", Category: "career", Title: "Funding",
		Content: "delta epsilon zeta eta theta iota kappa"}
	third := FactRecord{ID: "c", Category: "career", Title: "Funding",
		Content: "alpha beta gamma delta epsilon zeta eta theta iota kappa"}

	set := mergeFact(nil, first, 0.55)
	set = mergeFact(set, second, 0.55)
	if len(set) != 2 {
		t.Fatalf("setup: low-overlap versions should coexist, got %d", len(set))
	}
	set = mergeFact(set, third, 0.55)
	if len(set) != 1 {
		t.Fatalf("same-signature near-duplicates survived the merge: %d facts", len(set))
	}
	if set[0].Content != third.Content {
		t.Fatalf("kept the less detailed version: %q", set[0].Content)
	}
	if set[0].ID != "a" {
		t.Fatalf("merge changed canonical identity: got id %s", set[0].ID)
	}
}

func TestMergeFactDistinctFactsAccumulate(t *testing.T) {
	a := FactRecord{Category: "career", Title: "First Program", Content: "Published algorithm notes."}
	b := FactRecord{Category: "early", Title: "Mathematics Tutoring", Content: "Tutored by De Morgan."}
	set := mergeFact(nil, a, 0.55)
	set = mergeFact(set, b, 0.55)
	if len(set) != 2 {
		t.Fatalf("distinct facts collapsed: got %d", len(set))
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	m := newMerger(&fakeOracle{}, 800, 20, 2, 0.55, testLogger())
	st := NewState("run", "Ada Lovelace", "biography")
	delta := []FactRecord{
		{ID: "1", Category: "career", Title: "First Program", Content: "Published the first algorithm."},
		{ID: "2", Category: "legacy", Title: "Language Named", Content: "The Ada language is named for her."},
	}
	if added := m.Apply(st, delta); added != 2 {
		t.Fatalf("first apply added %d, want 2", added)
	}
	if added := m.Apply(st, delta); added != 0 {
		t.Fatalf("second apply added %d, want 0", added)
	}
	if len(st.Facts) != 2 {
		t.Fatalf("fact set grew on re-merge: %d", len(st.Facts))
	}
}

func TestBuildDeltaIdenticalChunksDedup(t *testing.T) {
	oracle := &fakeOracle{
		extractFn: func(subject, chunk string, categories []string) ([]FactRecord, error) {
			return []FactRecord{{Category: "career", Title: "First Program", Content: "Published the first algorithm."}}, nil
		},
	}
	m := newMerger(oracle, 5, 20, 2, 0.55, testLogger())
	// Two identical chunks worth of text.
	words := strings.Repeat("one two three four five ", 2)
	page := Page{URL: "https://example.com/a", Text: words}

	delta, gaps := m.BuildDelta(context.Background(), "Ada Lovelace", []string{"career"}, page)
	if len(gaps) != 0 {
		t.Fatalf("unexpected gaps: %v", gaps)
	}
	if len(delta) != 1 {
		t.Fatalf("identical chunks produced %d facts, want 1", len(delta))
	}
}

func TestBuildDeltaChunkCap(t *testing.T) {
	oracle := &fakeOracle{}
	m := newMerger(oracle, 2, 3, 2, 0.55, testLogger())
	page := Page{URL: "https://example.com/a", Text: strings.Repeat("word ", 40)}

	m.BuildDelta(context.Background(), "subject", []string{"career"}, page)
	if oracle.judgeCalls != 3 {
		t.Fatalf("chunk cap not applied: %d relevance calls, want 3", oracle.judgeCalls)
	}
}

func TestBuildDeltaRelevanceFailureDropsChunkWithGap(t *testing.T) {
	oracle := &fakeOracle{
		judgeFn: func(subject, chunk string) (bool, error) {
			return false, errors.New("oracle down")
		},
	}
	m := newMerger(oracle, 800, 20, 2, 0.55, testLogger())
	page := Page{URL: "https://example.com/a", Text: "relevant text"}

	delta, gaps := m.BuildDelta(context.Background(), "subject", []string{"career"}, page)
	if len(delta) != 0 {
		t.Fatalf("failed chunk still produced facts: %d", len(delta))
	}
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap for the dropped chunk, got %d", len(gaps))
	}
	// First attempt plus two retries.
	if oracle.judgeCalls != 3 {
		t.Fatalf("retry budget not honored: %d calls, want 3", oracle.judgeCalls)
	}
}

func TestBuildDeltaRelevanceRecoversWithinBudget(t *testing.T) {
	calls := 0
	oracle := &fakeOracle{
		judgeFn: func(subject, chunk string) (bool, error) {
			calls++
			if calls == 1 {
				return false, errors.New("transient")
			}
			return true, nil
		},
		extractFn: func(subject, chunk string, categories []string) ([]FactRecord, error) {
			return []FactRecord{{Category: "career", Title: "T", Content: "C"}}, nil
		},
	}
	m := newMerger(oracle, 800, 20, 2, 0.55, testLogger())
	delta, gaps := m.BuildDelta(context.Background(), "subject", []string{"career"}, Page{URL: "u", Text: "text"})
	if len(gaps) != 0 {
		t.Fatalf("recovered chunk still recorded gaps: %v", gaps)
	}
	if len(delta) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(delta))
	}
}

func TestBuildDeltaFiltersTaxonomyAndFillsSource(t *testing.T) {
	oracle := &fakeOracle{
		extractFn: func(subject, chunk string, categories []string) ([]FactRecord, error) {
			return []FactRecord{
				{Category: "career", Title: "Keep", Content: "kept fact"},
				{Category: "weather", Title: "Drop", Content: "off-taxonomy"},
				{Category: "career", Title: "", Content: "no title"},
			}, nil
		},
	}
	m := newMerger(oracle, 800, 20, 2, 0.55, testLogger())
	page := Page{URL: "https://example.com/a", Text: "text", PublishedAt: "2024-03-01"}
	delta, _ := m.BuildDelta(context.Background(), "subject", []string{"career"}, page)
	if len(delta) != 1 {
		t.Fatalf("taxonomy filter failed: got %d facts", len(delta))
	}
	f := delta[0]
	if f.SourceURL != page.URL || f.SourceDate != "2024-03-01" {
		t.Fatalf("source attribution missing: %+v", f)
	}
	if f.ID == "" {
		t.Fatalf("fact did not receive an id")
	}
}

func TestChunkWords(t *testing.T) {
	chunks := chunkWords("a b c d e f g", 3)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[2] != "g" {
		t.Fatalf("trailing chunk wrong: %q", chunks[2])
	}
	if chunkWords("   ", 3) != nil {
		t.Fatalf("blank text should produce no chunks")
	}
}

func TestJaccard(t *testing.T) {
	a := contentTokens("the quick brown fox")
	b := contentTokens("the quick brown dog")
	got := jaccard(a, b)
	if got <= 0.5 || got >= 0.7 {
		t.Fatalf("jaccard(%v, %v) = %f, want 3/5", a, b, got)
	}
	if jaccard(nil, nil) != 1 {
		t.Fatalf("empty sets should be identical")
	}
}
