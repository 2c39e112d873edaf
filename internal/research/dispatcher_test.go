package research

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/quillworks/scout/internal/bundle"
)

// twoDomains is a minimal bundle for dispatcher tests.
type twoDomains struct{}

func (twoDomains) Name() string        { return "two" }
func (twoDomains) DisplayName() string { return "Two Domains" }
func (twoDomains) SubjectNoun() string { return "subject" }
func (twoDomains) Domains() []bundle.Domain {
	return []bundle.Domain{
		{Label: "alpha", Hint: "alpha hint"},
		{Label: "beta", Hint: "beta hint"},
	}
}
func (twoDomains) Categories() []string { return []string{"alpha", "beta"} }
func (twoDomains) SupervisorPrompt(subject, gapSummary, lastNote string) string {
	return "supervise " + subject
}
func (twoDomains) GapPrompt(digest string) string          { return "gaps " + digest }
func (twoDomains) StructurePrompt(subject, digest string) string {
	return "structure " + subject
}
func (twoDomains) DecodeOutput(raw []byte) (any, error) { return string(raw), nil }

func testDispatcher(searcher Searcher, fetcher Fetcher, oracle Oracle, timeout time.Duration) *Dispatcher {
	m := newMerger(oracle, 800, 20, 2, 0.55, testLogger())
	return newDispatcher(searcher, fetcher, oracle, m, 2, 6, timeout, testLogger())
}

func extractPerDomain() func(subject, chunk string, categories []string) ([]FactRecord, error) {
	return func(subject, chunk string, categories []string) ([]FactRecord, error) {
		cat := "alpha"
		if strings.Contains(chunk, "beta") {
			cat = "beta"
		}
		return []FactRecord{{Category: cat, Title: "fact " + cat, Content: "content about " + cat}}, nil
	}
}

func TestDispatchMergesAllDomains(t *testing.T) {
	oracle := &fakeOracle{extractFn: extractPerDomain()}
	fetcher := fakeFetcher{fn: func(ctx context.Context, url string) (Page, error) {
		return Page{URL: url, Text: "text for " + url}, nil
	}}
	searcher := fakeSearcher{fn: func(ctx context.Context, query string, k int, excludeHosts []string) ([]SearchResult, error) {
		host := "alpha"
		if strings.Contains(query, "beta") {
			host = "beta"
		}
		return []SearchResult{{URL: "https://" + host + ".example.com/a", Title: host, Snippet: host}}, nil
	}}

	d := testDispatcher(searcher, fetcher, oracle, time.Minute)
	st := NewState("run", "subject", "two")
	if err := d.Dispatch(context.Background(), st, twoDomains{}, "subject query"); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if len(st.Domains) != 2 {
		t.Fatalf("expected 2 domain results, got %d", len(st.Domains))
	}
	for _, label := range []string{"alpha", "beta"} {
		res, ok := st.Domains[label]
		if !ok {
			t.Fatalf("missing result for domain %s", label)
		}
		if res.Query.Status != DomainSucceeded {
			t.Fatalf("domain %s status = %s", label, res.Query.Status)
		}
	}
	if len(st.Facts) != 2 {
		t.Fatalf("expected 2 merged facts, got %d", len(st.Facts))
	}
	if _, ok := st.UsedHosts["alpha.example.com"]; !ok {
		t.Fatalf("used host not recorded: %v", st.UsedHosts)
	}
}

func TestDispatchPartialFailureDegradesToGaps(t *testing.T) {
	oracle := &fakeOracle{extractFn: extractPerDomain()}
	searcher := fakeSearcher{fn: func(ctx context.Context, query string, k int, excludeHosts []string) ([]SearchResult, error) {
		if strings.Contains(query, "beta") {
			return nil, errors.New("provider unavailable")
		}
		return []SearchResult{{URL: "https://alpha.example.com/a", Title: "alpha", Snippet: "alpha"}}, nil
	}}

	d := testDispatcher(searcher, fakeFetcher{}, oracle, time.Minute)
	st := NewState("run", "subject", "two")
	if err := d.Dispatch(context.Background(), st, twoDomains{}, "subject query"); err != nil {
		t.Fatalf("partial failure must not error the batch: %v", err)
	}

	if st.Domains["beta"].Query.Status != DomainFailed {
		t.Fatalf("beta status = %s, want failed", st.Domains["beta"].Query.Status)
	}
	if st.Domains["alpha"].Query.Status != DomainSucceeded {
		t.Fatalf("alpha status = %s, want succeeded", st.Domains["alpha"].Query.Status)
	}
	if len(st.Gaps) == 0 {
		t.Fatalf("failed domain left no gap")
	}
}

func TestDispatchAllFailed(t *testing.T) {
	searcher := fakeSearcher{fn: func(ctx context.Context, query string, k int, excludeHosts []string) ([]SearchResult, error) {
		return nil, errors.New("provider unavailable")
	}}
	d := testDispatcher(searcher, fakeFetcher{}, &fakeOracle{}, time.Minute)
	st := NewState("run", "subject", "two")

	err := d.Dispatch(context.Background(), st, twoDomains{}, "subject query")
	var allFailed DispatcherAllFailedError
	if !errors.As(err, &allFailed) {
		t.Fatalf("expected DispatcherAllFailedError, got %v", err)
	}
	if len(allFailed.Domains) != 2 {
		t.Fatalf("expected both domains reported, got %v", allFailed.Domains)
	}
}

func TestDispatchDomainTimeout(t *testing.T) {
	searcher := fakeSearcher{fn: func(ctx context.Context, query string, k int, excludeHosts []string) ([]SearchResult, error) {
		if strings.Contains(query, "beta") {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []SearchResult{{URL: "https://alpha.example.com/a", Title: "alpha", Snippet: "alpha"}}, nil
	}}
	oracle := &fakeOracle{extractFn: extractPerDomain()}

	d := testDispatcher(searcher, fakeFetcher{}, oracle, 50*time.Millisecond)
	st := NewState("run", "subject", "two")
	if err := d.Dispatch(context.Background(), st, twoDomains{}, "subject query"); err != nil {
		t.Fatalf("timeout of one domain must not error the batch: %v", err)
	}
	if st.Domains["beta"].Query.Status != DomainTimedOut {
		t.Fatalf("beta status = %s, want timed_out", st.Domains["beta"].Query.Status)
	}
}

func TestDispatchExclusionSnapshot(t *testing.T) {
	var seen [][]string
	searcher := fakeSearcher{fn: func(ctx context.Context, query string, k int, excludeHosts []string) ([]SearchResult, error) {
		seen = append(seen, excludeHosts)
		return []SearchResult{{URL: "https://fresh.example.com/a", Title: "t", Snippet: "s"}}, nil
	}}
	oracle := &fakeOracle{extractFn: extractPerDomain()}

	d := testDispatcher(searcher, fakeFetcher{}, oracle, time.Minute)
	st := NewState("run", "subject", "single")
	st.UsedHosts["stale.example.com"] = struct{}{}

	// Single implicit domain keeps the searcher calls sequential.
	if err := d.Dispatch(context.Background(), st, bundle.Biography{}, "subject"); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if len(seen) != 1 || len(seen[0]) != 1 || seen[0][0] != "stale.example.com" {
		t.Fatalf("exclusion snapshot not passed to searcher: %v", seen)
	}
	if _, ok := st.UsedHosts["fresh.example.com"]; !ok {
		t.Fatalf("new host not recorded after batch")
	}
}

func TestDispatchExclusionOrderIsStable(t *testing.T) {
	var seen [][]string
	searcher := fakeSearcher{fn: func(ctx context.Context, query string, k int, excludeHosts []string) ([]SearchResult, error) {
		seen = append(seen, excludeHosts)
		return []SearchResult{{URL: "https://fresh.example.com/a", Title: "t", Snippet: "s"}}, nil
	}}
	d := testDispatcher(searcher, fakeFetcher{}, &fakeOracle{extractFn: extractPerDomain()}, time.Minute)

	hosts := []string{"zeta.example.com", "mid.example.com", "alpha.example.com", "beta.example.com"}
	for i := 0; i < 20; i++ {
		st := NewState("run", "subject", "single")
		for _, h := range hosts {
			st.UsedHosts[h] = struct{}{}
		}
		if err := d.Dispatch(context.Background(), st, bundle.Biography{}, "subject"); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
	}
	want := "alpha.example.com beta.example.com mid.example.com zeta.example.com"
	for _, got := range seen {
		if strings.Join(got, " ") != want {
			t.Fatalf("exclusion order varies between identical batches: %v", got)
		}
	}
}

func TestDomainQueryComposition(t *testing.T) {
	if got := domainQuery("Acme Corp", bundle.Domain{Label: "financials", Hint: "revenue funding"}); got != "Acme Corp revenue funding" {
		t.Fatalf("domainQuery = %q", got)
	}
	if got := domainQuery("Acme Corp", bundle.Domain{Label: "general"}); got != "Acme Corp" {
		t.Fatalf("hintless domainQuery = %q", got)
	}
}
