package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// fakeOracle scripts oracle behavior per method. Unset methods return benign
// defaults so each test only scripts what it cares about.
type fakeOracle struct {
	mu sync.Mutex

	decideFn    func(call int, prompt string) (ToolCall, error)
	selectFn    func(question string, results []SearchResult, k int) ([]string, error)
	judgeFn     func(subject, chunk string) (bool, error)
	extractFn   func(subject, chunk string, categories []string) ([]FactRecord, error)
	summarizeFn func(prompt string) (string, error)
	renderFn    func(call int, prompt string) (json.RawMessage, error)

	decideCalls int
	renderCalls int
	judgeCalls  int
}

func (o *fakeOracle) Decide(ctx context.Context, prompt string) (ToolCall, error) {
	o.mu.Lock()
	n := o.decideCalls
	o.decideCalls++
	o.mu.Unlock()
	if o.decideFn == nil {
		return ToolCall{Kind: ToolFinish}, nil
	}
	return o.decideFn(n, prompt)
}

func (o *fakeOracle) SelectURLs(ctx context.Context, question string, results []SearchResult, k int) ([]string, error) {
	if o.selectFn != nil {
		return o.selectFn(question, results, k)
	}
	urls := make([]string, 0, k)
	for i, r := range results {
		if i >= k {
			break
		}
		urls = append(urls, r.URL)
	}
	return urls, nil
}

func (o *fakeOracle) JudgeRelevance(ctx context.Context, subject, chunk string) (bool, error) {
	o.mu.Lock()
	o.judgeCalls++
	o.mu.Unlock()
	if o.judgeFn != nil {
		return o.judgeFn(subject, chunk)
	}
	return true, nil
}

func (o *fakeOracle) ExtractFacts(ctx context.Context, subject, chunk string, categories []string) ([]FactRecord, error) {
	if o.extractFn != nil {
		return o.extractFn(subject, chunk, categories)
	}
	return nil, nil
}

func (o *fakeOracle) Summarize(ctx context.Context, prompt string) (string, error) {
	if o.summarizeFn != nil {
		return o.summarizeFn(prompt)
	}
	return "no gaps", nil
}

func (o *fakeOracle) RenderStructured(ctx context.Context, prompt string) (json.RawMessage, error) {
	o.mu.Lock()
	n := o.renderCalls
	o.renderCalls++
	o.mu.Unlock()
	if o.renderFn != nil {
		return o.renderFn(n, prompt)
	}
	return json.RawMessage(`{}`), nil
}

// fakeSearcher returns canned results per query substring, or an error for
// matching domains.
type fakeSearcher struct {
	fn func(ctx context.Context, query string, k int, excludeHosts []string) ([]SearchResult, error)
}

func (s fakeSearcher) Search(ctx context.Context, query string, k int, excludeHosts []string) ([]SearchResult, error) {
	if s.fn != nil {
		return s.fn(ctx, query, k, excludeHosts)
	}
	return []SearchResult{{URL: urlFor(query), Title: "result for " + query, Snippet: "snippet"}}, nil
}

func urlFor(query string) string {
	host := strings.ReplaceAll(strings.ToLower(query), " ", "-")
	if len(host) > 40 {
		host = host[:40]
	}
	return fmt.Sprintf("https://%s.example.com/article", host)
}

// fakeFetcher serves pages by URL.
type fakeFetcher struct {
	fn func(ctx context.Context, url string) (Page, error)
}

func (f fakeFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	if f.fn != nil {
		return f.fn(ctx, url)
	}
	return Page{URL: url, Title: "page", Text: "some text about the subject"}, nil
}

// fakeArchive records what was saved.
type fakeArchive struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func (a *fakeArchive) SaveRun(ctx context.Context, runID string, report []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.saved == nil {
		a.saved = make(map[string][]byte)
	}
	a.saved[runID] = report
	return nil
}
