package research

import (
	"context"
	"fmt"

	"github.com/quillworks/scout/config"
	"github.com/quillworks/scout/tools/web_fetch"
	"github.com/quillworks/scout/tools/web_search"
)

// NewSearcher adapts the configured search provider to the engine's
// Searcher collaborator.
func NewSearcher(cfg config.SearchConfig) (Searcher, error) {
	ws, err := web_search.NewWebSearcher(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating web searcher: %w", err)
	}
	return toolSearcher{ws: ws}, nil
}

// NewFetcher adapts the configured content extractor to the engine's
// Fetcher collaborator.
func NewFetcher(cfg config.FetchConfig) (Fetcher, error) {
	wf, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Type), cfg.Timeout, cfg.MaxChars)
	if err != nil {
		return nil, fmt.Errorf("creating web fetcher: %w", err)
	}
	return toolFetcher{wf: wf}, nil
}

type toolSearcher struct {
	ws web_search.WebSearcher
}

func (t toolSearcher) Search(ctx context.Context, query string, k int, excludeHosts []string) ([]SearchResult, error) {
	rs, err := t.ws.Discover(ctx, query, k, excludeHosts)
	if err != nil {
		return nil, err
	}
	out := make([]SearchResult, 0, len(rs))
	for _, r := range rs {
		out = append(out, SearchResult{URL: r.URL, Title: r.Title, Snippet: r.Snippet})
	}
	return out, nil
}

type toolFetcher struct {
	wf web_fetch.WebFetcher
}

func (t toolFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	r, err := t.wf.Exec(ctx, url)
	if err != nil {
		return Page{}, err
	}
	if r.Text == "" {
		return Page{}, fmt.Errorf("no extractable text at %s (status %d)", url, r.Status)
	}
	return Page{URL: r.URL, Title: r.Title, Text: r.Text, PublishedAt: r.PublishedAt}, nil
}
