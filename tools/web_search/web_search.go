package web_search

import (
	"context"
	"strings"

	"github.com/quillworks/scout/config"
	"github.com/quillworks/scout/tools/web_search/brave"
	"github.com/quillworks/scout/tools/web_search/duckduckgo"
	"github.com/quillworks/scout/tools/web_search/models"
	"github.com/quillworks/scout/tools/web_search/searxng"
	"github.com/quillworks/scout/tools/web_search/serper"
)

type WebSearcher interface {
	Discover(ctx context.Context, q string, k int, excludeHosts []string) ([]models.Result, error)
}

type Provider string

const (
	BraveProvider      Provider = "brave"
	SerperProvider     Provider = "serper"
	SearxngProvider    Provider = "searxng"
	DuckDuckGoProvider Provider = "duckduckgo"
)

type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

var ErrUnsupportedProvider = &Error{"unsupported provider"}

// NewWebSearcher builds the configured provider, auto-detecting from
// credentials when no provider name is given.
func NewWebSearcher(cfg config.SearchConfig) (WebSearcher, error) {
	provider := Provider(strings.ToLower(strings.TrimSpace(cfg.Provider)))
	if provider == "" {
		provider = detect(cfg)
	}
	switch provider {
	case BraveProvider:
		return brave.Search{ApiKey: cfg.BraveAPIKey}, nil
	case SerperProvider:
		return serper.Search{ApiKey: cfg.SerperAPIKey}, nil
	case SearxngProvider:
		return searxng.Search{BaseURL: cfg.SearxngURL}, nil
	case DuckDuckGoProvider:
		return duckduckgo.Search{}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

// detect picks the first provider with credentials, in priority order,
// falling back to the keyless duckduckgo scraper.
func detect(cfg config.SearchConfig) Provider {
	switch {
	case cfg.BraveAPIKey != "":
		return BraveProvider
	case cfg.SerperAPIKey != "":
		return SerperProvider
	case cfg.SearxngURL != "":
		return SearxngProvider
	}
	return DuckDuckGoProvider
}
