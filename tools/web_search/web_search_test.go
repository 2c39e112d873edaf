package web_search

import (
	"errors"
	"testing"

	"github.com/quillworks/scout/config"
)

func TestNewWebSearcherAutoDetect(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.SearchConfig
		want Provider
	}{
		{"brave wins", config.SearchConfig{BraveAPIKey: "b", SerperAPIKey: "s", SearxngURL: "http://sx"}, BraveProvider},
		{"serper next", config.SearchConfig{SerperAPIKey: "s", SearxngURL: "http://sx"}, SerperProvider},
		{"searxng last", config.SearchConfig{SearxngURL: "http://sx"}, SearxngProvider},
		{"duckduckgo without credentials", config.SearchConfig{}, DuckDuckGoProvider},
	}
	for _, tc := range cases {
		if got := detect(tc.cfg); got != tc.want {
			t.Fatalf("%s: detect = %s, want %s", tc.name, got, tc.want)
		}
		if _, err := NewWebSearcher(tc.cfg); err != nil {
			t.Fatalf("%s: constructor failed: %v", tc.name, err)
		}
	}
}

func TestNewWebSearcherExplicitProvider(t *testing.T) {
	if _, err := NewWebSearcher(config.SearchConfig{Provider: "Serper", SerperAPIKey: "s"}); err != nil {
		t.Fatalf("case-insensitive provider name rejected: %v", err)
	}
	if _, err := NewWebSearcher(config.SearchConfig{Provider: "altavista"}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}
