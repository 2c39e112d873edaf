// Package openai_oracle implements the research oracle on the OpenAI Chat
// Completions API via the official client. Every method is a single
// prompt-and-parse exchange; retry policy lives with the callers.
package openai_oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/quillworks/scout/config"
	"github.com/quillworks/scout/internal/research"
)

type Oracle struct {
	client      openai.Client
	model       string
	temperature float64
	logger      *log.Logger
}

// New builds an oracle from LLM config. The API key is required; base URL is
// optional for OpenAI-compatible gateways.
func New(cfg config.LLMConfig, logger *log.Logger) (*Oracle, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm api_key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	return &Oracle{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

const decideSystem = `You are a research supervisor. You decide the single next step of an autonomous research run.

Respond ONLY with valid JSON in this format:
{"tool": "research" | "think" | "finish", "query": "search query when tool is research", "note": "reasoning when tool is think"}
Do not include any other text.`

// Decide asks for the next tool call given the supervisor prompt.
func (o *Oracle) Decide(ctx context.Context, prompt string) (research.ToolCall, error) {
	raw, err := o.complete(ctx, decideSystem, prompt)
	if err != nil {
		return research.ToolCall{}, err
	}
	var decision struct {
		Tool  string `json:"tool"`
		Query string `json:"query"`
		Note  string `json:"note"`
	}
	if err := json.Unmarshal(stripFences(raw), &decision); err != nil {
		return research.ToolCall{}, fmt.Errorf("parsing tool decision: %w", err)
	}
	kind := research.ToolKind(strings.ToLower(strings.TrimSpace(decision.Tool)))
	switch kind {
	case research.ToolResearch, research.ToolThink, research.ToolFinish:
	default:
		return research.ToolCall{}, fmt.Errorf("tool decision named unknown tool %q", decision.Tool)
	}
	if kind == research.ToolResearch && strings.TrimSpace(decision.Query) == "" {
		return research.ToolCall{}, fmt.Errorf("research decision carried no query")
	}
	return research.ToolCall{Kind: kind, Query: decision.Query, Note: decision.Note}, nil
}

// SelectURLs picks the k most promising URLs from search results.
func (o *Oracle) SelectURLs(ctx context.Context, question string, results []research.SearchResult, k int) ([]string, error) {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	prompt := fmt.Sprintf(`Research question: %s

Search results:
%s
Pick the %d most promising URLs for answering the question. Prefer primary and authoritative sources.
Respond ONLY with a JSON array of URL strings taken verbatim from the results above.`, question, b.String(), k)

	raw, err := o.complete(ctx, "", prompt)
	if err != nil {
		return nil, err
	}
	var urls []string
	if err := json.Unmarshal(stripFences(raw), &urls); err != nil {
		return nil, fmt.Errorf("parsing url selection: %w", err)
	}
	// Keep only URLs that actually appeared in the results.
	known := make(map[string]struct{}, len(results))
	for _, r := range results {
		known[r.URL] = struct{}{}
	}
	picked := urls[:0]
	for _, u := range urls {
		if _, ok := known[u]; ok {
			picked = append(picked, u)
		}
	}
	if len(picked) > k {
		picked = picked[:k]
	}
	if len(picked) == 0 {
		return nil, fmt.Errorf("url selection returned no usable urls")
	}
	return picked, nil
}

// JudgeRelevance reports whether a chunk says anything useful about subject.
func (o *Oracle) JudgeRelevance(ctx context.Context, subject, chunk string) (bool, error) {
	prompt := fmt.Sprintf(`Subject of research: %s

Text:
%s

Does this text contain information relevant to the subject? Respond ONLY with JSON: {"relevant": true} or {"relevant": false}`, subject, chunk)

	raw, err := o.complete(ctx, "", prompt)
	if err != nil {
		return false, err
	}
	var verdict struct {
		Relevant bool `json:"relevant"`
	}
	if err := json.Unmarshal(stripFences(raw), &verdict); err != nil {
		return false, fmt.Errorf("parsing relevance verdict: %w", err)
	}
	return verdict.Relevant, nil
}

// ExtractFacts pulls categorized facts out of a relevant chunk.
func (o *Oracle) ExtractFacts(ctx context.Context, subject, chunk string, categories []string) ([]research.FactRecord, error) {
	prompt := fmt.Sprintf(`Subject of research: %s

Text:
%s

Extract every distinct fact about the subject from the text. Categorize each into exactly one of: %s.
Respond ONLY with a JSON array:
[{"category": "...", "title": "short title", "content": "one or two sentences", "source_date": "YYYY-MM-DD if the text states one, else empty"}]
Return [] if the text holds no facts about the subject.`, subject, chunk, strings.Join(categories, ", "))

	raw, err := o.complete(ctx, "", prompt)
	if err != nil {
		return nil, err
	}
	var facts []research.FactRecord
	if err := json.Unmarshal(stripFences(raw), &facts); err != nil {
		return nil, fmt.Errorf("parsing extracted facts: %w", err)
	}
	return facts, nil
}

// Summarize returns a free-text answer, used for gap analysis.
func (o *Oracle) Summarize(ctx context.Context, prompt string) (string, error) {
	return o.complete(ctx, "", prompt)
}

// RenderStructured asks for raw JSON conforming to the prompt's schema.
func (o *Oracle) RenderStructured(ctx context.Context, prompt string) (json.RawMessage, error) {
	raw, err := o.complete(ctx, "You respond ONLY with valid JSON and no surrounding text.", prompt)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(stripFences(raw)), nil
}

func (o *Oracle) complete(ctx context.Context, system, user string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       o.model,
		Messages:    messages,
		Temperature: openai.Float(o.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite instructions.
func stripFences(s string) []byte {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return []byte(strings.TrimSpace(s))
}
