package bundle

import (
	"fmt"
	"strings"
)

// MarketInsight is one key finding about a market or industry.
type MarketInsight struct {
	Category   string   `json:"category"`
	Title      string   `json:"title"`
	Insight    string   `json:"insight"`
	DataPoints []string `json:"data_points,omitempty"`
}

// MarketReport is the market output schema.
type MarketReport struct {
	MarketName string          `json:"market_name"`
	Insights   []MarketInsight `json:"insights"`
}

// Market researches markets and industries across a fixed taxonomy.
type Market struct{}

func (Market) Name() string        { return "market" }
func (Market) DisplayName() string { return "Market Research" }
func (Market) SubjectNoun() string { return "market" }

func (Market) Domains() []Domain {
	return []Domain{
		{Label: "overview", Hint: "market size value growth rate"},
		{Label: "players", Hint: "key companies market leaders market share"},
		{Label: "trends", Hint: "trends growth drivers innovations"},
		{Label: "challenges", Hint: "challenges barriers risks"},
		{Label: "outlook", Hint: "forecast opportunities future outlook"},
	}
}

func (m Market) Categories() []string {
	cats := make([]string, 0, len(m.Domains()))
	for _, d := range m.Domains() {
		cats = append(cats, d.Label)
	}
	return cats
}

func (Market) SupervisorPrompt(subject, gapSummary, lastNote string) string {
	return fmt.Sprintf(`You are a market research agent building a report on: %s.

Missing information:
%s

Your previous reflection:
%s

Pick exactly ONE action:
- research: provide a search query targeting the weakest area (market size, key players, trends, challenges, outlook).
- think: record a short reflection planning the next query. Never think twice in a row.
- finish: call this ONLY when the report covers all five areas with supporting data.`,
		subject, orDefault(gapSummary, "Everything is missing."), orDefault(lastNote, "(none)"))
}

func (Market) GapPrompt(digest string) string {
	return fmt.Sprintf(`Analyze the following market research and name the 2 biggest gaps. Be brief and specific.

Market research:
%s

Gaps:`, digest)
}

func (Market) StructurePrompt(subject, digest string) string {
	return fmt.Sprintf(`Convert the research data on %s into JSON matching this schema exactly:
{"market_name":"...","insights":[{"category":"overview","title":"...","insight":"...","data_points":["..."]}]}

Categories must be one of: overview, players, trends, challenges, outlook.
Return ONLY the JSON object.

Research data:
%s`, subject, digest)
}

func (m Market) DecodeOutput(raw []byte) (any, error) {
	var out MarketReport
	if err := decodeStrict(raw, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.MarketName) == "" {
		return nil, fmt.Errorf("market_name is empty")
	}
	if len(out.Insights) == 0 {
		return nil, fmt.Errorf("report must contain at least one insight")
	}
	valid := make(map[string]struct{})
	for _, cat := range m.Categories() {
		valid[cat] = struct{}{}
	}
	for i, in := range out.Insights {
		if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Insight) == "" {
			return nil, fmt.Errorf("insight %d is missing a title or insight text", i)
		}
		if _, ok := valid[in.Category]; !ok {
			return nil, fmt.Errorf("insight %q has unknown category %q", in.Title, in.Category)
		}
	}
	return &out, nil
}
