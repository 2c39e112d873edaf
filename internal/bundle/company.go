package bundle

import (
	"fmt"
	"strings"
)

// CompanyFact is a single researched fact about a company.
type CompanyFact struct {
	Category   string `json:"category"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	SourceDate string `json:"source_date,omitempty"`
}

// CompanyProfile is the company output schema.
type CompanyProfile struct {
	CompanyName string        `json:"company_name"`
	Facts       []CompanyFact `json:"facts"`
}

// Company researches companies and organizations across a fixed taxonomy of
// business facets.
type Company struct{}

func (Company) Name() string        { return "company" }
func (Company) DisplayName() string { return "Company Research" }
func (Company) SubjectNoun() string { return "company" }

func (Company) Domains() []Domain {
	return []Domain{
		{Label: "overview", Hint: "founding history mission headquarters"},
		{Label: "leadership", Hint: "CEO executives board members"},
		{Label: "products", Hint: "products services offerings"},
		{Label: "financials", Hint: "revenue funding valuation financial results"},
		{Label: "news", Hint: "recent news developments partnerships"},
	}
}

func (c Company) Categories() []string {
	cats := make([]string, 0, len(c.Domains()))
	for _, d := range c.Domains() {
		cats = append(cats, d.Label)
	}
	return cats
}

func (Company) SupervisorPrompt(subject, gapSummary, lastNote string) string {
	return fmt.Sprintf(`You are a meticulous business research agent building a company profile for: %s.

Missing information:
%s

Your previous reflection:
%s

Pick exactly ONE action:
- research: provide a search query targeting the weakest area (overview, leadership, products, financials, recent news).
- think: record a short reflection planning the next query. Never think twice in a row.
- finish: call this ONLY when the profile covers all five areas.`,
		subject, orDefault(gapSummary, "Everything is missing."), orDefault(lastNote, "(none)"))
}

func (Company) GapPrompt(digest string) string {
	return fmt.Sprintf(`Analyze the following company information and name the 2 biggest gaps. Be brief and specific.

Company information:
%s

Gaps:`, digest)
}

func (Company) StructurePrompt(subject, digest string) string {
	return fmt.Sprintf(`Convert the research data for %s into JSON matching this schema exactly:
{"company_name":"...","facts":[{"category":"overview","title":"...","content":"...","source_date":"..."}]}

Categories must be one of: overview, leadership, products, financials, news.
Return ONLY the JSON object.

Research data:
%s`, subject, digest)
}

func (c Company) DecodeOutput(raw []byte) (any, error) {
	var out CompanyProfile
	if err := decodeStrict(raw, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.CompanyName) == "" {
		return nil, fmt.Errorf("company_name is empty")
	}
	if len(out.Facts) == 0 {
		return nil, fmt.Errorf("profile must contain at least one fact")
	}
	valid := make(map[string]struct{})
	for _, cat := range c.Categories() {
		valid[cat] = struct{}{}
	}
	for i, f := range out.Facts {
		if strings.TrimSpace(f.Title) == "" || strings.TrimSpace(f.Content) == "" {
			return nil, fmt.Errorf("fact %d is missing a title or content", i)
		}
		if _, ok := valid[f.Category]; !ok {
			return nil, fmt.Errorf("fact %q has unknown category %q", f.Title, f.Category)
		}
	}
	return &out, nil
}
