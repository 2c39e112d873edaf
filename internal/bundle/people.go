package bundle

import (
	"fmt"
	"strings"
)

// PersonFact is a single researched fact about a person.
type PersonFact struct {
	Category   string `json:"category"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	SourceDate string `json:"source_date,omitempty"`
}

// PersonProfile is the people output schema.
type PersonProfile struct {
	PersonName string       `json:"person_name"`
	Summary    string       `json:"summary"`
	Facts      []PersonFact `json:"facts"`
}

// People is the deep-research type for living individuals. It is the richest
// taxonomy, fanning out across seven predefined domains per research call.
type People struct{}

func (People) Name() string        { return "people" }
func (People) DisplayName() string { return "People Research" }
func (People) SubjectNoun() string { return "person" }

func (People) Domains() []Domain {
	return []Domain{
		{Label: "identity", Hint: "age nationality location background"},
		{Label: "education", Hint: "education degrees universities"},
		{Label: "professional", Hint: "career history current role expertise"},
		{Label: "relationships", Hint: "family colleagues mentors partners"},
		{Label: "public_presence", Hint: "interviews publications social media"},
		{Label: "achievements", Hint: "awards recognition notable contributions"},
		{Label: "controversies", Hint: "controversies legal issues criticism"},
	}
}

func (p People) Categories() []string {
	cats := make([]string, 0, len(p.Domains()))
	for _, d := range p.Domains() {
		cats = append(cats, d.Label)
	}
	return cats
}

func (People) SupervisorPrompt(subject, gapSummary, lastNote string) string {
	return fmt.Sprintf(`You are a people research agent building a comprehensive profile for: %s.

Missing information:
%s

Your previous reflection:
%s

Pick exactly ONE action:
- research: provide a search query; it will be expanded across identity, education, professional, relationships, public presence, achievements, and controversies.
- think: record a short reflection planning the next query. Never think twice in a row.
- finish: call this ONLY when all seven areas are covered.`,
		subject, orDefault(gapSummary, "Everything is missing."), orDefault(lastNote, "(none)"))
}

func (People) GapPrompt(digest string) string {
	return fmt.Sprintf(`Analyze the following people research and name the 2-3 biggest gaps. Be brief and specific.

Research:
%s

Gaps:`, digest)
}

func (People) StructurePrompt(subject, digest string) string {
	return fmt.Sprintf(`Convert the research data for %s into JSON matching this schema exactly:
{"person_name":"...","summary":"...","facts":[{"category":"identity","title":"...","content":"...","source_date":"..."}]}

Categories must be one of: identity, education, professional, relationships, public_presence, achievements, controversies.
Return ONLY the JSON object.

Research data:
%s`, subject, digest)
}

func (p People) DecodeOutput(raw []byte) (any, error) {
	var out PersonProfile
	if err := decodeStrict(raw, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.PersonName) == "" {
		return nil, fmt.Errorf("person_name is empty")
	}
	if len(out.Facts) == 0 {
		return nil, fmt.Errorf("profile must contain at least one fact")
	}
	valid := make(map[string]struct{})
	for _, cat := range p.Categories() {
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
