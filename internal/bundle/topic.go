package bundle

import (
	"fmt"
	"strings"
)

// TopicSection is one section of a topic deep-dive.
type TopicSection struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

// TopicReport is the topic output schema.
type TopicReport struct {
	TopicName string         `json:"topic_name"`
	Summary   string         `json:"summary"`
	Sections  []TopicSection `json:"sections"`
}

// Topic researches arbitrary subjects in depth. It runs with a single
// implicit domain and steers coverage via the supervisor loop.
type Topic struct{}

func (Topic) Name() string        { return "topic" }
func (Topic) DisplayName() string { return "Topic Research" }
func (Topic) SubjectNoun() string { return "topic" }

func (Topic) Domains() []Domain { return nil }

func (Topic) Categories() []string {
	return []string{"overview", "concepts", "history", "current", "challenges", "future"}
}

func (Topic) SupervisorPrompt(subject, gapSummary, lastNote string) string {
	return fmt.Sprintf(`You are a research agent writing a deep-dive on: %s.

Missing information:
%s

Your previous reflection:
%s

Pick exactly ONE action:
- research: provide a search query targeting the weakest area (overview, key concepts, history, current state, challenges, future directions).
- think: record a short reflection planning the next query. Never think twice in a row.
- finish: call this ONLY when every area is covered.`,
		subject, orDefault(gapSummary, "Everything is missing."), orDefault(lastNote, "(none)"))
}

func (Topic) GapPrompt(digest string) string {
	return fmt.Sprintf(`Analyze the following topic research and name the 2 biggest gaps. Be brief and specific.

Topic research:
%s

Gaps:`, digest)
}

func (Topic) StructurePrompt(subject, digest string) string {
	return fmt.Sprintf(`Convert the research data on %s into JSON matching this schema exactly:
{"topic_name":"...","summary":"...","sections":[{"category":"overview","title":"...","content":"..."}]}

Categories must be one of: overview, concepts, history, current, challenges, future.
Return ONLY the JSON object.

Research data:
%s`, subject, digest)
}

func (t Topic) DecodeOutput(raw []byte) (any, error) {
	var out TopicReport
	if err := decodeStrict(raw, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.TopicName) == "" {
		return nil, fmt.Errorf("topic_name is empty")
	}
	if len(out.Sections) == 0 {
		return nil, fmt.Errorf("report must contain at least one section")
	}
	valid := make(map[string]struct{})
	for _, cat := range t.Categories() {
		valid[cat] = struct{}{}
	}
	for i, s := range out.Sections {
		if strings.TrimSpace(s.Title) == "" || strings.TrimSpace(s.Content) == "" {
			return nil, fmt.Errorf("section %d is missing a title or content", i)
		}
		if _, ok := valid[s.Category]; !ok {
			return nil, fmt.Errorf("section %q has unknown category %q", s.Title, s.Category)
		}
	}
	return &out, nil
}
