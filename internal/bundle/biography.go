package bundle

import (
	"fmt"
	"sort"
	"strings"
)

// ChronologyEvent is a single biographical event in the final timeline.
type ChronologyEvent struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Year        int    `json:"year"`
	DateNote    string `json:"date_note,omitempty"` // month, day, "circa", ranges
	Location    string `json:"location,omitempty"`
}

// Chronology is the biography output schema: an ordered event timeline.
type Chronology struct {
	Events []ChronologyEvent `json:"events"`
}

// Biography researches people of historical or public interest and produces
// a chronological timeline of life events.
type Biography struct{}

func (Biography) Name() string        { return "biography" }
func (Biography) DisplayName() string { return "Biography" }
func (Biography) SubjectNoun() string { return "person" }

// Domains returns nil: biography research drills one question at a time and
// relies on the supervisor to steer coverage across life phases.
func (Biography) Domains() []Domain { return nil }

func (Biography) Categories() []string {
	return []string{"early", "personal", "career", "legacy"}
}

func (Biography) SupervisorPrompt(subject, gapSummary, lastNote string) string {
	return fmt.Sprintf(`You are a meticulous research agent building a comprehensive event timeline for: %s.

Known gaps in the current timeline:
%s

Your previous reflection:
%s

Pick exactly ONE action:
- research: provide a precise search query that fills the single most important gap (birth, death, education, major works, relationships, recognition).
- think: record a short reflection planning the next query. Never think twice in a row.
- finish: call this ONLY when the timeline covers the person's life with no major gaps.`,
		subject, orDefault(gapSummary, "Everything is missing."), orDefault(lastNote, "(none)"))
}

func (Biography) GapPrompt(digest string) string {
	return fmt.Sprintf(`Analyze the following biographical events and name only the 2 biggest gaps. Be brief and general.

Events:
%s

Gaps:`, digest)
}

func (Biography) StructurePrompt(subject, digest string) string {
	return fmt.Sprintf(`Convert the researched life events for %s into JSON matching this schema exactly:
{"events":[{"name":"...","description":"...","year":1815,"date_note":"...","location":"..."}]}

Rules:
- Every event needs a short title-like name, a concise description, and a year.
- If a date is an estimate or a range, keep the year as your best estimate and put the qualifier in date_note.
- Order events chronologically. Return ONLY the JSON object.

Events:
%s`, subject, digest)
}

func (Biography) DecodeOutput(raw []byte) (any, error) {
	var out Chronology
	if err := decodeStrict(raw, &out); err != nil {
		return nil, err
	}
	if len(out.Events) == 0 {
		return nil, fmt.Errorf("chronology must contain at least one event")
	}
	for i, ev := range out.Events {
		if strings.TrimSpace(ev.Name) == "" {
			return nil, fmt.Errorf("event %d has an empty name", i)
		}
		if ev.Year == 0 {
			return nil, fmt.Errorf("event %q has no year", ev.Name)
		}
	}
	// Keep the artifact ordered even when the oracle shuffles events.
	sort.SliceStable(out.Events, func(i, j int) bool { return out.Events[i].Year < out.Events[j].Year })
	return &out, nil
}
