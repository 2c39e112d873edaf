package research

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/quillworks/scout/internal/telemetry"
)

// Merger turns raw fetched content into canonical fact records and folds
// them into an accumulating set. Merging is idempotent: re-merging the same
// content never changes the resulting set.
type Merger struct {
	oracle       Oracle
	chunkSize    int // words per chunk
	maxChunks    int // per merge invocation
	chunkRetries int
	threshold    float64
	telemetry    *telemetry.Telemetry
	logger       *log.Logger
}

func newMerger(oracle Oracle, chunkSize, maxChunks, chunkRetries int, threshold float64, logger *log.Logger) *Merger {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if maxChunks <= 0 {
		maxChunks = 20
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.55
	}
	return &Merger{
		oracle:       oracle,
		chunkSize:    chunkSize,
		maxChunks:    maxChunks,
		chunkRetries: chunkRetries,
		threshold:    threshold,
		logger:       logger,
	}
}

// BuildDelta extracts candidate facts from one fetched page: chunk, filter
// for relevance, extract, then dedup locally. Oracle failures on a chunk are
// retried per the chunk budget; exhausting it drops that chunk and reports
// it as a gap rather than failing the whole merge.
func (m *Merger) BuildDelta(ctx context.Context, subject string, categories []string, page Page) ([]FactRecord, []string) {
	var delta []FactRecord
	var gaps []string

	chunks := chunkWords(page.Text, m.chunkSize)
	if len(chunks) > m.maxChunks {
		chunks = chunks[:m.maxChunks]
	}
	catSet := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		catSet[c] = struct{}{}
	}

	for i, chunk := range chunks {
		relBudget := &RetryBudget{Op: "chunk relevance", Retries: m.chunkRetries}
		relevant, err := retryDo(ctx, relBudget, func(ctx context.Context) (bool, error) {
			ok, err := m.oracle.JudgeRelevance(ctx, subject, chunk)
			if err != nil {
				m.telemetry.OracleRetry("chunk relevance")
				return false, Retryable(CollaboratorError{Op: "relevance filter", Err: err})
			}
			return ok, nil
		})
		if err != nil {
			gaps = append(gaps, fmt.Sprintf("dropped chunk %d of %s: %v", i+1, page.URL, err))
			continue
		}
		if !relevant {
			continue
		}

		extBudget := &RetryBudget{Op: "fact extraction", Retries: m.chunkRetries}
		facts, err := retryDo(ctx, extBudget, func(ctx context.Context) ([]FactRecord, error) {
			fs, err := m.oracle.ExtractFacts(ctx, subject, chunk, categories)
			if err != nil {
				m.telemetry.OracleRetry("fact extraction")
				return nil, Retryable(CollaboratorError{Op: "fact extraction", Err: err})
			}
			return fs, nil
		})
		if err != nil {
			gaps = append(gaps, fmt.Sprintf("dropped chunk %d of %s: %v", i+1, page.URL, err))
			continue
		}

		for _, f := range facts {
			if strings.TrimSpace(f.Title) == "" || strings.TrimSpace(f.Content) == "" {
				continue
			}
			if _, ok := catSet[f.Category]; !ok {
				continue // extraction noise outside the taxonomy
			}
			if f.SourceURL == "" {
				f.SourceURL = page.URL
			}
			if f.SourceDate == "" {
				f.SourceDate = page.PublishedAt
			}
			if f.ID == "" {
				f.ID = uuid.NewString()
			}
			delta = mergeFact(delta, f, m.threshold)
		}
	}
	return delta, gaps
}

// Apply folds a local delta into the shared fact set, one domain at a time
// behind the dispatcher's join barrier (single-writer discipline). It
// returns the number of facts that were genuinely new.
func (m *Merger) Apply(st *State, delta []FactRecord) int {
	before := len(st.Facts)
	for _, f := range delta {
		st.Facts = mergeFact(st.Facts, f, m.threshold)
	}
	return len(st.Facts) - before
}

// mergeFact adds candidate to set, collapsing duplicates. An exact signature
// match is dropped; a near-duplicate (same category and normalized title,
// content token overlap at or above threshold) keeps the more detailed or,
// at equal detail, the more recent version, never both. Anything else is
// appended, so the set is monotonically non-decreasing in information.
func mergeFact(set []FactRecord, candidate FactRecord, threshold float64) []FactRecord {
	candKey := factKey(candidate)
	candTokens := contentTokens(candidate.Content)
	for i := range set {
		if factKey(set[i]) != candKey {
			continue
		}
		if normalizeText(set[i].Content) == normalizeText(candidate.Content) {
			return set // exact duplicate
		}
		if jaccard(contentTokens(set[i].Content), candTokens) >= threshold {
			if preferCandidate(set[i], candidate) {
				candidate.ID = set[i].ID // canonical identity survives the merge
				set[i] = candidate
				// The replacement changed the survivor's content, which
				// may now overlap same-signature facts it previously
				// cleared. Re-collapse until the set is stable again.
				set = collapseKey(set, i, threshold)
			}
			return set
		}
	}
	return append(set, candidate)
}

// collapseKey folds every fact sharing set[i]'s signature whose content now
// falls within the similarity threshold of set[i] back into it, keeping the
// preferred version under the survivor's ID.
func collapseKey(set []FactRecord, i int, threshold float64) []FactRecord {
	for {
		key := factKey(set[i])
		toks := contentTokens(set[i].Content)
		merged := false
		for j := 0; j < len(set); j++ {
			if j == i || factKey(set[j]) != key {
				continue
			}
			if normalizeText(set[j].Content) != normalizeText(set[i].Content) &&
				jaccard(contentTokens(set[j].Content), toks) < threshold {
				continue
			}
			if preferCandidate(set[i], set[j]) {
				id := set[i].ID
				set[i] = set[j]
				set[i].ID = id
			}
			set = append(set[:j], set[j+1:]...)
			if j < i {
				i--
			}
			merged = true
			break
		}
		if !merged {
			return set
		}
	}
}

// preferCandidate keeps the more detailed version, breaking ties on source
// recency (lexicographic on ISO-style dates).
func preferCandidate(existing, candidate FactRecord) bool {
	if len(candidate.Content) != len(existing.Content) {
		return len(candidate.Content) > len(existing.Content)
	}
	return candidate.SourceDate > existing.SourceDate
}

func factKey(f FactRecord) string {
	return f.Category + "|" + normalizeText(f.Title)
}

// normalizeText lowercases and strips punctuation so near-identical phrasing
// hashes the same.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func contentTokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(normalizeText(s)) {
		out[tok] = struct{}{}
	}
	return out
}

// jaccard is the normalized token-overlap ratio between two token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// chunkWords splits text into bounded chunks of roughly size words each.
func chunkWords(text string, size int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var chunks []string
	for start := 0; start < len(words); start += size {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
