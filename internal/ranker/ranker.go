// File path: internal/ranker/ranker.go
package ranker

import (
	"sort"
	"strings"
)

// RawHit is one similarity match prior to reranking, carrying the chunk
// content and metadata needed by the scoring signals.
type RawHit struct {
	ChunkID       string
	Score         float32
	Text          string
	SectionLabel  string
	SequenceIndex int
	Metadata      map[string]string
}

// RankFactors exposes the individual signal values behind a composite score.
type RankFactors struct {
	Similarity float64 `json:"similarity"`
	Length     float64 `json:"length"`
	Keyword    float64 `json:"keyword"`
	Section    float64 `json:"section"`
	Composite  float64 `json:"composite"`
}

// SimilarSection is a reranked retrieval result.
type SimilarSection struct {
	ChunkID         string            `json:"chunk_id"`
	SectionText     string            `json:"section_text"`
	SectionLabel    string            `json:"section_label,omitempty"`
	SimilarityScore float64           `json:"similarity_score"`
	RankFactors     RankFactors       `json:"rank_factors"`
	SourceMetadata  map[string]string `json:"source_metadata,omitempty"`
	SequenceIndex   int               `json:"sequence_index"`
}

// Ranker reorders raw similarity hits with a fixed weighted sum of named
// signals. Rerank is a pure function of its inputs: identical hits and query
// always produce identical output, and the input slice is never mutated.
type Ranker struct {
	cfg Config
}

func New(cfg Config) *Ranker {
	return &Ranker{cfg: DefaultConfig().Merge(cfg)}
}

// Rerank drops hits under the similarity threshold, scores the rest, and
// returns them sorted by composite score descending. Ties break by raw
// score, then by chunk sequence index.
func (r *Ranker) Rerank(hits []RawHit, query string) []SimilarSection {
	queryTerms := tokenize(query)
	sections := make([]SimilarSection, 0, len(hits))
	for _, hit := range hits {
		if float64(hit.Score) < r.cfg.MinSimilarity {
			continue
		}
		factors := r.score(hit, queryTerms)
		sections = append(sections, SimilarSection{
			ChunkID:         hit.ChunkID,
			SectionText:     hit.Text,
			SectionLabel:    hit.SectionLabel,
			SimilarityScore: float64(hit.Score),
			RankFactors:     factors,
			SourceMetadata:  hit.Metadata,
			SequenceIndex:   hit.SequenceIndex,
		})
	}
	sort.SliceStable(sections, func(i, j int) bool {
		a, b := sections[i], sections[j]
		if a.RankFactors.Composite != b.RankFactors.Composite {
			return a.RankFactors.Composite > b.RankFactors.Composite
		}
		if a.SimilarityScore != b.SimilarityScore {
			return a.SimilarityScore > b.SimilarityScore
		}
		return a.SequenceIndex < b.SequenceIndex
	})
	return sections
}

func (r *Ranker) score(hit RawHit, queryTerms []string) RankFactors {
	factors := RankFactors{
		Similarity: clamp01(float64(hit.Score)),
		Length:     r.lengthSignal(len(hit.Text)),
		Keyword:    keywordSignal(queryTerms, hit.Text),
		Section:    sectionSignal(queryTerms, hit.SectionLabel),
	}
	factors.Composite = r.cfg.SimilarityWeight*factors.Similarity +
		r.cfg.LengthWeight*factors.Length +
		r.cfg.KeywordWeight*factors.Keyword +
		r.cfg.SectionWeight*factors.Section
	return factors
}

// lengthSignal penalizes chunks far from the ideal retrieval window.
func (r *Ranker) lengthSignal(length int) float64 {
	ideal := float64(r.cfg.IdealLength)
	if ideal <= 0 || length <= 0 {
		return 0
	}
	deviation := float64(length) - ideal
	if deviation < 0 {
		deviation = -deviation
	}
	return clamp01(1 - deviation/ideal)
}

// keywordSignal measures how much of the query vocabulary the chunk covers.
func keywordSignal(queryTerms []string, text string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	chunkTerms := make(map[string]struct{})
	for _, term := range tokenize(text) {
		chunkTerms[term] = struct{}{}
	}
	if len(chunkTerms) == 0 {
		return 0
	}
	matched := 0
	seen := make(map[string]struct{}, len(queryTerms))
	unique := 0
	for _, term := range queryTerms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		unique++
		if _, ok := chunkTerms[term]; ok {
			matched++
		}
	}
	if unique == 0 {
		return 0
	}
	return float64(matched) / float64(unique)
}

// sectionSignal rewards chunks whose section label shares vocabulary with
// the query.
func sectionSignal(queryTerms []string, label string) float64 {
	labelTerms := tokenize(label)
	if len(labelTerms) == 0 || len(queryTerms) == 0 {
		return 0
	}
	querySet := make(map[string]struct{}, len(queryTerms))
	for _, term := range queryTerms {
		querySet[term] = struct{}{}
	}
	matched := 0
	for _, term := range labelTerms {
		if _, ok := querySet[term]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(labelTerms))
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "to": {}, "with": {},
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) < 2 {
			continue
		}
		if _, ok := stopwords[field]; ok {
			continue
		}
		out = append(out, field)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
