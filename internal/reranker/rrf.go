package reranker

import (
	"context"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/memlayer/memcore/internal/providers"
)

// DefaultRRFK is the RRF constant controlling how steeply rank position
// discounts a document's contribution (spec §4.5, original_source default).
const DefaultRRFK = 60

// DefaultMinQueries is the minimum number of sub-queries decomposeQuery
// tries to produce.
const DefaultMinQueries = 2

var sentenceSplit = regexp.MustCompile(`[.?!;]\s+`)
var wordPattern = regexp.MustCompile(`\b\w+\b`)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "shall": true,
	"can": true, "need": true, "dare": true, "it": true, "its": true, "this": true,
	"that": true, "these": true, "those": true, "i": true, "me": true, "my": true,
	"we": true, "our": true, "you": true, "your": true, "he": true, "him": true,
	"his": true, "she": true, "her": true, "they": true, "them": true, "their": true,
	"what": true, "which": true, "who": true, "whom": true, "how": true, "when": true,
	"where": true, "why": true, "not": true, "no": true, "nor": true, "so": true,
	"if": true, "then": true, "than": true, "too": true, "very": true, "just": true,
	"about": true, "above": true, "after": true, "again": true, "all": true,
	"also": true, "am": true, "any": true, "because": true, "before": true,
	"between": true, "both": true, "each": true, "few": true, "more": true,
	"most": true, "other": true, "over": true, "own": true, "same": true,
	"some": true, "such": true, "up": true, "down": true, "out": true, "off": true,
	"only": true, "into": true,
}

func extractKeywords(text string) string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if !stopwords[w] && len(w) > 1 {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func splitSentences(text string) []string {
	out := []string{}
	start := 0
	for _, loc := range sentenceSplit.FindAllStringIndex(text, -1) {
		// Keep the terminating punctuation with its sentence.
		if t := strings.TrimSpace(text[start : loc[0]+1]); t != "" {
			out = append(out, t)
		}
		start = loc[1]
	}
	if t := strings.TrimSpace(text[start:]); t != "" {
		out = append(out, t)
	}
	return out
}

// decomposeQuery splits query into sub-queries for multi-query RRF: the
// full query (with instruction prepended if given), each sentence when the
// query spans multiple sentences, and a stopword-stripped keyword variant.
// Results are deduplicated case-insensitively and padded back to
// minQueries with the raw query when an instruction was supplied.
func decomposeQuery(query, instruction string, minQueries int) []string {
	fullQuery := query
	if instruction != "" {
		fullQuery = instruction + " " + query
	}

	subQueries := []string{fullQuery}

	sentences := splitSentences(query)
	if len(sentences) > 1 {
		trimmedQuery := strings.TrimSpace(query)
		for _, s := range sentences {
			if s != trimmedQuery {
				subQueries = append(subQueries, s)
			}
		}
	}

	keywords := extractKeywords(query)
	if keywords != "" && keywords != strings.ToLower(strings.TrimSpace(query)) {
		subQueries = append(subQueries, keywords)
	}

	seen := make(map[string]bool)
	unique := make([]string, 0, len(subQueries))
	for _, sq := range subQueries {
		normalized := strings.ToLower(strings.TrimSpace(sq))
		if normalized != "" && !seen[normalized] {
			seen[normalized] = true
			unique = append(unique, sq)
		}
	}

	if len(unique) < minQueries && instruction != "" {
		hasRaw := false
		for _, u := range unique {
			if u == query {
				hasRaw = true
				break
			}
		}
		if !hasRaw {
			unique = append(unique, query)
		}
	}

	return unique
}

// computeRRFScores fuses multiple document rankings (each a slice of
// document indices, best first) into one score per document, normalized to
// [0, 1] by dividing by the theoretical maximum N/(k+1).
func computeRRFScores(rankings [][]int, numDocuments, k int) []float64 {
	if len(rankings) == 0 || numDocuments == 0 {
		return nil
	}
	scores := make([]float64, numDocuments)
	for _, ranking := range rankings {
		for rankPosition, docIdx := range ranking {
			if docIdx >= 0 && docIdx < numDocuments {
				scores[docIdx] += 1.0 / float64(k+rankPosition+1)
			}
		}
	}
	maxPossible := float64(len(rankings)) / float64(k+1)
	if maxPossible > 0 {
		for i := range scores {
			scores[i] /= maxPossible
		}
	}
	return scores
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RRFReranker implements multi-query Reciprocal Rank Fusion using only an
// embedding provider — no LLM call required (spec §4.5 "RRF (no-LLM)").
type RRFReranker struct {
	embedder   providers.EmbeddingProvider
	k          int
	minQueries int
	logger     *slog.Logger
}

// NewRRFReranker constructs an RRFReranker. k and minQueries fall back to
// DefaultRRFK / DefaultMinQueries when zero.
func NewRRFReranker(embedder providers.EmbeddingProvider, k, minQueries int, logger *slog.Logger) *RRFReranker {
	if k <= 0 {
		k = DefaultRRFK
	}
	if minQueries <= 0 {
		minQueries = DefaultMinQueries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RRFReranker{embedder: embedder, k: k, minQueries: minQueries, logger: logger}
}

func (r *RRFReranker) Rerank(ctx context.Context, query string, documents []string, instruction string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	subQueries := decomposeQuery(query, instruction, r.minQueries)
	r.logger.Debug("rrf: decomposed query", "sub_queries", len(subQueries))

	queryEmbeddings, err := r.embedder.EmbedBatch(ctx, subQueries)
	if err != nil {
		r.logger.Error("rrf: sub-query embedding failed", "error", err)
		return uniformFallback(len(documents)), nil
	}
	docEmbeddings, err := r.embedder.EmbedBatch(ctx, documents)
	if err != nil {
		r.logger.Error("rrf: document embedding failed", "error", err)
		return uniformFallback(len(documents)), nil
	}

	rankings := make([][]int, 0, len(queryEmbeddings))
	for _, qEmb := range queryEmbeddings {
		similarities := make([]float64, len(docEmbeddings))
		for i, dEmb := range docEmbeddings {
			similarities[i] = cosineSimilarity(qEmb, dEmb)
		}
		ranking := make([]int, len(documents))
		for i := range ranking {
			ranking[i] = i
		}
		sort.SliceStable(ranking, func(i, j int) bool {
			return similarities[ranking[i]] > similarities[ranking[j]]
		})
		rankings = append(rankings, ranking)
	}

	return computeRRFScores(rankings, len(documents), r.k), nil
}
