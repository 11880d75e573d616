// Package summarizer provides extractive answer synthesis over retrieved
// chunks: the highest-signal sentences of the retrieved text stand in for a
// generated answer.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"docqa/internal/domain"
)

var _ domain.Summarizer = (*FrequencySummarizer)(nil)

// FrequencySummarizer ranks sentences by normalized token frequency, with
// stopwords filtered out, and returns the top sentences in document order.
type FrequencySummarizer struct {
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{
		tokenPattern:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		sentencePattern: regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
		stopwords:       defaultStopwords(),
	}
}

// Synthesize builds an answer from retrieved chunks by summarizing their
// concatenated text.
func (s *FrequencySummarizer) Synthesize(results []domain.SearchResult, maxSentences int) (string, error) {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(r.Content)
		b.WriteString("\n")
	}
	return s.Summarize(b.String(), maxSentences)
}

// Summarize returns a short summary by ranking sentences on token frequency.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := s.sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			if _, ok := s.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		score := 0.0
		toks := s.tokens(sent)
		for _, tok := range toks {
			if v, ok := freq[tok]; ok {
				score += v
			}
		}
		// Normalize by sentence length to avoid favoring long sentences.
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}

	top := scores[:maxSentences]
	sort.Slice(top, func(i, j int) bool { return top[i].idx < top[j].idx })

	out := make([]string, 0, len(top))
	for _, p := range top {
		out = append(out, strings.TrimSpace(sentences[p.idx]))
	}
	return strings.Join(out, " "), nil
}

func (s *FrequencySummarizer) tokens(text string) []string {
	return s.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "from",
		"has", "have", "he", "her", "his", "i", "in", "is", "it", "its", "of",
		"on", "or", "she", "that", "the", "their", "them", "they", "this",
		"to", "was", "we", "were", "which", "will", "with", "you", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
