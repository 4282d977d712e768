// internal/generation/relevance.go
package generation

import (
	"sort"
	"strings"
)

// DefaultCandidateMaxLength bounds how much of each candidate is tokenized.
const DefaultCandidateMaxLength = 1000

// Candidate is a scored piece of text. Index is its position in the retrieval order.
type Candidate struct {
	Text  string
	Score int
	Index int
}

// Rank scores every candidate by the number of distinct case-folded words it shares with topic and
// returns the top n, highest first. Ties keep retrieval order, and zero scores are not dropped.
func Rank(topic string, candidates []string, maxLen, n int) []Candidate {
	if maxLen <= 0 {
		maxLen = DefaultCandidateMaxLength
	}

	topicWords := wordSet(topic)
	scored := make([]Candidate, len(candidates))
	for i, c := range candidates {
		text := truncateRunes(c, maxLen)
		score := 0
		for w := range wordSet(text) {
			if _, ok := topicWords[w]; ok {
				score++
			}
		}
		scored[i] = Candidate{Text: text, Score: score, Index: i}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if n >= 0 && n < len(scored) {
		scored = scored[:n]
	}
	return scored
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
