package textutil

import (
	"math"
	"strings"
)

// Fingerprint is a term-frequency vector over the tokens of a canonical key.
type Fingerprint struct {
	tokens map[string]float64
	sumSq  float64
}

// NewFingerprint builds a fingerprint from an already canonical key.
// Returns nil when the key has no tokens.
func NewFingerprint(key string) *Fingerprint {
	tokens := strings.Fields(key)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var sumSq float64
	for _, count := range counts {
		sumSq += count * count
	}
	return &Fingerprint{tokens: counts, sumSq: sumSq}
}

// TokenCount returns the number of unique tokens in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.sumSq == 0 || b.sumSq == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return math.Min(1, dot/math.Sqrt(a.sumSq*b.sumSq))
}
