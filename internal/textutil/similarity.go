package textutil

// Similarity scores two raw strings in [0,1] after canonicalizing both.
func Similarity(a, b string) float64 {
	return KeySimilarity(Normalize(a), Normalize(b))
}

// KeySimilarity scores two canonical keys in [0,1]. Identical non-empty keys
// score exactly 1; an empty key carries no evidence and scores 0. The score is
// the larger of the normalized edit similarity and the token cosine overlap,
// so both typos and reordered words are tolerated.
func KeySimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	edit := EditSimilarity(a, b)
	overlap := CosineSimilarity(NewFingerprint(a), NewFingerprint(b))
	if overlap > edit {
		return overlap
	}
	return edit
}

// EditSimilarity returns 1 - levenshtein(a, b) / max(len(a), len(b)) over runes.
func EditSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
