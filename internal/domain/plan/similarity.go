package plan

import "strings"

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)), measured in
// runes. Two empty strings are identical.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// Nearest returns the catalogue name most similar to token. There is no
// similarity floor: any token maps to some name. Ties go to the name listed
// first. ok is false only for an empty catalogue.
func Nearest(token string, catalogue []string) (name string, similarity float64, ok bool) {
	needle := strings.ToLower(strings.TrimSpace(token))
	similarity = -1
	for _, candidate := range catalogue {
		if score := Similarity(needle, strings.ToLower(candidate)); score > similarity {
			name, similarity = candidate, score
		}
	}
	return name, similarity, similarity >= 0
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
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
