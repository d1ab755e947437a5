package guess

import "strings"

// Result of comparing a guess against the secret word. Distance is the
// Levenshtein edit distance after normalization.
type Result struct {
	IsCorrect bool `json:"isCorrect"`
	IsClose   bool `json:"isClose"`
	Distance  int  `json:"distance"`
}

// Evaluate normalizes both strings (trim + lowercase) and scores the guess.
// A distance of 0 is correct; 1 or 2 counts as close.
func Evaluate(raw, secret string) Result {
	d := Distance(normalize(raw), normalize(secret))
	return Result{
		IsCorrect: d == 0,
		IsClose:   d >= 1 && d <= 2,
		Distance:  d,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Distance is the classic two-row Levenshtein DP over runes, unit cost for
// insert/delete/substitute. Safe on empty strings and mixed-width unicode.
func Distance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
