package debate

import "strings"

// Ratio computes a text-similarity ratio between two strings in [0,1].
// It matches word sequences rather than characters: the ratio is
// 2*M/T where M is the length of the longest common subsequence of
// words and T is the total word count of both inputs. Identical texts
// score 1.0, disjoint texts 0.0.
func Ratio(a, b string) float64 {
	wordsA := strings.Fields(strings.ToLower(a))
	wordsB := strings.Fields(strings.ToLower(b))
	total := len(wordsA) + len(wordsB)
	if total == 0 {
		return 1.0
	}
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0.0
	}
	matched := lcs(wordsA, wordsB)
	return 2.0 * float64(matched) / float64(total)
}

// lcs returns the length of the longest common subsequence of two
// word slices, using a two-row dynamic program.
func lcs(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
