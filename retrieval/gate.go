package retrieval

import "github.com/finvect/finrag/types"

// Decide reports whether the retrieved evidence is sufficient to attempt a
// grounded answer: the result must be non-empty and its top fused score must
// reach minScore. Pure function, no I/O.
func Decide(result types.RetrievalResult, minScore float64) bool {
	top, ok := result.Top()
	if !ok {
		return false
	}
	return top.FusedScore >= minScore
}
