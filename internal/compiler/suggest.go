package compiler

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/roach88/pvl/internal/ir"
)

// maxEditDistance bounds the fallback suggestion for names that are not
// a fuzzy subsequence of any operation.
const maxEditDistance = 3

// suggestOp returns the known operation closest to name, or "".
func suggestOp(name string) string {
	candidates := ir.OpNames()

	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDist := "", maxEditDistance+1
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
