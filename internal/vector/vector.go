// Package vector holds the in-memory token-vector model: raw token counts
// for one document or query, the Euclidean norm of those counts, and the
// filter/weight step that turns counts into weighted tokens. Everything here
// is pure computation; loading lives in vector_io.go.
package vector

import (
	"math"
	"sort"

	apperrors "github.com/dangtom700/lexindex/pkg/errors"
)

// TokenCount maps a token to its occurrence count for one document or query.
type TokenCount map[string]int

// WeightedToken is a token that survived filtering, with its raw count and
// its weight (count divided by the vector norm).
type WeightedToken struct {
	Token  string
	Count  int
	Weight float64
}

// FilterStats accounts for the fate of every token seen by FilterWeight.
type FilterStats struct {
	Kept          int
	DroppedAlpha  int
	DroppedLength int
	DroppedCount  int
}

// Total returns the sum of all counts.
func (tc TokenCount) Total() int {
	sum := 0
	for _, count := range tc {
		sum += count
	}
	return sum
}

// Unique returns the number of distinct tokens.
func (tc TokenCount) Unique() int {
	return len(tc)
}

// Norm returns the Euclidean length of the count vector. It is always
// computed over the full, unfiltered counts; filtering must not change the
// norm used for weighting.
func Norm(tc TokenCount) float64 {
	sum := 0.0
	for _, count := range tc {
		sum += float64(count) * float64(count)
	}
	return math.Sqrt(sum)
}

// FilterWeight drops every token that is not all lowercase ASCII letters,
// is longer than maxLength, or occurs fewer than minCount times, and emits
// the survivors weighted by count/norm in token order. A zero norm means the
// vector is empty (or all-zero) and is rejected with ErrEmptyVector rather
// than producing non-finite weights.
func FilterWeight(tc TokenCount, maxLength, minCount int, norm float64) ([]WeightedToken, error) {
	filtered, _, err := FilterWeightStats(tc, maxLength, minCount, norm)
	return filtered, err
}

// FilterWeightStats is FilterWeight plus per-reason drop accounting.
func FilterWeightStats(tc TokenCount, maxLength, minCount int, norm float64) ([]WeightedToken, FilterStats, error) {
	var stats FilterStats
	if norm == 0 {
		return nil, stats, apperrors.ErrEmptyVector
	}

	result := make([]WeightedToken, 0, len(tc))
	for token, count := range tc {
		switch {
		case !isLowerAlpha(token):
			stats.DroppedAlpha++
		case len(token) > maxLength:
			stats.DroppedLength++
		case count < minCount:
			stats.DroppedCount++
		default:
			stats.Kept++
			result = append(result, WeightedToken{
				Token:  token,
				Count:  count,
				Weight: float64(count) / norm,
			})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Token < result[j].Token
	})
	return result, stats, nil
}

// isLowerAlpha reports whether every byte of s is in 'a'..'z'. The empty
// string fails the gate; there is no such thing as an empty token.
func isLowerAlpha(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}
