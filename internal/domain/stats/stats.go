// Package stats holds the small numeric helpers used by session scoring.
package stats

import (
	"math"
	"slices"
	"time"
)

const day = 24 * time.Hour

// Median returns the middle value of values, or the mean of the two middle
// values for even-length input. An empty input yields 0. The input slice is
// not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 != 0 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// DaysBetween returns the absolute distance between a and b in fractional days.
func DaysBetween(a, b time.Time) float64 {
	return math.Abs(float64(b.Sub(a))) / float64(day)
}

// CountByKey counts items grouped by the key returned from keyFn. Items for
// which keyFn reports ok == false are skipped.
func CountByKey[T any, K comparable](items []T, keyFn func(T) (K, bool)) map[K]int {
	counts := make(map[K]int)
	for _, item := range items {
		key, ok := keyFn(item)
		if !ok {
			continue
		}
		counts[key]++
	}
	return counts
}
