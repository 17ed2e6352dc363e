package batch

import "math"

// ETA estimates the seconds left in a batch of n samples after done of them
// finished in elapsed seconds, assuming the remaining samples take as long
// on average as the finished ones. The result is rounded to two decimals.
func ETA(n, done int, elapsed float64) float64 {
	if done <= 0 {
		return 0
	}
	eta := (float64(n)*elapsed)/float64(done) - elapsed
	return math.Round(eta*100) / 100
}
