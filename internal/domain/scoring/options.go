package scoring

import "time"

// Option applies a configuration option to the SessionScorer.
type Option func(*SessionScorer)

// WithTopN sets how many items a result may hold.
func WithTopN(n int) Option {
	return func(s *SessionScorer) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithAffinityThreshold sets how many likes in one category earn the affinity bonus.
func WithAffinityThreshold(n int) Option {
	return func(s *SessionScorer) {
		if n > 0 {
			s.affinityThreshold = n
		}
	}
}

// WithDiversityCap sets the maximum number of same-category items in a result.
func WithDiversityCap(n int) Option {
	return func(s *SessionScorer) {
		if n > 0 {
			s.diversityCap = n
		}
	}
}

// WithClock sets the source of "now" used for the freshness bonus.
func WithClock(now func() time.Time) Option {
	return func(s *SessionScorer) {
		if now != nil {
			s.now = now
		}
	}
}
