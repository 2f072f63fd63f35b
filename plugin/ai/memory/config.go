package memory

import "time"

// Config holds the ranking and deduplication knobs for the fact memory
// service. The defaults mirror the behavior the assistant shipped with:
// similarity dominates, recency decays over two weeks, importance breaks
// close calls.
type Config struct {
	// WeightSimilarity, WeightRecency and WeightImportance combine the three
	// ranking signals. They are expected to sum to 1.0.
	WeightSimilarity float64
	WeightRecency    float64
	WeightImportance float64

	// RecencyDecayDays is the exponential decay constant for the recency
	// signal: a fact updated now scores 1.0, one RecencyDecayDays stale
	// scores about 0.37.
	RecencyDecayDays float64

	// MinSimilarity is the default similarity floor for search.
	MinSimilarity float64

	// Cooldown is the default window during which a fact that was marked
	// used is excluded from search results.
	Cooldown time.Duration

	// DuplicateThreshold is the cosine similarity at or above which a new
	// fact is treated as a refinement of an existing one.
	DuplicateThreshold float64

	// SearchLimit is the default maximum number of search results.
	SearchLimit int
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		WeightSimilarity:   0.60,
		WeightRecency:      0.25,
		WeightImportance:   0.15,
		RecencyDecayDays:   14.0,
		MinSimilarity:      0.2,
		Cooldown:           15 * time.Minute,
		DuplicateThreshold: 0.85,
		SearchLimit:        5,
	}
}
