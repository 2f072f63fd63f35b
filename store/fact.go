package store

import "time"

// Fact represents an atomic, independently retrievable statement in the
// assistant's long-term memory.
type Fact struct {
	ID  int64
	UID string

	Content string
	// Embedding is nil until an embedding has been computed for the fact.
	// A nil embedding is distinct from an empty one: facts without an
	// embedding are invisible to similarity scans but still retrievable by id.
	Embedding []float32
	// Scope partitions facts by applicability (e.g. a person name or "chat").
	// Empty means global.
	Scope      string
	Importance float64  // clamped to [0,1] on every write
	Confidence *float64 // optional, clamped to [0,1] when present
	Source     string

	IsActive   bool
	UseCount   int
	LastUsedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FindFact specifies the conditions for finding facts.
type FindFact struct {
	ID  *int64
	UID *string
	// Scope restricts to a single scope when set.
	Scope *string
	// OnlyActive excludes soft-deleted facts.
	OnlyActive bool
	// HasEmbedding restricts to facts with a stored embedding.
	HasEmbedding bool
	// MissingEmbedding restricts to facts without a stored embedding.
	MissingEmbedding bool

	Limit  int
	Offset int
}

// UpdateFact specifies a partial update of a single fact. Nil fields are
// left untouched. UpdatedAt is always refreshed by the driver.
type UpdateFact struct {
	ID int64

	Content    *string
	Embedding  *[]float32
	Importance *float64
	Confidence *float64
	Source     *string
}

// ClampUnit clamps v into [0, 1].
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
