package store

import (
	"context"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	apperrors "github.com/hrygo/recollect/internal/errors"
	"github.com/hrygo/recollect/internal/profile"
)

// Store provides database access to fact records.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// CreateFact validates and inserts a new active fact. The row is created
// with CreatedAt = UpdatedAt = now, UseCount = 0 and a fresh UID;
// importance and confidence are clamped to [0,1] before the write.
func (s *Store) CreateFact(ctx context.Context, create *Fact) (*Fact, error) {
	if strings.TrimSpace(create.Content) == "" {
		return nil, apperrors.ValidationFailed("fact content must not be empty")
	}
	if dim := s.profile.EmbeddingDim; dim > 0 && create.Embedding != nil && len(create.Embedding) != dim {
		return nil, apperrors.ValidationFailed("embedding dimension mismatch")
	}

	now := time.Now().UTC()
	create.UID = shortuuid.New()
	create.Importance = ClampUnit(create.Importance)
	if create.Confidence != nil {
		clamped := ClampUnit(*create.Confidence)
		create.Confidence = &clamped
	}
	create.IsActive = true
	create.UseCount = 0
	create.LastUsedAt = nil
	create.CreatedAt = now
	create.UpdatedAt = now

	fact, err := s.driver.CreateFact(ctx, create)
	if err != nil {
		return nil, apperrors.StorageFailure("failed to create fact", err)
	}
	return fact, nil
}

// GetFact returns the fact with the given id, inactive rows included
// (direct lookup is the audit path). Returns nil when missing.
func (s *Store) GetFact(ctx context.Context, id int64) (*Fact, error) {
	fact, err := s.driver.GetFact(ctx, id)
	if err != nil {
		return nil, apperrors.StorageFailure("failed to get fact", err)
	}
	return fact, nil
}

func (s *Store) ListFacts(ctx context.Context, find *FindFact) ([]*Fact, error) {
	facts, err := s.driver.ListFacts(ctx, find)
	if err != nil {
		return nil, apperrors.StorageFailure("failed to list facts", err)
	}
	return facts, nil
}

func (s *Store) CountFacts(ctx context.Context, find *FindFact) (int, error) {
	count, err := s.driver.CountFacts(ctx, find)
	if err != nil {
		return 0, apperrors.StorageFailure("failed to count facts", err)
	}
	return count, nil
}

// UpdateFact applies a partial update to an active fact, clamping importance
// and confidence. Returns false (no error) for missing or inactive ids.
func (s *Store) UpdateFact(ctx context.Context, update *UpdateFact) (bool, error) {
	if update.Content != nil && strings.TrimSpace(*update.Content) == "" {
		return false, apperrors.ValidationFailed("fact content must not be empty")
	}
	if dim := s.profile.EmbeddingDim; dim > 0 && update.Embedding != nil && len(*update.Embedding) != dim {
		return false, apperrors.ValidationFailed("embedding dimension mismatch")
	}
	if update.Importance != nil {
		clamped := ClampUnit(*update.Importance)
		update.Importance = &clamped
	}
	if update.Confidence != nil {
		clamped := ClampUnit(*update.Confidence)
		update.Confidence = &clamped
	}

	updated, err := s.driver.UpdateFact(ctx, update)
	if err != nil {
		return false, apperrors.StorageFailure("failed to update fact", err)
	}
	return updated, nil
}

// DeactivateFact soft-deletes a fact. Deactivation is terminal; there is no
// path back to active. A second call on the same id returns false.
func (s *Store) DeactivateFact(ctx context.Context, id int64) (bool, error) {
	deactivated, err := s.driver.DeactivateFact(ctx, id)
	if err != nil {
		return false, apperrors.StorageFailure("failed to deactivate fact", err)
	}
	return deactivated, nil
}

// MarkFactsUsed records that the given facts were surfaced to a consumer.
// This is the sole writer of UseCount and LastUsedAt.
func (s *Store) MarkFactsUsed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.driver.MarkFactsUsed(ctx, ids, time.Now().UTC()); err != nil {
		return apperrors.StorageFailure("failed to mark facts used", err)
	}
	return nil
}
