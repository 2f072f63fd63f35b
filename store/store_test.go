package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hrygo/recollect/internal/errors"
	"github.com/hrygo/recollect/internal/profile"
	"github.com/hrygo/recollect/store"
	"github.com/hrygo/recollect/store/db/sqlite"
)

func newTestStore(t *testing.T, embeddingDim int) *store.Store {
	t.Helper()

	ctx := context.Background()
	p := &profile.Profile{
		Mode:         "dev",
		Driver:       "sqlite",
		Data:         t.TempDir(),
		EmbeddingDim: embeddingDim,
	}
	p.DSN = filepath.Join(p.Data, "recollect_test.db")

	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx, driver, p.Driver))

	st := store.New(driver, p)
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestCreateFactRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, 0)

	confidence := 0.9
	fact, err := st.CreateFact(ctx, &store.Fact{
		Content:    "User speaks french",
		Embedding:  []float32{0.1, -0.2, 0.3},
		Scope:      "alice",
		Importance: 0.6,
		Confidence: &confidence,
		Source:     "profile",
	})
	require.NoError(t, err)
	require.NotZero(t, fact.ID)
	require.NotEmpty(t, fact.UID)

	got, err := st.GetFact(ctx, fact.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, fact.UID, got.UID)
	assert.Equal(t, "User speaks french", got.Content)
	assert.Equal(t, []float32{0.1, -0.2, 0.3}, got.Embedding)
	assert.Equal(t, "alice", got.Scope)
	assert.Equal(t, 0.6, got.Importance)
	require.NotNil(t, got.Confidence)
	assert.Equal(t, 0.9, *got.Confidence)
	assert.Equal(t, "profile", got.Source)
	assert.True(t, got.IsActive)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestCreateFactClampsSignals(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, 0)

	tests := []struct {
		name       string
		importance float64
		expected   float64
	}{
		{name: "above range", importance: 1.7, expected: 1.0},
		{name: "below range", importance: -0.3, expected: 0.0},
		{name: "in range", importance: 0.42, expected: 0.42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			confidence := tt.importance
			fact, err := st.CreateFact(ctx, &store.Fact{
				Content:    "clamp " + tt.name,
				Importance: tt.importance,
				Confidence: &confidence,
			})
			require.NoError(t, err)

			got, err := st.GetFact(ctx, fact.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.Importance)
			require.NotNil(t, got.Confidence)
			assert.Equal(t, tt.expected, *got.Confidence)
		})
	}
}

func TestCreateFactValidation(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, 3)

	_, err := st.CreateFact(ctx, &store.Fact{Content: "  "})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))

	_, err = st.CreateFact(ctx, &store.Fact{
		Content:   "wrong dimension",
		Embedding: []float32{1, 2},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))

	// A fact without an embedding bypasses the dimension check.
	_, err = st.CreateFact(ctx, &store.Fact{Content: "no embedding yet"})
	require.NoError(t, err)
}

func TestCreateFactAssignsUniqueUIDs(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, 0)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		fact, err := st.CreateFact(ctx, &store.Fact{Content: "fact", Importance: 0.5})
		require.NoError(t, err)
		require.NotEmpty(t, fact.UID)
		assert.False(t, seen[fact.UID], "uid %s assigned twice", fact.UID)
		seen[fact.UID] = true
	}
}

func TestGetFactIncludesInactive(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, 0)

	fact, err := st.CreateFact(ctx, &store.Fact{Content: "soon forgotten"})
	require.NoError(t, err)

	deactivated, err := st.DeactivateFact(ctx, fact.ID)
	require.NoError(t, err)
	require.True(t, deactivated)

	got, err := st.GetFact(ctx, fact.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsActive)
}

func TestGetFactMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, 0)

	got, err := st.GetFact(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateFactSkipsInactiveAndMissing(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, 0)

	fact, err := st.CreateFact(ctx, &store.Fact{Content: "original"})
	require.NoError(t, err)

	content := "updated"
	updated, err := st.UpdateFact(ctx, &store.UpdateFact{ID: fact.ID, Content: &content})
	require.NoError(t, err)
	assert.True(t, updated)

	_, err = st.DeactivateFact(ctx, fact.ID)
	require.NoError(t, err)

	updated, err = st.UpdateFact(ctx, &store.UpdateFact{ID: fact.ID, Content: &content})
	require.NoError(t, err)
	assert.False(t, updated)

	updated, err = st.UpdateFact(ctx, &store.UpdateFact{ID: 404, Content: &content})
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestListFactsEmbeddingFilters(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, 0)

	embedded, err := st.CreateFact(ctx, &store.Fact{
		Content:   "has a vector",
		Embedding: []float32{1, 0},
	})
	require.NoError(t, err)
	pending, err := st.CreateFact(ctx, &store.Fact{Content: "vector pending"})
	require.NoError(t, err)

	facts, err := st.ListFacts(ctx, &store.FindFact{HasEmbedding: true})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, embedded.ID, facts[0].ID)

	facts, err = st.ListFacts(ctx, &store.FindFact{MissingEmbedding: true})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, pending.ID, facts[0].ID)
	assert.Nil(t, facts[0].Embedding)
}

func TestListFactsPagingAndCount(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, 0)

	for i := 0; i < 7; i++ {
		_, err := st.CreateFact(ctx, &store.Fact{Content: "fact", Scope: "alice"})
		require.NoError(t, err)
	}
	_, err := st.CreateFact(ctx, &store.Fact{Content: "fact", Scope: "bob"})
	require.NoError(t, err)

	scope := "alice"
	page, err := st.ListFacts(ctx, &store.FindFact{Scope: &scope, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page, 3)

	page, err = st.ListFacts(ctx, &store.FindFact{Scope: &scope, Limit: 3, Offset: 6})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	count, err := st.CountFacts(ctx, &store.FindFact{Scope: &scope})
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	count, err = st.CountFacts(ctx, &store.FindFact{})
	require.NoError(t, err)
	assert.Equal(t, 8, count)
}

func TestMarkFactsUsed(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, 0)

	first, err := st.CreateFact(ctx, &store.Fact{Content: "first"})
	require.NoError(t, err)
	second, err := st.CreateFact(ctx, &store.Fact{Content: "second"})
	require.NoError(t, err)

	require.NoError(t, st.MarkFactsUsed(ctx, []int64{first.ID}))
	require.NoError(t, st.MarkFactsUsed(ctx, []int64{first.ID}))

	got, err := st.GetFact(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UseCount)
	assert.NotNil(t, got.LastUsedAt)

	untouched, err := st.GetFact(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, untouched.UseCount)
	assert.Nil(t, untouched.LastUsedAt)
}
