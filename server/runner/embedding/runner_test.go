package embedding

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/recollect/internal/profile"
	"github.com/hrygo/recollect/store"
	"github.com/hrygo/recollect/store/db/sqlite"
)

type stubEmbedder struct {
	vector []float32
	err    error
	calls  atomic.Int32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	ctx := context.Background()
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		Data:   t.TempDir(),
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

func TestRunOnceFillsMissingEmbeddings(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	pendingA, err := st.CreateFact(ctx, &store.Fact{Content: "stored while provider was down"})
	require.NoError(t, err)
	pendingB, err := st.CreateFact(ctx, &store.Fact{Content: "also stored content-only"})
	require.NoError(t, err)
	embedded, err := st.CreateFact(ctx, &store.Fact{
		Content:   "already embedded",
		Embedding: []float32{9, 9, 9},
	})
	require.NoError(t, err)

	stub := &stubEmbedder{vector: []float32{0.5, 0.5, 0}}
	runner := NewRunner(st, stub, 0)
	runner.RunOnce(ctx)

	for _, id := range []int64{pendingA.ID, pendingB.ID} {
		fact, err := st.GetFact(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, 0.5, 0}, fact.Embedding)
	}

	// Facts that already carry a vector are left alone.
	fact, err := st.GetFact(ctx, embedded.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 9, 9}, fact.Embedding)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestRunOnceSkipsInactiveFacts(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	fact, err := st.CreateFact(ctx, &store.Fact{Content: "forgotten before embedding"})
	require.NoError(t, err)
	_, err = st.DeactivateFact(ctx, fact.ID)
	require.NoError(t, err)

	stub := &stubEmbedder{vector: []float32{1, 0}}
	runner := NewRunner(st, stub, 0)
	runner.RunOnce(ctx)

	assert.Equal(t, int32(0), stub.calls.Load())
}

func TestRunOnceToleratesProviderFailure(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	fact, err := st.CreateFact(ctx, &store.Fact{Content: "provider keeps failing"})
	require.NoError(t, err)

	stub := &stubEmbedder{err: errors.New("provider unavailable")}
	runner := NewRunner(st, stub, 0)
	runner.RunOnce(ctx)

	// The fact stays content-only and will be retried on the next pass.
	got, err := st.GetFact(ctx, fact.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Embedding)
	assert.Equal(t, int32(1), stub.calls.Load())
}
