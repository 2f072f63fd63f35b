package embedding

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hrygo/recollect/plugin/ai"
	"github.com/hrygo/recollect/store"
)

// Runner periodically embeds facts that were stored content-only, for
// example because the embedding provider was down at ingest time. Until the
// pass catches up, such facts are retrievable by id but invisible to
// similarity search.
type Runner struct {
	store       *store.Store
	embedder    ai.Embedder
	interval    time.Duration
	batchSize   int
	concurrency int64
}

// NewRunner creates a re-embedding runner.
func NewRunner(store *store.Store, embedder ai.Embedder, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Runner{
		store:       store,
		embedder:    embedder,
		interval:    interval,
		batchSize:   32,
		concurrency: 3,
	}
}

// Run starts the background task and blocks until the context is done.
func (r *Runner) Run(ctx context.Context) {
	// Process once on startup
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-ctx.Done():
			slog.Info("embedding runner stopped")
			return
		}
	}
}

// RunOnce processes pending facts once (also used for manual trigger).
func (r *Runner) RunOnce(ctx context.Context) {
	facts, err := r.store.ListFacts(ctx, &store.FindFact{
		OnlyActive:       true,
		MissingEmbedding: true,
		Limit:            r.batchSize,
	})
	if err != nil {
		slog.Error("failed to find facts without embedding", "error", err)
		return
	}
	if len(facts) == 0 {
		return
	}

	slog.Info("processing facts for embedding", "count", len(facts))

	// Bounded concurrency keeps the provider happy.
	sem := semaphore.NewWeighted(r.concurrency)
	for _, fact := range facts {
		if err := sem.Acquire(ctx, 1); err != nil {
			slog.Info("embedding processing cancelled", "error", err)
			return
		}
		go func(f *store.Fact) {
			defer sem.Release(1)
			r.embedFact(ctx, f)
		}(fact)
	}

	// Wait for in-flight embeds before returning so a shutdown after this
	// call observes completed writes only.
	if err := sem.Acquire(ctx, r.concurrency); err != nil {
		return
	}
	sem.Release(r.concurrency)
}

func (r *Runner) embedFact(ctx context.Context, fact *store.Fact) {
	vector, err := r.embedder.Embed(ctx, fact.Content)
	if err != nil {
		slog.Warn("failed to embed fact", "fact_id", fact.ID, "error", err)
		return
	}

	updated, err := r.store.UpdateFact(ctx, &store.UpdateFact{
		ID:        fact.ID,
		Embedding: &vector,
	})
	if err != nil {
		slog.Error("failed to store fact embedding", "fact_id", fact.ID, "error", err)
		return
	}
	if !updated {
		// Deactivated while embedding was in flight; nothing to store.
		slog.Debug("fact vanished before embedding was stored", "fact_id", fact.ID)
		return
	}

	slog.Debug("fact embedded", "fact_id", fact.ID, "dim", len(vector))
}
