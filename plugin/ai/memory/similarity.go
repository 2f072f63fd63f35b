package memory

import (
	"context"
	"log/slog"
	"math"

	"github.com/hrygo/recollect/internal/observability"
	"github.com/hrygo/recollect/store"
)

// CosineSimilarity calculates cosine similarity between two vectors.
// ok is false when the vectors are not comparable: mismatched lengths or a
// zero-magnitude vector. An incomparable pair must be skipped by the caller,
// not treated as similarity zero.
func CosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, false
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

// candidate pairs a fact with its similarity to the current query.
type candidate struct {
	fact       *store.Fact
	similarity float64
}

// candidates performs a linear scan over active facts with embeddings,
// optionally restricted to a scope, and drops incomparable pairs. The scan
// is O(active embedded facts); at the low-thousands corpus this store
// targets, that beats maintaining an index.
func (s *Service) candidates(ctx context.Context, query []float32, scope *string) ([]candidate, error) {
	facts, err := s.store.ListFacts(ctx, &store.FindFact{
		OnlyActive:   true,
		HasEmbedding: true,
		Scope:        scope,
	})
	if err != nil {
		return nil, err
	}

	list := make([]candidate, 0, len(facts))
	for _, fact := range facts {
		similarity, ok := CosineSimilarity(fact.Embedding, query)
		if !ok {
			observability.Logger(ctx).Debug("skipping incomparable embedding",
				slog.Int64(observability.LogFieldFactID, fact.ID),
				slog.Int("dim", len(fact.Embedding)))
			continue
		}
		list = append(list, candidate{fact: fact, similarity: similarity})
	}

	return list, nil
}
