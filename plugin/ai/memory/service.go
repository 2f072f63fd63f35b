package memory

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	apperrors "github.com/hrygo/recollect/internal/errors"
	"github.com/hrygo/recollect/internal/observability"
	"github.com/hrygo/recollect/store"
)

// Service implements semantic search, ranking, usage tracking and
// write-time conflict resolution over the fact store.
type Service struct {
	store  *store.Store
	config Config
}

// NewService creates a fact memory service with the default configuration.
func NewService(s *store.Store) *Service {
	return NewServiceWithConfig(s, DefaultConfig())
}

// NewServiceWithConfig creates a fact memory service with custom ranking
// knobs. Separate instances are fully isolated, which keeps concurrent test
// suites independent.
func NewServiceWithConfig(s *store.Store, config Config) *Service {
	return &Service{store: s, config: config}
}

// Action is the outcome of conflict resolution.
type Action string

const (
	// ActionInserted means a new fact row was created.
	ActionInserted Action = "inserted"
	// ActionUpdated means an existing near-duplicate was refined in place.
	ActionUpdated Action = "updated"
)

// RememberRequest carries a new fact through the write path.
type RememberRequest struct {
	Content    string
	Embedding  []float32
	Importance float64
	Confidence *float64
	Source     string
	Scope      string

	// Threshold overrides the configured duplicate threshold when > 0.
	Threshold float64
}

// RememberResult reports what the conflict resolver decided.
type RememberResult struct {
	Action Action
	ID     int64
	UID    string
}

// Remember inserts the given content or folds it into an existing
// near-duplicate. The decision is purely similarity-driven: the single best
// cosine match at or above the duplicate threshold is refined in place;
// anything else becomes a new row.
func (s *Service) Remember(ctx context.Context, req RememberRequest) (*RememberResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperrors.ValidationFailed("fact content must not be empty")
	}

	threshold := req.Threshold
	if threshold <= 0 {
		threshold = s.config.DuplicateThreshold
	}

	if req.Embedding != nil {
		best, err := s.bestMatch(ctx, req.Embedding, scopeFilter(req.Scope))
		if err != nil {
			return nil, err
		}

		if best != nil && best.similarity >= threshold {
			update := &store.UpdateFact{
				ID:         best.fact.ID,
				Content:    &req.Content,
				Embedding:  &req.Embedding,
				Importance: &req.Importance,
				Confidence: req.Confidence,
			}
			// Source keeps its previous value unless a new one is supplied.
			if req.Source != "" {
				update.Source = &req.Source
			}

			updated, err := s.store.UpdateFact(ctx, update)
			if err != nil {
				return nil, err
			}
			if updated {
				observability.Logger(ctx).Info("refined near-duplicate fact",
					slog.String(observability.LogFieldAction, string(ActionUpdated)),
					slog.Int64(observability.LogFieldFactID, best.fact.ID),
					slog.Float64("similarity", best.similarity),
					slog.Float64("threshold", threshold))
				return &RememberResult{Action: ActionUpdated, ID: best.fact.ID, UID: best.fact.UID}, nil
			}
			// The match was deactivated between scan and write; insert instead.
			observability.Logger(ctx).Warn("duplicate match vanished during update, inserting",
				slog.Int64(observability.LogFieldFactID, best.fact.ID))
		}
	}

	fact, err := s.store.CreateFact(ctx, &store.Fact{
		Content:    req.Content,
		Embedding:  req.Embedding,
		Scope:      req.Scope,
		Importance: req.Importance,
		Confidence: req.Confidence,
		Source:     req.Source,
	})
	if err != nil {
		return nil, err
	}

	observability.Logger(ctx).Debug("fact stored",
		slog.String(observability.LogFieldAction, string(ActionInserted)),
		slog.Int64(observability.LogFieldFactID, fact.ID),
		slog.String(observability.LogFieldScope, req.Scope))
	return &RememberResult{Action: ActionInserted, ID: fact.ID, UID: fact.UID}, nil
}

// bestMatch returns the highest-similarity candidate for the embedding, or
// nil when no active embedded fact is comparable.
func (s *Service) bestMatch(ctx context.Context, embedding []float32, scope *string) (*candidate, error) {
	list, err := s.candidates(ctx, embedding, scope)
	if err != nil {
		return nil, err
	}

	var best *candidate
	for i := range list {
		if best == nil || list[i].similarity > best.similarity {
			best = &list[i]
		}
	}
	return best, nil
}

// SearchRequest carries a semantic query. Nil override fields fall back to
// the service configuration.
type SearchRequest struct {
	Query []float32
	Scope *string

	// Limit caps the result count; <= 0 uses the configured default.
	Limit int
	// MinSimilarity overrides the configured similarity floor.
	MinSimilarity *float64
	// Cooldown overrides the configured cooldown window. An explicit zero
	// disables cooldown filtering.
	Cooldown *time.Duration
}

// SearchResult is one ranked fact.
type SearchResult struct {
	ID         int64
	UID        string
	Content    string
	Importance float64
	Score      float64
}

// Search ranks active embedded facts against the query embedding.
//
// Candidates below MinSimilarity or inside their cooldown window are
// excluded before scoring, so a cooled-down fact is invisible this round
// rather than deprioritized. The remaining candidates score
//
//	w_sim*similarity + w_rec*exp(-ageDays/decay) + w_imp*importance
//
// and ties break by higher importance, then lower id, which makes the
// ordering reproducible for identical inputs.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]*SearchResult, error) {
	if len(req.Query) == 0 {
		return []*SearchResult{}, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.config.SearchLimit
	}
	minSimilarity := s.config.MinSimilarity
	if req.MinSimilarity != nil {
		minSimilarity = *req.MinSimilarity
	}
	cooldown := s.config.Cooldown
	if req.Cooldown != nil {
		cooldown = *req.Cooldown
	}

	list, err := s.candidates(ctx, req.Query, req.Scope)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	scored := make([]*scoredFact, 0, len(list))
	for _, c := range list {
		if c.similarity < minSimilarity {
			continue
		}
		if cooldown > 0 && c.fact.LastUsedAt != nil && now.Sub(*c.fact.LastUsedAt) < cooldown {
			continue
		}

		ageDays := math.Max(0, now.Sub(c.fact.UpdatedAt).Hours()/24)
		recency := math.Exp(-ageDays / s.config.RecencyDecayDays)
		importance := store.ClampUnit(c.fact.Importance)

		score := s.config.WeightSimilarity*c.similarity +
			s.config.WeightRecency*recency +
			s.config.WeightImportance*importance

		scored = append(scored, &scoredFact{fact: c.fact, importance: importance, score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if scored[i].importance != scored[j].importance {
			return scored[i].importance > scored[j].importance
		}
		return scored[i].fact.ID < scored[j].fact.ID
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}

	results := make([]*SearchResult, len(scored))
	for i, sf := range scored {
		results[i] = &SearchResult{
			ID:         sf.fact.ID,
			UID:        sf.fact.UID,
			Content:    sf.fact.Content,
			Importance: sf.importance,
			Score:      sf.score,
		}
	}
	return results, nil
}

type scoredFact struct {
	fact       *store.Fact
	importance float64
	score      float64
}

// MarkUsed records that the given facts were actually surfaced. Search does
// not mark results used; consumers call this only for facts they kept.
func (s *Service) MarkUsed(ctx context.Context, ids []int64) error {
	return s.store.MarkFactsUsed(ctx, ids)
}

// Forget soft-deletes a fact. Returns false when the fact is missing or
// already inactive; a repeat call is a no-op.
func (s *Service) Forget(ctx context.Context, id int64) (bool, error) {
	return s.store.DeactivateFact(ctx, id)
}

// Get returns a fact by id, inactive rows included (audit path).
func (s *Service) Get(ctx context.Context, id int64) (*store.Fact, error) {
	return s.store.GetFact(ctx, id)
}

// List returns a page of active facts, newest first.
func (s *Service) List(ctx context.Context, scope *string, limit, offset int) ([]*store.Fact, error) {
	return s.store.ListFacts(ctx, &store.FindFact{
		OnlyActive: true,
		Scope:      scope,
		Limit:      limit,
		Offset:     offset,
	})
}

// Count returns the number of active facts in the scope.
func (s *Service) Count(ctx context.Context, scope *string) (int, error) {
	return s.store.CountFacts(ctx, &store.FindFact{
		OnlyActive: true,
		Scope:      scope,
	})
}

func scopeFilter(scope string) *string {
	if scope == "" {
		return nil
	}
	return &scope
}
