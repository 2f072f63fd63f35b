package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "github.com/hrygo/recollect/internal/errors"
	"github.com/hrygo/recollect/internal/observability"
	"github.com/hrygo/recollect/plugin/ai/memory"
	"github.com/hrygo/recollect/store"
)

type rememberFactRequest struct {
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Importance float64   `json:"importance"`
	Confidence *float64  `json:"confidence,omitempty"`
	Source     string    `json:"source,omitempty"`
	Scope      string    `json:"scope,omitempty"`
	Threshold  float64   `json:"threshold,omitempty"`
}

type rememberFactResponse struct {
	Action   string `json:"action"`
	ID       int64  `json:"id"`
	UID      string `json:"uid"`
	Embedded bool   `json:"embedded"`
}

func (s *Server) rememberFact(c echo.Context) error {
	var req rememberFactRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	ctx := c.Request().Context()

	embedding := req.Embedding
	if embedding == nil && s.embedder != nil && req.Content != "" {
		vector, err := s.embedder.Embed(ctx, req.Content)
		if err != nil {
			// The fact is still stored content-only; it stays unsearchable
			// until a re-embedding pass picks it up.
			observability.Logger(ctx).Warn("embedding provider failed, storing content-only",
				slog.String("error", err.Error()))
		} else {
			embedding = vector
		}
	}

	result, err := s.memory.Remember(ctx, memory.RememberRequest{
		Content:    req.Content,
		Embedding:  embedding,
		Importance: req.Importance,
		Confidence: req.Confidence,
		Source:     req.Source,
		Scope:      req.Scope,
		Threshold:  req.Threshold,
	})
	if err != nil {
		return toHTTPError(c, err)
	}

	return c.JSON(http.StatusOK, rememberFactResponse{
		Action:   string(result.Action),
		ID:       result.ID,
		UID:      result.UID,
		Embedded: embedding != nil,
	})
}

type searchFactsRequest struct {
	Embedding       []float32 `json:"embedding"`
	Scope           *string   `json:"scope,omitempty"`
	Limit           *int      `json:"limit,omitempty"`
	MinSimilarity   *float64  `json:"minSimilarity,omitempty"`
	CooldownSeconds *int64    `json:"cooldownSeconds,omitempty"`
}

type searchFactResult struct {
	ID         int64   `json:"id"`
	UID        string  `json:"uid"`
	Content    string  `json:"content"`
	Importance float64 `json:"importance"`
	Score      float64 `json:"score"`
}

func (s *Server) searchFacts(c echo.Context) error {
	var req searchFactsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	// Absent fields are left nil so the service applies its configured
	// defaults; an explicit zero cooldown still disables the filter.
	search := memory.SearchRequest{
		Query:         req.Embedding,
		Scope:         req.Scope,
		MinSimilarity: req.MinSimilarity,
	}
	if req.Limit != nil {
		search.Limit = *req.Limit
	}
	if req.CooldownSeconds != nil {
		cooldown := time.Duration(*req.CooldownSeconds) * time.Second
		search.Cooldown = &cooldown
	}

	results, err := s.memory.Search(c.Request().Context(), search)
	if err != nil {
		return toHTTPError(c, err)
	}

	list := make([]searchFactResult, len(results))
	for i, r := range results {
		list[i] = searchFactResult{
			ID:         r.ID,
			UID:        r.UID,
			Content:    r.Content,
			Importance: r.Importance,
			Score:      r.Score,
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"results": list})
}

type markUsedRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) markFactsUsed(c echo.Context) error {
	var req markUsedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	if err := s.memory.MarkUsed(c.Request().Context(), req.IDs); err != nil {
		return toHTTPError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type factView struct {
	ID         int64    `json:"id"`
	UID        string   `json:"uid"`
	Content    string   `json:"content"`
	Scope      string   `json:"scope,omitempty"`
	Importance float64  `json:"importance"`
	Confidence *float64 `json:"confidence,omitempty"`
	Source     string   `json:"source,omitempty"`
	IsActive   bool     `json:"isActive"`
	UseCount   int      `json:"useCount"`
	LastUsedAt *string  `json:"lastUsedAt,omitempty"`
	CreatedAt  string   `json:"createdAt"`
	UpdatedAt  string   `json:"updatedAt"`
	Embedded   bool     `json:"embedded"`
}

func toFactView(f *store.Fact) factView {
	view := factView{
		ID:         f.ID,
		UID:        f.UID,
		Content:    f.Content,
		Scope:      f.Scope,
		Importance: f.Importance,
		Confidence: f.Confidence,
		Source:     f.Source,
		IsActive:   f.IsActive,
		UseCount:   f.UseCount,
		CreatedAt:  f.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  f.UpdatedAt.Format(time.RFC3339),
		Embedded:   f.Embedding != nil,
	}
	if f.LastUsedAt != nil {
		lastUsed := f.LastUsedAt.Format(time.RFC3339)
		view.LastUsedAt = &lastUsed
	}
	return view
}

func (s *Server) listFacts(c echo.Context) error {
	ctx := c.Request().Context()

	var scope *string
	if v := c.QueryParam("scope"); v != "" {
		scope = &v
	}
	limit := 20
	if v := c.QueryParam("pageSize"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	offset := 0
	if v := c.QueryParam("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n * limit
		}
	}

	facts, err := s.memory.List(ctx, scope, limit, offset)
	if err != nil {
		return toHTTPError(c, err)
	}
	total, err := s.memory.Count(ctx, scope)
	if err != nil {
		return toHTTPError(c, err)
	}

	list := make([]factView, len(facts))
	for i, f := range facts {
		list[i] = toFactView(f)
	}
	return c.JSON(http.StatusOK, map[string]any{"facts": list, "total": total})
}

func (s *Server) getFact(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid fact id")
	}

	fact, err := s.memory.Get(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(c, err)
	}
	if fact == nil {
		return echo.NewHTTPError(http.StatusNotFound, "fact not found")
	}
	return c.JSON(http.StatusOK, toFactView(fact))
}

func (s *Server) forgetFact(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid fact id")
	}

	// Deactivation is idempotent; a fact that is already inactive still
	// yields 204 so retries are safe.
	if _, err := s.memory.Forget(c.Request().Context(), id); err != nil {
		return toHTTPError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func toHTTPError(c echo.Context, err error) error {
	switch apperrors.GetCodeFromError(err) {
	case apperrors.ErrCodeValidationFailed:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case apperrors.ErrCodeNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case apperrors.ErrCodeRateLimited:
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	default:
		observability.Logger(c.Request().Context()).Error("request failed", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
