package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/recollect/store"
)

// Embeddings are persisted as a JSON text column. SQLite has no native
// vector type; similarity is computed in process by the memory service, so
// the column only needs to round-trip the float slice.

func (d *DB) CreateFact(ctx context.Context, create *store.Fact) (*store.Fact, error) {
	embedding, err := encodeEmbedding(create.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode embedding")
	}

	fields := []string{"uid", "content", "embedding", "scope", "importance", "confidence", "source", "is_active", "use_count", "last_used_ts", "created_ts", "updated_ts"}
	args := []any{
		create.UID,
		create.Content,
		embedding,
		create.Scope,
		create.Importance,
		nullFloat(create.Confidence),
		nullString(create.Source),
		create.IsActive,
		create.UseCount,
		nullTime(create.LastUsedAt),
		create.CreatedAt.Unix(),
		create.UpdatedAt.Unix(),
	}

	stmt := `INSERT INTO fact (` + strings.Join(fields, ", ") + `) VALUES (` + placeholders(len(args)) + `)`
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fact")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get fact id")
	}
	create.ID = id

	return create, nil
}

func (d *DB) GetFact(ctx context.Context, id int64) (*store.Fact, error) {
	// Direct id lookup includes inactive rows: soft-deleted facts stay
	// retrievable for audit.
	finds, err := d.ListFacts(ctx, &store.FindFact{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(finds) == 0 {
		return nil, nil
	}
	return finds[0], nil
}

func (d *DB) ListFacts(ctx context.Context, find *store.FindFact) ([]*store.Fact, error) {
	where, args := buildFindWhere(find)

	query := `SELECT id, uid, content, embedding, scope, importance, confidence, source, is_active, use_count, last_used_ts, created_ts, updated_ts
		FROM fact WHERE ` + strings.Join(where, " AND ") + ` ORDER BY updated_ts DESC, id ASC`
	if find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
		if find.Offset > 0 {
			query += " OFFSET " + placeholder(len(args)+1)
			args = append(args, find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list facts")
	}
	defer rows.Close()

	list := []*store.Fact{}
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate facts")
	}
	return list, nil
}

func (d *DB) CountFacts(ctx context.Context, find *store.FindFact) (int, error) {
	where, args := buildFindWhere(find)
	query := `SELECT COUNT(*) FROM fact WHERE ` + strings.Join(where, " AND ")

	var count int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count facts")
	}
	return count, nil
}

func (d *DB) UpdateFact(ctx context.Context, update *store.UpdateFact) (bool, error) {
	set, args := []string{}, []any{}

	if update.Content != nil {
		set, args = append(set, "content = "+placeholder(len(args)+1)), append(args, *update.Content)
	}
	if update.Embedding != nil {
		embedding, err := encodeEmbedding(*update.Embedding)
		if err != nil {
			return false, errors.Wrap(err, "failed to encode embedding")
		}
		set, args = append(set, "embedding = "+placeholder(len(args)+1)), append(args, embedding)
	}
	if update.Importance != nil {
		set, args = append(set, "importance = "+placeholder(len(args)+1)), append(args, *update.Importance)
	}
	if update.Confidence != nil {
		set, args = append(set, "confidence = "+placeholder(len(args)+1)), append(args, *update.Confidence)
	}
	if update.Source != nil {
		set, args = append(set, "source = "+placeholder(len(args)+1)), append(args, *update.Source)
	}

	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, time.Now().UTC().Unix())
	args = append(args, update.ID)

	// Updates only apply to active rows; a deactivated fact is terminal.
	stmt := `UPDATE fact SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` AND is_active = 1`
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return false, errors.Wrap(err, "failed to update fact")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get affected rows")
	}
	return affected > 0, nil
}

func (d *DB) DeactivateFact(ctx context.Context, id int64) (bool, error) {
	stmt := `UPDATE fact SET is_active = 0, updated_ts = ` + placeholder(1) + ` WHERE id = ` + placeholder(2) + ` AND is_active = 1`
	result, err := d.db.ExecContext(ctx, stmt, time.Now().UTC().Unix(), id)
	if err != nil {
		return false, errors.Wrap(err, "failed to deactivate fact")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get affected rows")
	}
	return affected > 0, nil
}

func (d *DB) MarkFactsUsed(ctx context.Context, ids []int64, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, now.Unix())
	for _, id := range ids {
		args = append(args, id)
	}

	stmt := `UPDATE fact SET use_count = use_count + 1, last_used_ts = ` + placeholder(1) + ` WHERE id IN (` + placeholders(len(ids)) + `)`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to mark facts used")
	}
	return nil
}

func buildFindWhere(find *store.FindFact) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.Scope != nil {
		where, args = append(where, "scope = "+placeholder(len(args)+1)), append(args, *find.Scope)
	}
	if find.OnlyActive {
		where = append(where, "is_active = 1")
	}
	if find.HasEmbedding {
		where = append(where, "embedding IS NOT NULL")
	}
	if find.MissingEmbedding {
		where = append(where, "embedding IS NULL")
	}

	return where, args
}

func scanFact(rows *sql.Rows) (*store.Fact, error) {
	var fact store.Fact
	var embedding, source sql.NullString
	var confidence sql.NullFloat64
	var lastUsedTs sql.NullInt64
	var createdTs, updatedTs int64

	if err := rows.Scan(
		&fact.ID,
		&fact.UID,
		&fact.Content,
		&embedding,
		&fact.Scope,
		&fact.Importance,
		&confidence,
		&source,
		&fact.IsActive,
		&fact.UseCount,
		&lastUsedTs,
		&createdTs,
		&updatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to scan fact")
	}

	if embedding.Valid {
		vec, err := decodeEmbedding(embedding.String)
		if err != nil {
			// An undecodable embedding makes the fact unsearchable, not broken.
			slog.Debug("skipping malformed stored embedding", "fact_id", fact.ID, "error", err)
		} else {
			fact.Embedding = vec
		}
	}
	if confidence.Valid {
		fact.Confidence = &confidence.Float64
	}
	if source.Valid {
		fact.Source = source.String
	}
	if lastUsedTs.Valid {
		t := time.Unix(lastUsedTs.Int64, 0).UTC()
		fact.LastUsedAt = &t
	}
	fact.CreatedAt = time.Unix(createdTs, 0).UTC()
	fact.UpdatedAt = time.Unix(updatedTs, 0).UTC()

	return &fact, nil
}

func encodeEmbedding(embedding []float32) (any, error) {
	if embedding == nil {
		return nil, nil
	}
	buf, err := json.Marshal(embedding)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

func decodeEmbedding(raw string) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.Unix()
}
