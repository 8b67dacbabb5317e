package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/querydesk/querydesk/internal/database"
	"github.com/querydesk/querydesk/internal/models"
)

// HistoryRepository writes and reads the append-only search log. There are
// deliberately no update or delete methods; history is immutable once
// written.
type HistoryRepository struct {
	db *database.DB
}

func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append records one completed search and fills in the generated id.
func (r *HistoryRepository) Append(ctx context.Context, record *models.SearchRecord) (*models.SearchRecord, error) {
	record.CreatedAt = time.Now()

	query := `
		INSERT INTO search_history (actor_id, actor_role, kind, query, result_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		record.ActorID, record.ActorRole, string(record.Kind), record.Query, record.ResultCount, record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return record, nil
}

func (r *HistoryRepository) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*models.SearchRecord, error) {
	query := `
		SELECT id, actor_id, actor_role, kind, query, result_count, created_at
		FROM search_history
		WHERE actor_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, actorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query search history: %w", err)
	}
	defer rows.Close()

	records := make([]*models.SearchRecord, 0)

	for rows.Next() {
		var record models.SearchRecord
		var kind string
		if err := rows.Scan(
			&record.ID, &record.ActorID, &record.ActorRole, &kind,
			&record.Query, &record.ResultCount, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan search record: %w", err)
		}
		record.Kind = models.SearchKind(kind)
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// CountByKindForActor returns the actor's per-kind search totals. Kinds
// with no searches are absent from the map.
func (r *HistoryRepository) CountByKindForActor(ctx context.Context, actorID string) (map[models.SearchKind]int, error) {
	query := `
		SELECT kind, COUNT(*)
		FROM search_history
		WHERE actor_id = $1
		GROUP BY kind
	`

	rows, err := r.db.Pool.Query(ctx, query, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history counts: %w", err)
	}

	return scanKindCounts(rows)
}

func (r *HistoryRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM search_history`).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// CountByKind returns deployment-wide per-kind search totals.
func (r *HistoryRepository) CountByKind(ctx context.Context) (map[models.SearchKind]int, error) {
	query := `
		SELECT kind, COUNT(*)
		FROM search_history
		GROUP BY kind
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query history counts: %w", err)
	}

	return scanKindCounts(rows)
}

func scanKindCounts(rows pgx.Rows) (map[models.SearchKind]int, error) {
	defer rows.Close()

	counts := make(map[models.SearchKind]int)

	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan kind count: %w", err)
		}
		counts[models.SearchKind(kind)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return counts, nil
}
