package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/repository"
)

var _ repository.SyncRunRepository = (*SyncRunRepo)(nil)

// SyncRunRepo auditoría de corridas en sync_runs.
type SyncRunRepo struct {
	q Querier
}

// NewSyncRunRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSyncRunRepository(q Querier) *SyncRunRepo {
	return &SyncRunRepo{q: q}
}

// Create registra una corrida terminada.
func (r *SyncRunRepo) Create(ctx context.Context, run *entity.SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	stats, err := jsonArg(run.Stats)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO sync_runs (id, source, mode, cursor, stats, success, message, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9)`,
		run.ID, run.Source, run.Mode, run.Cursor, stats, run.Success, run.Message, run.StartedAt, run.FinishedAt)
	return wrapErr("insert sync run", err)
}

// ListRecent últimas corridas (todas si source es vacío).
func (r *SyncRunRepo) ListRecent(ctx context.Context, src entity.Source, limit int) ([]*entity.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, source, mode, cursor, stats, success, message, started_at, finished_at
		FROM sync_runs WHERE ($1 = '' OR source = $1)
		ORDER BY started_at DESC LIMIT $2`, string(src), limit)
	if err != nil {
		return nil, wrapErr("list sync runs", err)
	}
	defer rows.Close()
	var list []*entity.SyncRun
	for rows.Next() {
		var (
			run   entity.SyncRun
			stats []byte
		)
		if err := rows.Scan(&run.ID, &run.Source, &run.Mode, &run.Cursor, &stats, &run.Success, &run.Message,
			&run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		if err := json.Unmarshal(stats, &run.Stats); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		list = append(list, &run)
	}
	return list, rows.Err()
}
