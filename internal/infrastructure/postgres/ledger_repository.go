package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/repository"
)

var _ repository.ContributionRepository = (*ContributionRepo)(nil)

// ContributionRepo libro de procedencia en source_contributions.
type ContributionRepo struct {
	q Querier
}

// NewContributionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewContributionRepository(q Querier) *ContributionRepo {
	return &ContributionRepo{q: q}
}

// Upsert inserta la contribución o refresca lastSeen y snapshot. firstSeen nunca cambia.
func (r *ContributionRepo) Upsert(ctx context.Context, c *entity.SourceContribution) (bool, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO source_contributions (id, canonical_kind, canonical_id, source, source_record_id, native_id,
			source_data, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
		ON CONFLICT (source, source_record_id) DO UPDATE SET
			canonical_kind = EXCLUDED.canonical_kind,
			canonical_id   = EXCLUDED.canonical_id,
			native_id      = CASE WHEN EXCLUDED.native_id <> 0 THEN EXCLUDED.native_id
			                      ELSE source_contributions.native_id END,
			source_data    = EXCLUDED.source_data,
			last_seen      = GREATEST(source_contributions.last_seen, EXCLUDED.last_seen)
		RETURNING id, first_seen, last_seen, (xmax = 0)`
	var created bool
	err := r.q.QueryRow(ctx, query,
		c.ID, c.CanonicalKind, c.CanonicalID, c.Source, c.SourceRecordID, c.NativeID, rawJSON(c.SourceData),
		c.FirstSeen, c.LastSeen,
	).Scan(&c.ID, &c.FirstSeen, &c.LastSeen, &created)
	if err != nil {
		return false, wrapErr("upsert contribution", err)
	}
	return created, nil
}

// MaxNativeID mayor id nativo visto para el origen y tipo (prefijo del source_record_id).
func (r *ContributionRepo) MaxNativeID(ctx context.Context, src entity.Source, kind entity.RecordKind) (int64, error) {
	var max int64
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(MAX(native_id), 0) FROM source_contributions
		WHERE source = $1 AND source_record_id LIKE $2`, src, string(kind)+":%").Scan(&max)
	if err != nil {
		return 0, wrapErr("max native id", err)
	}
	return max, nil
}

// ListByCanonical contribuciones de un registro canónico, de la más antigua a la más reciente.
func (r *ContributionRepo) ListByCanonical(ctx context.Context, kind entity.CanonicalKind, id string) ([]*entity.SourceContribution, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, canonical_kind, canonical_id, source, source_record_id, native_id, source_data, first_seen, last_seen
		FROM source_contributions WHERE canonical_kind = $1 AND canonical_id = $2
		ORDER BY first_seen, source_record_id`, kind, id)
	if err != nil {
		return nil, wrapErr("list contributions", err)
	}
	defer rows.Close()
	var list []*entity.SourceContribution
	for rows.Next() {
		var c entity.SourceContribution
		if err := rows.Scan(&c.ID, &c.CanonicalKind, &c.CanonicalID, &c.Source, &c.SourceRecordID, &c.NativeID,
			&c.SourceData, &c.FirstSeen, &c.LastSeen); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

var _ repository.NoteRepository = (*NoteRepo)(nil)

// NoteRepo notas de sólo agregado (la tabla rechaza UPDATE y DELETE por trigger).
type NoteRepo struct {
	q Querier
}

// NewNoteRepository construye el adaptador. Pasar pool o tx (Querier).
func NewNoteRepository(q Querier) *NoteRepo {
	return &NoteRepo{q: q}
}

// Append agrega una nota.
func (r *NoteRepo) Append(ctx context.Context, n *entity.Note) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO notes (id, subject, subject_id, author, body, private, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.Subject, n.SubjectID, n.Author, n.Body, n.Private, n.CreatedAt)
	return wrapErr("append note", err)
}

// List notas del sujeto en orden de creación.
func (r *NoteRepo) List(ctx context.Context, subject entity.NoteSubject, id string) ([]*entity.Note, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, subject, subject_id, author, body, private, created_at
		FROM notes WHERE subject = $1 AND subject_id = $2 ORDER BY created_at, id`, subject, id)
	if err != nil {
		return nil, wrapErr("list notes", err)
	}
	defer rows.Close()
	var list []*entity.Note
	for rows.Next() {
		var n entity.Note
		if err := rows.Scan(&n.ID, &n.Subject, &n.SubjectID, &n.Author, &n.Body, &n.Private, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		list = append(list, &n)
	}
	return list, rows.Err()
}
