package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/repository"
)

var _ repository.InquiryRepository = (*InquiryRepo)(nil)

// InquiryRepo implementación de InquiryRepository (usable con pool o tx).
type InquiryRepo struct {
	q Querier
}

// NewInquiryRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInquiryRepository(q Querier) *InquiryRepo {
	return &InquiryRepo{q: q}
}

const inquiryColumns = `
	i.id, i.customer_email, i.category, i.message, i.status, COALESCE(i.assigned_to, ''),
	COALESCE(c.assigned_owner, i.assigned_to, ''), i.source, i.source_ref, i.created_at, i.updated_at`

const inquiryFrom = ` FROM inquiries i LEFT JOIN customers c ON c.email = i.customer_email`

func scanInquiry(row pgx.Row) (*entity.Inquiry, error) {
	var i entity.Inquiry
	err := row.Scan(&i.ID, &i.CustomerEmail, &i.Category, &i.Message, &i.Status, &i.AssignedTo,
		&i.EffectiveOwner, &i.Source, &i.SourceRef, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// Upsert idempotente por (source, source_ref): la reentrega sólo refresca mensaje y categoría.
func (r *InquiryRepo) Upsert(ctx context.Context, i *entity.Inquiry) (bool, error) {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	query := `
		INSERT INTO inquiries (id, customer_email, category, message, status, assigned_to, source, source_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (source, source_ref) DO UPDATE SET
			message  = EXCLUDED.message,
			category = EXCLUDED.category
		RETURNING id, status, COALESCE(assigned_to, ''), created_at, updated_at, (xmax = 0)`
	var inserted bool
	err := r.q.QueryRow(ctx, query,
		i.ID, i.CustomerEmail, i.Category, i.Message, i.Status, nullIfEmpty(i.AssignedTo), i.Source, i.SourceRef,
		i.CreatedAt, i.UpdatedAt,
	).Scan(&i.ID, &i.Status, &i.AssignedTo, &i.CreatedAt, &i.UpdatedAt, &inserted)
	if err != nil {
		return false, wrapErr("upsert inquiry", err)
	}
	return inserted, nil
}

// GetByID obtiene la consulta con su dueño efectivo.
func (r *InquiryRepo) GetByID(ctx context.Context, id string) (*entity.Inquiry, error) {
	return r.getOne(ctx, "get inquiry", `SELECT `+inquiryColumns+inquiryFrom+` WHERE i.id = $1`, id)
}

// GetForUpdate bloquea la fila de la consulta (no la del cliente).
func (r *InquiryRepo) GetForUpdate(ctx context.Context, id string) (*entity.Inquiry, error) {
	return r.getOne(ctx, "get inquiry for update", `SELECT `+inquiryColumns+inquiryFrom+` WHERE i.id = $1 FOR UPDATE OF i`, id)
}

func (r *InquiryRepo) getOne(ctx context.Context, op, query, id string) (*entity.Inquiry, error) {
	i, err := scanInquiry(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr(op, err)
	}
	return i, nil
}

// Update persiste estado y dueño.
func (r *InquiryRepo) Update(ctx context.Context, i *entity.Inquiry) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE inquiries SET status = $2, assigned_to = $3, updated_at = $4 WHERE id = $1`,
		i.ID, i.Status, nullIfEmpty(i.AssignedTo), i.UpdatedAt)
	if err != nil {
		return wrapErr("update inquiry", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReassignOpen reasigna las consultas new/active del email.
func (r *InquiryRepo) ReassignOpen(ctx context.Context, email, owner string, at time.Time) (int, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE inquiries SET assigned_to = $2, updated_at = $3
		WHERE customer_email = $1 AND status IN ('new', 'active')`,
		email, nullIfEmpty(owner), at)
	if err != nil {
		return 0, wrapErr("reassign open inquiries", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListByEmail consultas del email por fecha de creación.
func (r *InquiryRepo) ListByEmail(ctx context.Context, email string) ([]*entity.Inquiry, error) {
	rows, err := r.q.Query(ctx, `SELECT `+inquiryColumns+inquiryFrom+` WHERE i.customer_email = $1 ORDER BY i.created_at`, email)
	if err != nil {
		return nil, wrapErr("list inquiries", err)
	}
	defer rows.Close()
	var list []*entity.Inquiry
	for rows.Next() {
		i, err := scanInquiry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inquiry: %w", err)
		}
		list = append(list, i)
	}
	return list, rows.Err()
}
