package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/repository"
)

var _ repository.OrderRepository = (*OrderRepo)(nil)

// OrderRepo implementación de OrderRepository (usable con pool o tx).
type OrderRepo struct {
	q Querier
}

// NewOrderRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOrderRepository(q Querier) *OrderRepo {
	return &OrderRepo{q: q}
}

// SalesOwner se deriva en lectura del cliente vinculado; nunca se copia en el pedido.
const orderColumns = `
	o.id, o.order_number, COALESCE(o.customer_email, ''), o.customer_name, o.total_amount, o.currency,
	o.status, o.shipping_address, o.tracking_number, o.notes, o.source, o.source_id, o.business_unit,
	o.line_items, COALESCE(c.assigned_owner, ''), o.placed_at, o.created_at, o.updated_at`

const orderFrom = ` FROM orders o LEFT JOIN customers c ON c.email = o.customer_email`

func scanOrder(row pgx.Row) (*entity.Order, error) {
	var (
		o               entity.Order
		shipping, lines []byte
		placed          *time.Time
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerEmail, &o.CustomerName, &o.TotalAmount, &o.Currency,
		&o.Status, &shipping, &o.TrackingNumber, &o.Notes, &o.Source, &o.SourceID, &o.BusinessUnit,
		&lines, &o.SalesOwner, &placed, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.PlacedAt = timeOrZero(placed)
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("shipping_address: %w", err)
	}
	if err := json.Unmarshal(lines, &o.LineItems); err != nil {
		return nil, fmt.Errorf("line_items: %w", err)
	}
	return &o, nil
}

// Upsert una sola sentencia INSERT ... ON CONFLICT (source, order_number) DO UPDATE.
// xmax = 0 en la fila devuelta indica que la sentencia insertó. El CTE prev lee el email
// anterior con la instantánea previa a la sentencia.
func (r *OrderRepo) Upsert(ctx context.Context, o *entity.Order) (bool, string, error) {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	shipping, err := jsonArg(o.ShippingAddress)
	if err != nil {
		return false, "", err
	}
	items := o.LineItems
	if items == nil {
		items = []entity.LineItem{}
	}
	lines, err := jsonArg(items)
	if err != nil {
		return false, "", err
	}
	query := `
		WITH prev AS (
			SELECT customer_email FROM orders WHERE source = $11 AND order_number = $2 FOR UPDATE
		), up AS (
		INSERT INTO orders (id, order_number, customer_email, customer_name, total_amount, currency, status,
			shipping_address, tracking_number, notes, source, source_id, business_unit, line_items,
			placed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12, $13, $14::jsonb, $15, $16, $17)
		ON CONFLICT (source, order_number) DO UPDATE SET
			customer_email   = COALESCE(EXCLUDED.customer_email, orders.customer_email),
			customer_name    = COALESCE(NULLIF(EXCLUDED.customer_name, ''), orders.customer_name),
			total_amount     = EXCLUDED.total_amount,
			currency         = EXCLUDED.currency,
			status           = EXCLUDED.status,
			shipping_address = CASE WHEN EXCLUDED.shipping_address = '{}'::jsonb
			                        THEN orders.shipping_address ELSE EXCLUDED.shipping_address END,
			tracking_number  = COALESCE(NULLIF(EXCLUDED.tracking_number, ''), orders.tracking_number),
			notes            = COALESCE(NULLIF(EXCLUDED.notes, ''), orders.notes),
			source_id        = EXCLUDED.source_id,
			business_unit    = EXCLUDED.business_unit,
			line_items       = CASE WHEN jsonb_array_length(EXCLUDED.line_items) = 0
			                        THEN orders.line_items ELSE EXCLUDED.line_items END,
			placed_at        = COALESCE(EXCLUDED.placed_at, orders.placed_at),
			updated_at       = GREATEST(orders.updated_at, EXCLUDED.updated_at)
		RETURNING id, customer_email, (xmax = 0) AS inserted
		)
		SELECT up.id, COALESCE(up.customer_email, ''), up.inserted,
			COALESCE((SELECT customer_email FROM prev), '')
		FROM up`
	var (
		inserted bool
		previous string
	)
	err = r.q.QueryRow(ctx, query,
		o.ID, o.OrderNumber, nullIfEmpty(o.CustomerEmail), o.CustomerName, o.TotalAmount, o.Currency, o.Status,
		shipping, o.TrackingNumber, o.Notes, o.Source, o.SourceID, o.BusinessUnit, lines,
		nullTime(o.PlacedAt), o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID, &o.CustomerEmail, &inserted, &previous)
	if err != nil {
		return false, "", wrapErr("upsert order", err)
	}
	return inserted, previous, nil
}

// GetByID obtiene un pedido con su vendedor derivado.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+orderFrom+` WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get order", err)
	}
	return o, nil
}

// ListByEmail pedidos vinculados al email, por fecha.
func (r *OrderRepo) ListByEmail(ctx context.Context, email string) ([]*entity.Order, error) {
	return r.list(ctx, "list orders by email",
		`SELECT `+orderColumns+orderFrom+` WHERE o.customer_email = $1
		 ORDER BY COALESCE(o.placed_at, o.created_at), o.order_number`, email)
}

// ListPlacedBetween pedidos en [from, to); límites en cero no filtran.
func (r *OrderRepo) ListPlacedBetween(ctx context.Context, from, to time.Time) ([]*entity.Order, error) {
	return r.list(ctx, "list orders by period",
		`SELECT `+orderColumns+orderFrom+`
		 WHERE ($1::timestamptz IS NULL OR COALESCE(o.placed_at, o.created_at) >= $1)
		   AND ($2::timestamptz IS NULL OR COALESCE(o.placed_at, o.created_at) < $2)
		 ORDER BY COALESCE(o.placed_at, o.created_at), o.order_number`, nullTime(from), nullTime(to))
}

func (r *OrderRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.Order, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()
	var list []*entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		list = append(list, o)
	}
	return list, rows.Err()
}
