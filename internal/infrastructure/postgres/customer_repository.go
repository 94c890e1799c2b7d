package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/repository"
)

var _ repository.CustomerRepository = (*CustomerRepo)(nil)

// CustomerRepo implementación de CustomerRepository (usable con pool o tx).
type CustomerRepo struct {
	q Querier
}

// NewCustomerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCustomerRepository(q Querier) *CustomerRepo {
	return &CustomerRepo{q: q}
}

const customerColumns = `
	id, email, first_name, last_name, phone, company_name, billing_address, shipping_address,
	status, COALESCE(assigned_owner, ''), tags, total_inquiries, total_orders, total_spent,
	first_contact_at, last_contact_at, created_at, updated_at`

func scanCustomer(row pgx.Row) (*entity.Customer, error) {
	var (
		c                 entity.Customer
		billing, shipping []byte
	)
	err := row.Scan(
		&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Phone, &c.CompanyName, &billing, &shipping,
		&c.Status, &c.AssignedOwner, &c.Tags, &c.TotalInquiries, &c.TotalOrders, &c.TotalSpent,
		&c.FirstContactAt, &c.LastContactAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(billing, &c.BillingAddress); err != nil {
		return nil, fmt.Errorf("billing_address: %w", err)
	}
	if err := json.Unmarshal(shipping, &c.ShippingAddress); err != nil {
		return nil, fmt.Errorf("shipping_address: %w", err)
	}
	return &c, nil
}

// InsertIfAbsent INSERT ... ON CONFLICT (email) DO NOTHING: la carrera por el mismo email la gana una sola fila.
func (r *CustomerRepo) InsertIfAbsent(ctx context.Context, c *entity.Customer) (bool, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	billing, err := jsonArg(c.BillingAddress)
	if err != nil {
		return false, err
	}
	shipping, err := jsonArg(c.ShippingAddress)
	if err != nil {
		return false, err
	}
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	query := `
		INSERT INTO customers (id, email, first_name, last_name, phone, company_name, billing_address,
			shipping_address, status, assigned_owner, tags, total_inquiries, total_orders, total_spent,
			first_contact_at, last_contact_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (email) DO NOTHING`
	tag, err := r.q.Exec(ctx, query,
		c.ID, c.Email, c.FirstName, c.LastName, c.Phone, c.CompanyName, billing, shipping,
		c.Status, nullIfEmpty(c.AssignedOwner), tags, c.TotalInquiries, c.TotalOrders, c.TotalSpent,
		c.FirstContactAt, c.LastContactAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return false, wrapErr("insert customer", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByEmailForUpdate SELECT ... FOR UPDATE. nil, nil si no existe.
func (r *CustomerRepo) GetByEmailForUpdate(ctx context.Context, email string) (*entity.Customer, error) {
	return r.getOne(ctx, "get customer for update", `SELECT `+customerColumns+` FROM customers WHERE email = $1 FOR UPDATE`, email)
}

// GetByID obtiene un cliente por ID.
func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*entity.Customer, error) {
	return r.getOne(ctx, "get customer", `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
}

// GetByEmail obtiene un cliente por email normalizado.
func (r *CustomerRepo) GetByEmail(ctx context.Context, email string) (*entity.Customer, error) {
	return r.getOne(ctx, "get customer by email", `SELECT `+customerColumns+` FROM customers WHERE email = $1`, email)
}

func (r *CustomerRepo) getOne(ctx context.Context, op, query string, arg any) (*entity.Customer, error) {
	c, err := scanCustomer(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr(op, err)
	}
	return c, nil
}

// List lista clientes con filtros y paginación, ordenados por email.
func (r *CustomerRepo) List(ctx context.Context, f repository.CustomerFilter) ([]*entity.Customer, error) {
	var (
		where []string
		args  []any
	)
	switch f.Owner {
	case "":
	case "-":
		where = append(where, "assigned_owner IS NULL")
	default:
		args = append(args, f.Owner)
		where = append(where, fmt.Sprintf("assigned_owner = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(email LIKE $%d OR lower(first_name || ' ' || last_name) LIKE $%d OR lower(company_name) LIKE $%d)", n, n, n))
	}

	query := `SELECT ` + customerColumns + ` FROM customers`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY email"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list customers", err)
	}
	defer rows.Close()
	var list []*entity.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Update persiste perfil, etiquetas y marcas de tiempo.
func (r *CustomerRepo) Update(ctx context.Context, c *entity.Customer) error {
	billing, err := jsonArg(c.BillingAddress)
	if err != nil {
		return err
	}
	shipping, err := jsonArg(c.ShippingAddress)
	if err != nil {
		return err
	}
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	query := `
		UPDATE customers
		SET first_name = $2, last_name = $3, phone = $4, company_name = $5,
		    billing_address = $6::jsonb, shipping_address = $7::jsonb, tags = $8,
		    created_at = $9, updated_at = $10
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		c.ID, c.FirstName, c.LastName, c.Phone, c.CompanyName, billing, shipping, tags, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return wrapErr("update customer", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateTotals persiste contadores derivados y ciclo de vida.
func (r *CustomerRepo) UpdateTotals(ctx context.Context, id string, status entity.LifecycleStatus, t entity.ActivityTotals) error {
	query := `
		UPDATE customers
		SET status = $2, total_orders = $3, total_spent = $4, total_inquiries = $5,
		    first_contact_at = $6, last_contact_at = $7
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, id, status, t.TotalOrders, t.TotalSpent, t.TotalInquiries, t.FirstContactAt, t.LastContactAt)
	if err != nil {
		return wrapErr("update customer totals", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetOwner asigna o libera (owner vacío) el vendedor del cliente.
func (r *CustomerRepo) SetOwner(ctx context.Context, id, owner string, at time.Time) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE customers SET assigned_owner = $2, updated_at = GREATEST(updated_at, $3) WHERE id = $1`,
		id, nullIfEmpty(owner), at)
	if err != nil {
		return wrapErr("set customer owner", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetOwnerIfUnset el WHERE hace de compare-and-set frente a tomas concurrentes.
func (r *CustomerRepo) SetOwnerIfUnset(ctx context.Context, id, owner string, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE customers SET assigned_owner = $2, updated_at = GREATEST(updated_at, $3)
		WHERE id = $1 AND COALESCE(assigned_owner, '') = ''`,
		id, owner, at)
	if err != nil {
		return false, wrapErr("claim customer owner", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AggregateActivity deriva totales de pedidos y consultas del email. LEAST/GREATEST ignoran NULL.
func (r *CustomerRepo) AggregateActivity(ctx context.Context, email string) (entity.ActivityTotals, error) {
	query := `
		WITH o AS (
			SELECT COUNT(*) AS n, COALESCE(SUM(total_amount), 0) AS spent,
			       MIN(COALESCE(placed_at, created_at)) AS first_at,
			       MAX(COALESCE(placed_at, created_at)) AS last_at
			FROM orders WHERE customer_email = $1
		), i AS (
			SELECT COUNT(*) AS n, MIN(created_at) AS first_at, MAX(created_at) AS last_at
			FROM inquiries WHERE customer_email = $1
		)
		SELECT o.n, o.spent, i.n, LEAST(o.first_at, i.first_at), GREATEST(o.last_at, i.last_at)
		FROM o, i`
	var t entity.ActivityTotals
	err := r.q.QueryRow(ctx, query, email).Scan(&t.TotalOrders, &t.TotalSpent, &t.TotalInquiries, &t.FirstContactAt, &t.LastContactAt)
	if err != nil {
		return entity.ActivityTotals{}, wrapErr("aggregate activity", err)
	}
	return t, nil
}
