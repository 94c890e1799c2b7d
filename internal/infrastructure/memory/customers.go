package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/repository"
)

type customerRepo struct{ s *Store }

func (r *customerRepo) InsertIfAbsent(_ context.Context, c *entity.Customer) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.customerEmail[c.Email]; ok {
		return false, nil
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	r.s.st.customers[c.ID] = copyCustomer(c)
	r.s.st.customerEmail[c.Email] = c.ID
	return true, nil
}

func (r *customerRepo) GetByEmailForUpdate(ctx context.Context, email string) (*entity.Customer, error) {
	return r.GetByEmail(ctx, email)
}

func (r *customerRepo) GetByID(_ context.Context, id string) (*entity.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.customers[id]
	if !ok {
		return nil, nil
	}
	return copyCustomer(c), nil
}

func (r *customerRepo) GetByEmail(_ context.Context, email string) (*entity.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.st.customerEmail[email]
	if !ok {
		return nil, nil
	}
	return copyCustomer(r.s.st.customers[id]), nil
}

func (r *customerRepo) List(_ context.Context, f repository.CustomerFilter) ([]*entity.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var list []*entity.Customer
	for _, c := range r.s.st.customers {
		switch {
		case f.Owner == "-" && c.AssignedOwner != "":
			continue
		case f.Owner != "" && f.Owner != "-" && c.AssignedOwner != f.Owner:
			continue
		case f.Status != "" && c.Status != f.Status:
			continue
		}
		if search != "" {
			hay := strings.ToLower(c.Email + " " + c.FullName() + " " + c.CompanyName)
			if !strings.Contains(hay, search) {
				continue
			}
		}
		list = append(list, copyCustomer(c))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Email < list[j].Email })
	return paginate(list, f.Limit, f.Offset), nil
}

func (r *customerRepo) Update(_ context.Context, c *entity.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.st.customers[c.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.FirstName, cur.LastName = c.FirstName, c.LastName
	cur.Phone, cur.CompanyName = c.Phone, c.CompanyName
	cur.BillingAddress, cur.ShippingAddress = c.BillingAddress, c.ShippingAddress
	cur.Tags = append([]string(nil), c.Tags...)
	cur.CreatedAt, cur.UpdatedAt = c.CreatedAt, c.UpdatedAt
	return nil
}

func (r *customerRepo) UpdateTotals(_ context.Context, id string, status entity.LifecycleStatus, t entity.ActivityTotals) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.st.customers[id]
	if !ok {
		return domain.ErrNotFound
	}
	cur.Status = status
	cur.TotalOrders, cur.TotalSpent, cur.TotalInquiries = t.TotalOrders, t.TotalSpent, t.TotalInquiries
	cur.FirstContactAt, cur.LastContactAt = t.FirstContactAt, t.LastContactAt
	return nil
}

func (r *customerRepo) SetOwner(_ context.Context, id, owner string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.st.customers[id]
	if !ok {
		return domain.ErrNotFound
	}
	cur.AssignedOwner = owner
	if at.After(cur.UpdatedAt) {
		cur.UpdatedAt = at
	}
	return nil
}

func (r *customerRepo) SetOwnerIfUnset(_ context.Context, id, owner string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.st.customers[id]
	if !ok || cur.AssignedOwner != "" {
		return false, nil
	}
	cur.AssignedOwner = owner
	if at.After(cur.UpdatedAt) {
		cur.UpdatedAt = at
	}
	return true, nil
}

func (r *customerRepo) AggregateActivity(_ context.Context, email string) (entity.ActivityTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := entity.ActivityTotals{TotalSpent: decimal.Zero}
	touch := func(at time.Time) {
		if at.IsZero() {
			return
		}
		if t.FirstContactAt == nil || at.Before(*t.FirstContactAt) {
			v := at
			t.FirstContactAt = &v
		}
		if t.LastContactAt == nil || at.After(*t.LastContactAt) {
			v := at
			t.LastContactAt = &v
		}
	}
	for _, o := range r.s.st.orders {
		if o.CustomerEmail != email {
			continue
		}
		t.TotalOrders++
		t.TotalSpent = t.TotalSpent.Add(o.TotalAmount)
		touch(orderActivityAt(o))
	}
	for _, i := range r.s.st.inquiries {
		if i.CustomerEmail != email {
			continue
		}
		t.TotalInquiries++
		touch(i.CreatedAt)
	}
	return t, nil
}

func orderActivityAt(o *entity.Order) time.Time {
	if !o.PlacedAt.IsZero() {
		return o.PlacedAt
	}
	return o.CreatedAt
}

func paginate[T any](list []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(list) {
			return nil
		}
		list = list[offset:]
	}
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
