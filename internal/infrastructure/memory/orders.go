package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

type orderRepo struct{ s *Store }

func orderKey(src entity.Source, number string) string { return string(src) + "|" + number }

func (r *orderRepo) Upsert(_ context.Context, o *entity.Order) (bool, string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := orderKey(o.Source, o.OrderNumber)
	id, ok := r.s.st.orderKey[key]
	if !ok {
		if o.ID == "" {
			o.ID = uuid.New().String()
		}
		r.s.st.orders[o.ID] = copyOrder(o)
		r.s.st.orderKey[key] = o.ID
		return true, "", nil
	}

	cur := r.s.st.orders[id]
	previous := cur.CustomerEmail
	if o.CustomerEmail != "" {
		cur.CustomerEmail = o.CustomerEmail
	}
	if o.CustomerName != "" {
		cur.CustomerName = o.CustomerName
	}
	cur.TotalAmount = o.TotalAmount
	cur.Currency = o.Currency
	cur.Status = o.Status
	if !o.ShippingAddress.IsEmpty() {
		cur.ShippingAddress = o.ShippingAddress
	}
	if o.TrackingNumber != "" {
		cur.TrackingNumber = o.TrackingNumber
	}
	if o.Notes != "" {
		cur.Notes = o.Notes
	}
	cur.SourceID = o.SourceID
	cur.BusinessUnit = o.BusinessUnit
	if len(o.LineItems) > 0 {
		cur.LineItems = append([]entity.LineItem(nil), o.LineItems...)
	}
	if !o.PlacedAt.IsZero() {
		cur.PlacedAt = o.PlacedAt
	}
	if o.UpdatedAt.After(cur.UpdatedAt) {
		cur.UpdatedAt = o.UpdatedAt
	}

	o.ID, o.CustomerEmail = cur.ID, cur.CustomerEmail
	return false, previous, nil
}

func (r *orderRepo) GetByID(_ context.Context, id string) (*entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.st.orders[id]
	if !ok {
		return nil, nil
	}
	out := copyOrder(o)
	out.SalesOwner = r.ownerOf(o.CustomerEmail)
	return out, nil
}

func (r *orderRepo) ListByEmail(_ context.Context, email string) ([]*entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*entity.Order
	for _, o := range r.s.st.orders {
		if o.CustomerEmail == email {
			out := copyOrder(o)
			out.SalesOwner = r.ownerOf(email)
			list = append(list, out)
		}
	}
	sortOrders(list)
	return list, nil
}

func (r *orderRepo) ListPlacedBetween(_ context.Context, from, to time.Time) ([]*entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*entity.Order
	for _, o := range r.s.st.orders {
		at := orderActivityAt(o)
		if (!from.IsZero() && at.Before(from)) || (!to.IsZero() && !at.Before(to)) {
			continue
		}
		list = append(list, copyOrder(o))
	}
	sortOrders(list)
	return list, nil
}

// ownerOf requiere r.s.mu tomado.
func (r *orderRepo) ownerOf(email string) string {
	if email == "" {
		return ""
	}
	if id, ok := r.s.st.customerEmail[email]; ok {
		return r.s.st.customers[id].AssignedOwner
	}
	return ""
}

func sortOrders(list []*entity.Order) {
	sort.Slice(list, func(i, j int) bool {
		a, b := orderActivityAt(list[i]), orderActivityAt(list[j])
		if a.Equal(b) {
			return list[i].OrderNumber < list[j].OrderNumber
		}
		return a.Before(b)
	})
}
