package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

type inquiryRepo struct{ s *Store }

func (r *inquiryRepo) Upsert(_ context.Context, i *entity.Inquiry) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := string(i.Source) + "|" + i.SourceRef
	if id, ok := r.s.st.inquiryKey[key]; ok {
		cur := r.s.st.inquiries[id]
		cur.Message, cur.Category = i.Message, i.Category
		i.ID, i.Status, i.AssignedTo = cur.ID, cur.Status, cur.AssignedTo
		i.CreatedAt, i.UpdatedAt = cur.CreatedAt, cur.UpdatedAt
		return false, nil
	}
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	cp := *i
	cp.Notes, cp.EffectiveOwner = nil, ""
	r.s.st.inquiries[i.ID] = &cp
	r.s.st.inquiryKey[key] = i.ID
	return true, nil
}

func (r *inquiryRepo) GetByID(_ context.Context, id string) (*entity.Inquiry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.st.inquiries[id]
	if !ok {
		return nil, nil
	}
	return r.withOwner(i), nil
}

func (r *inquiryRepo) GetForUpdate(ctx context.Context, id string) (*entity.Inquiry, error) {
	return r.GetByID(ctx, id)
}

func (r *inquiryRepo) Update(_ context.Context, i *entity.Inquiry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.st.inquiries[i.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.Status, cur.AssignedTo, cur.UpdatedAt = i.Status, i.AssignedTo, i.UpdatedAt
	return nil
}

func (r *inquiryRepo) ReassignOpen(_ context.Context, email, owner string, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, i := range r.s.st.inquiries {
		if i.CustomerEmail == email && i.IsOpen() {
			i.AssignedTo, i.UpdatedAt = owner, at
			n++
		}
	}
	return n, nil
}

func (r *inquiryRepo) ListByEmail(_ context.Context, email string) ([]*entity.Inquiry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*entity.Inquiry
	for _, i := range r.s.st.inquiries {
		if i.CustomerEmail == email {
			list = append(list, r.withOwner(i))
		}
	}
	sort.Slice(list, func(a, b int) bool { return list[a].CreatedAt.Before(list[b].CreatedAt) })
	return list, nil
}

// withOwner requiere r.s.mu tomado.
func (r *inquiryRepo) withOwner(i *entity.Inquiry) *entity.Inquiry {
	cp := *i
	cp.EffectiveOwner = i.AssignedTo
	if id, ok := r.s.st.customerEmail[i.CustomerEmail]; ok {
		if owner := r.s.st.customers[id].AssignedOwner; owner != "" {
			cp.EffectiveOwner = owner
		}
	}
	return &cp
}
