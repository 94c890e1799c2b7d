// Package memory implementa los repositorios en memoria con transacciones y savepoints.
// Lo usan los tests de aplicación y el modo demo del API.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/repository"
)

var _ repository.Store = (*Store)(nil)

type state struct {
	customers     map[string]*entity.Customer // id → cliente
	customerEmail map[string]string           // email → id
	contributions map[string]*entity.SourceContribution
	orders        map[string]*entity.Order
	orderKey      map[string]string // source|order_number → id
	inquiries     map[string]*entity.Inquiry
	inquiryKey    map[string]string // source|source_ref → id
	notes         []*entity.Note
	runs          []*entity.SyncRun
}

func newState() *state {
	return &state{
		customers:     make(map[string]*entity.Customer),
		customerEmail: make(map[string]string),
		contributions: make(map[string]*entity.SourceContribution),
		orders:        make(map[string]*entity.Order),
		orderKey:      make(map[string]string),
		inquiries:     make(map[string]*entity.Inquiry),
		inquiryKey:    make(map[string]string),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.customers {
		c.customers[k] = copyCustomer(v)
	}
	for k, v := range s.customerEmail {
		c.customerEmail[k] = v
	}
	for k, v := range s.contributions {
		cp := *v
		cp.SourceData = append([]byte(nil), v.SourceData...)
		c.contributions[k] = &cp
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range s.orderKey {
		c.orderKey[k] = v
	}
	for k, v := range s.inquiries {
		cp := *v
		c.inquiries[k] = &cp
	}
	for k, v := range s.inquiryKey {
		c.inquiryKey[k] = v
	}
	c.notes = append(c.notes, s.notes...)
	c.runs = append(c.runs, s.runs...)
	return c
}

// Store almacén en memoria. Las transacciones se serializan; el rollback restaura una copia del estado.
type Store struct {
	mu   sync.Mutex // protege st
	txMu sync.Mutex // una transacción a la vez
	st   *state
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Repos repositorios sin transacción.
func (s *Store) Repos() repository.Repos {
	return s.repos()
}

func (s *Store) repos() repository.Repos {
	return repository.Repos{
		Customers:     &customerRepo{s: s},
		Contributions: &contributionRepo{s: s},
		Orders:        &orderRepo{s: s},
		Inquiries:     &inquiryRepo{s: s},
		Notes:         &noteRepo{s: s},
		SyncRuns:      &syncRunRepo{s: s},
	}
}

// Run ejecuta fn en una transacción; si fn falla o el contexto se cancela se restaura el estado previo.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, &tx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	if err := ctx.Err(); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) snapshot() *state {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.clone()
}

func (s *Store) restore(snap *state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = snap
}

type tx struct {
	s *Store
}

func (t *tx) Repos() repository.Repos { return t.s.repos() }

func (t *tx) Savepoint(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	snap := t.s.snapshot()
	if err := fn(ctx, t); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

func copyCustomer(c *entity.Customer) *entity.Customer {
	cp := *c
	cp.Tags = append([]string(nil), c.Tags...)
	cp.Notes = nil
	return &cp
}

func copyOrder(o *entity.Order) *entity.Order {
	cp := *o
	cp.LineItems = append([]entity.LineItem(nil), o.LineItems...)
	return &cp
}
