package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/CRM-api/internal/domain/repository"
)

var _ repository.Store = (*Store)(nil)

// Store ejecuta callbacks dentro de transacciones PostgreSQL y expone repositorios sobre el pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore construye el almacén con el pool (creado en cmd y cerrado al apagar).
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepos repositorios atados a un Querier (pool o tx).
func NewRepos(q Querier) repository.Repos {
	return repository.Repos{
		Customers:     NewCustomerRepository(q),
		Contributions: NewContributionRepository(q),
		Orders:        NewOrderRepository(q),
		Inquiries:     NewInquiryRepository(q),
		Notes:         NewNoteRepository(q),
		SyncRuns:      NewSyncRunRepository(q),
	}
}

// Repos repositorios sobre el pool, sin transacción.
func (s *Store) Repos() repository.Repos {
	return NewRepos(s.pool)
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapErr("commit transaction", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Repos() repository.Repos { return NewRepos(t.tx) }

// Savepoint en pgx, Begin sobre una tx crea un SAVEPOINT; Commit lo libera y Rollback vuelve a él.
func (t *pgTx) Savepoint(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(ctx, &pgTx{tx: sp}); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback savepoint: %v: %w", rbErr, err)
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return wrapErr("release savepoint", err)
	}
	return nil
}
