// Package identity resuelve registros de cliente entrantes contra el cliente canónico (único por email).
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/crm"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/repository"
)

// MaxConflictRetries intentos por registro ante carreras o fallos de serialización.
const MaxConflictRetries = 5

// errLostRace la fila bloqueada desapareció entre el INSERT y el SELECT FOR UPDATE.
var errLostRace = errors.New("cliente no visible tras conflicto de inserción")

// Result cliente canónico resultante.
type Result struct {
	Customer *entity.Customer
	Created  bool
}

// Resolver aplica la resolución de identidad dentro de la transacción del llamador.
type Resolver struct {
	runner     repository.TxRunner
	log        zerolog.Logger
	now        func() time.Time
	maxRetries int
}

// Option configura el Resolver.
type Option func(*Resolver)

// WithClock reloj inyectable (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithMaxRetries cambia el límite de reintentos por conflicto.
func WithMaxRetries(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// NewResolver construye el resolver. runner sólo se usa en ResolveCustomerStandalone.
func NewResolver(runner repository.TxRunner, log zerolog.Logger, opts ...Option) *Resolver {
	r := &Resolver{runner: runner, log: log, now: time.Now, maxRetries: MaxConflictRetries}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now reloj del resolver (compartido con los demás componentes que lo reciben).
func (r *Resolver) Now() time.Time { return r.now().UTC() }

// ResolveCustomer crea o fusiona el cliente del email y registra la contribución del origen.
// Cada intento corre en su propio savepoint: un conflicto deshace sólo ese intento.
func (r *Resolver) ResolveCustomer(ctx context.Context, tx repository.Tx, in entity.IntermediateCustomer, ref entity.Provenance) (*Result, error) {
	email, ok := crm.NormalizeEmail(in.Email)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidIdentity, in.Email)
	}
	now := r.Now()

	var (
		res     *Result
		lastErr error
	)
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		lastErr = tx.Savepoint(ctx, func(ctx context.Context, tx repository.Tx) error {
			var err error
			res, err = r.resolveOnce(ctx, tx.Repos(), email, in, ref, now)
			return err
		})
		if lastErr == nil {
			return res, nil
		}
		if !errors.Is(lastErr, errLostRace) && !errors.Is(lastErr, domain.ErrConflict) {
			return nil, lastErr
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.log.Warn().Err(lastErr).Str("email", email).Int("attempt", attempt).Msg("conflicto resolviendo cliente, reintentando")
	}
	return nil, fmt.Errorf("%w: %s tras %d intentos: %v", domain.ErrConflictRetryExhausted, email, r.maxRetries, lastErr)
}

func (r *Resolver) resolveOnce(ctx context.Context, repos repository.Repos, email string, in entity.IntermediateCustomer, ref entity.Provenance, now time.Time) (*Result, error) {
	res := &Result{}
	seed := crm.NewCustomer(email, in, now)
	inserted, err := repos.Customers.InsertIfAbsent(ctx, seed)
	if err != nil {
		return nil, err
	}
	if inserted {
		res.Customer, res.Created = seed, true
	} else {
		existing, err := repos.Customers.GetByEmailForUpdate(ctx, email)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, errLostRace
		}
		if crm.MergeCustomer(existing, in, now) {
			if err := repos.Customers.Update(ctx, existing); err != nil {
				return nil, err
			}
		}
		res.Customer = existing
	}

	if ref.Source != "" {
		recordID := in.RecordID
		if recordID == "" {
			recordID = entity.SourceRecordID(entity.KindCustomer, email)
		}
		_, err := repos.Contributions.Upsert(ctx, &entity.SourceContribution{
			CanonicalKind:  entity.CanonicalCustomer,
			CanonicalID:    res.Customer.ID,
			Source:         ref.Source,
			SourceRecordID: recordID,
			NativeID:       nativeIDFor(recordID, ref),
			SourceData:     ref.Raw,
			FirstSeen:      now,
			LastSeen:       now,
		})
		if err != nil {
			return nil, fmt.Errorf("contribución de cliente: %w", err)
		}
	}
	return res, nil
}

// nativeIDFor sólo conserva el id numérico cuando la contribución es el propio registro.
func nativeIDFor(recordID string, ref entity.Provenance) int64 {
	if recordID == ref.SourceRecordID {
		return ref.NativeID
	}
	return 0
}

// ResolveCustomerStandalone resuelve en una transacción propia.
func (r *Resolver) ResolveCustomerStandalone(ctx context.Context, in entity.IntermediateCustomer, ref entity.Provenance) (*Result, error) {
	var res *Result
	err := r.runner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, err = r.ResolveCustomer(ctx, tx, in, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
