// Package orders unifica pedidos de todos los orígenes en el pedido canónico (único por origen y número).
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jhoicas/CRM-api/internal/application/identity"
	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/crm"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/repository"
)

// Counters recalcula los contadores derivados del cliente de un email.
type Counters interface {
	RecomputeCounters(ctx context.Context, repos repository.Repos, email string) (*entity.Customer, error)
}

// Result pedido canónico resultante.
type Result struct {
	Order           *entity.Order
	Inserted        bool
	CustomerCreated bool
	// Warning problema no fatal (p. ej. email inválido: el pedido queda sin vincular).
	Warning error
}

// Unifier resuelve pedidos dentro de la transacción del llamador.
type Unifier struct {
	identity *identity.Resolver
	counters Counters
	bundles  *crm.BundleTable
	log      zerolog.Logger
}

// NewUnifier construye el unificador.
func NewUnifier(resolver *identity.Resolver, counters Counters, bundles *crm.BundleTable, log zerolog.Logger) *Unifier {
	return &Unifier{identity: resolver, counters: counters, bundles: bundles, log: log}
}

// ResolveOrder vincula el cliente por email, mapea estado y unidad de negocio, hace upsert por
// (source, orderNumber), registra la contribución y recalcula los contadores del cliente.
func (u *Unifier) ResolveOrder(ctx context.Context, tx repository.Tx, in entity.IntermediateOrder, ref entity.Provenance) (*Result, error) {
	number := strings.TrimSpace(in.OrderNumber)
	if number == "" {
		return nil, fmt.Errorf("%w: pedido sin número", domain.ErrMalformedRecord)
	}
	res := &Result{}
	now := u.identity.Now()

	var customerEmail, customerName string
	cr, err := u.identity.ResolveCustomer(ctx, tx, in.Customer, ref)
	switch {
	case err == nil:
		customerEmail = cr.Customer.Email
		customerName = cr.Customer.FullName()
		res.CustomerCreated = cr.Created
	case errors.Is(err, domain.ErrInvalidIdentity):
		res.Warning = err
		u.log.Warn().Err(err).Str("source", string(ref.Source)).Str("order_number", number).Msg("pedido sin cliente vinculable")
	default:
		return nil, err
	}
	if customerName == "" {
		customerName = strings.TrimSpace(in.Customer.FirstName + " " + in.Customer.LastName)
	}

	status, matched := crm.MapOrderStatus(ref.Source, in.FinancialStatus, in.FulfillmentStatus)
	if !matched {
		u.log.Warn().Str("source", string(ref.Source)).Str("order_number", number).
			Str("financial", in.FinancialStatus).Str("fulfillment", in.FulfillmentStatus).
			Msg("combinación de estados desconocida, se usa pending")
	}

	updated := in.UpdatedAt
	if updated.IsZero() {
		updated = in.PlacedAt
	}
	if updated.IsZero() || updated.After(now) {
		updated = now
	}
	order := &entity.Order{
		OrderNumber:     number,
		CustomerEmail:   customerEmail,
		CustomerName:    customerName,
		TotalAmount:     in.TotalAmount,
		Currency:        in.Currency,
		Status:          status,
		ShippingAddress: in.ShippingAddress,
		TrackingNumber:  in.TrackingNumber,
		Notes:           in.Notes,
		Source:          ref.Source,
		SourceID:        in.SourceID,
		BusinessUnit:    crm.ClassifyBusinessUnit(ref.Source, in.LineItems, u.bundles),
		LineItems:       in.LineItems,
		PlacedAt:        in.PlacedAt,
		CreatedAt:       now,
		UpdatedAt:       updated,
	}
	repos := tx.Repos()
	var previousEmail string
	if res.Inserted, previousEmail, err = repos.Orders.Upsert(ctx, order); err != nil {
		return nil, err
	}
	res.Order = order

	if _, err := repos.Contributions.Upsert(ctx, &entity.SourceContribution{
		CanonicalKind:  entity.CanonicalOrder,
		CanonicalID:    order.ID,
		Source:         ref.Source,
		SourceRecordID: ref.SourceRecordID,
		NativeID:       ref.NativeID,
		SourceData:     ref.Raw,
		FirstSeen:      now,
		LastSeen:       now,
	}); err != nil {
		return nil, fmt.Errorf("contribución de pedido: %w", err)
	}

	// El email almacenado puede venir de una sincronización anterior aunque este registro no lo traiga.
	// Si el pedido cambió de cliente, el anterior también pierde la actividad.
	for _, email := range affectedEmails(previousEmail, order.CustomerEmail) {
		if _, err := u.counters.RecomputeCounters(ctx, repos, email); err != nil {
			return nil, fmt.Errorf("recalcular contadores de %s: %w", email, err)
		}
	}
	return res, nil
}

func affectedEmails(previous, current string) []string {
	var out []string
	if current != "" {
		out = append(out, current)
	}
	if previous != "" && previous != current {
		out = append(out, previous)
	}
	return out
}
