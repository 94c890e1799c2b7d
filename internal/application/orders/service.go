package orders

import (
	"context"
	"sort"
	"time"

	"github.com/jhoicas/CRM-api/internal/application/dto"
	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/crm"
	"github.com/jhoicas/CRM-api/internal/domain/repository"
)

// Service lecturas de pedidos. Las líneas siempre se presentan expandidas con la tabla de bundles.
type Service struct {
	store   repository.Store
	bundles *crm.BundleTable
}

// NewService construye el servicio de lectura.
func NewService(store repository.Store, bundles *crm.BundleTable) *Service {
	return &Service{store: store, bundles: bundles}
}

// GetOrder devuelve el pedido con su vendedor derivado.
func (s *Service) GetOrder(ctx context.Context, id string) (*dto.OrderResponse, error) {
	repos := s.store.Repos()
	o, err := repos.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrNotFound
	}
	out := dto.FromOrder(o, s.bundles)
	return &out, nil
}

// UnitsBySKU suma unidades efectivas por SKU de los pedidos en [from, to). Fechas cero = sin límite.
func (s *Service) UnitsBySKU(ctx context.Context, from, to time.Time) (*dto.UnitsBySKUResponse, error) {
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, domain.ErrInvalidInput
	}
	list, err := s.store.Repos().Orders.ListPlacedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := &dto.UnitsBySKUResponse{Orders: len(list), Units: []dto.SKUUnits{}}
	if !from.IsZero() {
		out.From = &from
	}
	if !to.IsZero() {
		out.To = &to
	}
	totals := make(map[string]dto.SKUUnits)
	for _, o := range list {
		for sku, qty := range s.bundles.UnitsBySKU(o.LineItems) {
			u := totals[sku]
			u.SKU = sku
			u.Quantity = u.Quantity.Add(qty)
			totals[sku] = u
		}
	}
	for _, u := range totals {
		out.Units = append(out.Units, u)
	}
	sort.Slice(out.Units, func(i, j int) bool {
		if c := out.Units[i].Quantity.Cmp(out.Units[j].Quantity); c != 0 {
			return c > 0
		}
		return out.Units[i].SKU < out.Units[j].SKU
	})
	return out, nil
}
