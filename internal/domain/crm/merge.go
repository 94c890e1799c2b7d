package crm

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// NewCustomer siembra un cliente canónico a partir del registro intermedio.
// Estado inicial prospect y contadores en cero; los contadores sólo se derivan.
func NewCustomer(email string, in entity.IntermediateCustomer, now time.Time) *entity.Customer {
	seen := in.SeenAt
	if seen.IsZero() || seen.After(now) {
		seen = now
	}
	return &entity.Customer{
		ID:              uuid.New().String(),
		Email:           email,
		FirstName:       strings.TrimSpace(in.FirstName),
		LastName:        strings.TrimSpace(in.LastName),
		Phone:           strings.TrimSpace(in.Phone),
		CompanyName:     strings.TrimSpace(in.CompanyName),
		BillingAddress:  in.BillingAddress,
		ShippingAddress: in.ShippingAddress,
		Status:          entity.LifecycleProspect,
		Tags:            UnionTags(nil, in.Tags),
		TotalSpent:      decimal.Zero,
		CreatedAt:       seen,
		UpdatedAt:       seen,
	}
}

// MergeCustomer aplica la política de fusión sobre existing (in place) y devuelve si cambió algo.
//
//   - Texto y direcciones: sólo se rellenan huecos; contenido existente nunca se sobrescribe ni se vacía.
//   - CreatedAt = min, UpdatedAt = max.
//   - Tags: unión.
//   - Contadores: no se tocan (se recalculan desde pedidos y consultas).
func MergeCustomer(existing *entity.Customer, in entity.IntermediateCustomer, now time.Time) bool {
	changed := false
	changed = fillText(&existing.FirstName, in.FirstName) || changed
	changed = fillText(&existing.LastName, in.LastName) || changed
	changed = fillText(&existing.Phone, in.Phone) || changed
	changed = fillText(&existing.CompanyName, in.CompanyName) || changed
	changed = fillAddress(&existing.BillingAddress, in.BillingAddress) || changed
	changed = fillAddress(&existing.ShippingAddress, in.ShippingAddress) || changed

	if tags := UnionTags(existing.Tags, in.Tags); len(tags) != len(existing.Tags) {
		existing.Tags = tags
		changed = true
	}

	// Sin marca de tiempo del origen no se alteran las fechas: re-procesar no cambia la fila.
	if seen := in.SeenAt; !seen.IsZero() {
		if seen.After(now) {
			seen = now
		}
		if existing.CreatedAt.IsZero() || seen.Before(existing.CreatedAt) {
			existing.CreatedAt = seen
			changed = true
		}
		if seen.After(existing.UpdatedAt) {
			existing.UpdatedAt = seen
			changed = true
		}
	}
	return changed
}

func fillText(dst *string, incoming string) bool {
	incoming = strings.TrimSpace(incoming)
	if strings.TrimSpace(*dst) != "" || incoming == "" {
		return false
	}
	*dst = incoming
	return true
}

func fillAddress(dst *entity.Address, incoming entity.Address) bool {
	if !dst.IsEmpty() || incoming.IsEmpty() {
		return false
	}
	*dst = incoming
	return true
}

// UnionTags une dos conjuntos de tags preservando el orden de aparición (sin duplicados, case-insensitive).
func UnionTags(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, t := range list {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			key := strings.ToLower(t)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
