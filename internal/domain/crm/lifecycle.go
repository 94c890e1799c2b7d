package crm

import "github.com/jhoicas/CRM-api/internal/domain/entity"

// DeriveLifecycle función pura de los contadores:
// pedidos > 0 → customer; si no, consultas > 0 → contact; si no, prospect.
func DeriveLifecycle(totalOrders, totalInquiries int) entity.LifecycleStatus {
	switch {
	case totalOrders > 0:
		return entity.LifecycleCustomer
	case totalInquiries > 0:
		return entity.LifecycleContact
	default:
		return entity.LifecycleProspect
	}
}

// ApplyTotals copia los agregados derivados al cliente y recalcula su estado.
// Idempotente: aplicar dos veces los mismos totales deja el mismo resultado.
func ApplyTotals(c *entity.Customer, t entity.ActivityTotals) {
	c.TotalOrders = t.TotalOrders
	c.TotalSpent = t.TotalSpent
	c.TotalInquiries = t.TotalInquiries
	c.FirstContactAt = t.FirstContactAt
	c.LastContactAt = t.LastContactAt
	c.Status = DeriveLifecycle(t.TotalOrders, t.TotalInquiries)
}
