package repository

import (
	"context"
	"time"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// OrderRepository puerto de persistencia de pedidos canónicos, únicos por (source, order_number).
type OrderRepository interface {
	// Upsert inserta o actualiza en una sola sentencia. Asigna o.ID y o.CustomerEmail con los valores almacenados.
	// Un email de cliente vacío nunca borra el guardado. previousEmail es el email vinculado antes
	// de la sentencia (vacío si se insertó o no tenía).
	Upsert(ctx context.Context, o *entity.Order) (inserted bool, previousEmail string, err error)
	// GetByID incluye SalesOwner derivado del cliente vinculado.
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	ListByEmail(ctx context.Context, email string) ([]*entity.Order, error)
	// ListPlacedBetween pedidos con fecha en [from, to) para reportes.
	ListPlacedBetween(ctx context.Context, from, to time.Time) ([]*entity.Order, error)
}
