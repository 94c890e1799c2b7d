package repository

import (
	"context"
	"time"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// CustomerFilter criterios del listado de clientes.
type CustomerFilter struct {
	Owner  string                 // "" = todos; "-" = sin asignar
	Status entity.LifecycleStatus // "" = todos
	Search string                 // coincidencia parcial en email, nombre o empresa
	Limit  int
	Offset int
}

// CustomerRepository define el puerto de persistencia del cliente canónico (único por email).
type CustomerRepository interface {
	// InsertIfAbsent inserta atómicamente; inserted=false si el email ya existía.
	InsertIfAbsent(ctx context.Context, c *entity.Customer) (inserted bool, err error)
	// GetByEmailForUpdate lee y bloquea la fila hasta el fin de la transacción. nil si no existe.
	GetByEmailForUpdate(ctx context.Context, email string) (*entity.Customer, error)
	GetByID(ctx context.Context, id string) (*entity.Customer, error)
	GetByEmail(ctx context.Context, email string) (*entity.Customer, error)
	List(ctx context.Context, f CustomerFilter) ([]*entity.Customer, error)
	// Update persiste los campos de perfil y etiquetas. No toca contadores ni dueño.
	Update(ctx context.Context, c *entity.Customer) error
	// UpdateTotals persiste contadores derivados y estado de ciclo de vida.
	UpdateTotals(ctx context.Context, id string, status entity.LifecycleStatus, t entity.ActivityTotals) error
	SetOwner(ctx context.Context, id, owner string, at time.Time) error
	// SetOwnerIfUnset asigna el dueño sólo si el cliente no tiene uno, en una sola sentencia.
	// claimed=false si ya tenía dueño.
	SetOwnerIfUnset(ctx context.Context, id, owner string, at time.Time) (claimed bool, err error)
	// AggregateActivity calcula los totales a partir de pedidos y consultas del email.
	AggregateActivity(ctx context.Context, email string) (entity.ActivityTotals, error)
}
