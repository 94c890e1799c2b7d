package repository

import (
	"context"
	"time"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// InquiryRepository puerto de persistencia de consultas.
type InquiryRepository interface {
	// Upsert idempotente por (source, source_ref). Nunca modifica estado ni dueño de una existente.
	// Asigna i.ID, i.Status e i.AssignedTo con los valores almacenados.
	Upsert(ctx context.Context, i *entity.Inquiry) (inserted bool, err error)
	// GetByID incluye EffectiveOwner.
	GetByID(ctx context.Context, id string) (*entity.Inquiry, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Inquiry, error)
	// Update persiste estado, dueño y updated_at.
	Update(ctx context.Context, i *entity.Inquiry) error
	// ReassignOpen asigna owner a todas las consultas abiertas del email. Devuelve cuántas cambió.
	ReassignOpen(ctx context.Context, email, owner string, at time.Time) (int, error)
	ListByEmail(ctx context.Context, email string) ([]*entity.Inquiry, error)
}
