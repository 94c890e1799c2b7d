package repository

import (
	"context"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// NoteRepository notas de sólo agregado: no existe edición ni borrado.
type NoteRepository interface {
	Append(ctx context.Context, n *entity.Note) error
	List(ctx context.Context, subject entity.NoteSubject, subjectID string) ([]*entity.Note, error)
}
