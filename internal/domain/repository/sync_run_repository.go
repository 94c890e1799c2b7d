package repository

import (
	"context"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// SyncRunRepository auditoría de corridas del orquestador.
type SyncRunRepository interface {
	Create(ctx context.Context, run *entity.SyncRun) error
	ListRecent(ctx context.Context, source entity.Source, limit int) ([]*entity.SyncRun, error)
}
