package repository

import (
	"context"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// ContributionRepository libro de procedencia: (source, sourceRecordId) → registro canónico.
type ContributionRepository interface {
	// Upsert inserta con firstSeen = lastSeen, o actualiza lastSeen, snapshot y destino canónico.
	Upsert(ctx context.Context, c *entity.SourceContribution) (created bool, err error)
	// MaxNativeID mayor id nativo visto para el origen y tipo de registro (0 si no hay).
	// Cursor del modo incremental.
	MaxNativeID(ctx context.Context, source entity.Source, kind entity.RecordKind) (int64, error)
	ListByCanonical(ctx context.Context, kind entity.CanonicalKind, canonicalID string) ([]*entity.SourceContribution, error)
}
