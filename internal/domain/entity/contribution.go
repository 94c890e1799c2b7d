package entity

import "time"

// CanonicalKind tipo de registro canónico al que apunta una contribución.
type CanonicalKind string

// Tipos canónicos.
const (
	CanonicalCustomer CanonicalKind = "customer"
	CanonicalOrder    CanonicalKind = "order"
	CanonicalInquiry  CanonicalKind = "inquiry"
)

// SourceContribution fila del libro de procedencia: qué registro de qué origen
// aportó a qué registro canónico y cuándo. Única por (Source, SourceRecordID).
type SourceContribution struct {
	ID             string
	CanonicalKind  CanonicalKind
	CanonicalID    string
	Source         Source
	SourceRecordID string
	NativeID       int64  // id numérico del origen si existe (cursor incremental); 0 si no aplica
	SourceData     []byte // snapshot JSON del registro nativo
	FirstSeen      time.Time
	LastSeen       time.Time
}
