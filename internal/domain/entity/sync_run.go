package entity

import "time"

// SyncMode modo de una corrida de sincronización.
type SyncMode string

// Modos de sincronización.
const (
	SyncFull        SyncMode = "full"
	SyncIncremental SyncMode = "incremental"
	SyncPush        SyncMode = "push" // lote recibido por webhook
)

// SyncStats contadores de una corrida.
type SyncStats struct {
	Fetched  int `json:"fetched"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
	Pages    int `json:"pages"`
}

// Add acumula otros contadores.
func (s *SyncStats) Add(o SyncStats) {
	s.Fetched += o.Fetched
	s.Inserted += o.Inserted
	s.Updated += o.Updated
	s.Skipped += o.Skipped
	s.Errors += o.Errors
	s.Pages += o.Pages
}

// SyncRun registro de auditoría de una corrida del orquestador.
type SyncRun struct {
	ID         string
	Source     Source
	Mode       SyncMode
	Cursor     string
	Stats      SyncStats
	Success    bool
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}
