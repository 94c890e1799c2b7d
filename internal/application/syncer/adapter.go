package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/source"
)

// PageRequest petición de una página al origen. Cursor vacío = primera página;
// SinceID > 0 pide sólo registros con id nativo mayor (modo incremental).
type PageRequest struct {
	Cursor  string
	SinceID int64
	Limit   int
}

// Page página devuelta por el origen. NextCursor vacío = no hay más páginas.
type Page struct {
	Records    []source.RawRecord
	NextCursor string
}

// SourceAdapter capacidades que el orquestador necesita de cada origen.
type SourceAdapter interface {
	Source() entity.Source
	// Kind tipo de registro principal; su mayor id nativo es el cursor incremental.
	Kind() entity.RecordKind
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)
	MapRecord(raw source.RawRecord) (*entity.Record, error)
}

// AdapterFactory construye un adaptador por corrida con las credenciales de la petición.
type AdapterFactory func(credentials map[string]string) (SourceAdapter, error)

// UpstreamError error del origen con la espera sugerida (cabecera Retry-After).
// Envuelve domain.ErrUpstreamRateLimited o domain.ErrTransportFailure.
type UpstreamError struct {
	Err        error
	RetryAfter time.Duration
	Detail     string
}

func (e *UpstreamError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Detail)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// RateLimited construye el error de límite de peticiones.
func RateLimited(retryAfter time.Duration, detail string) error {
	return &UpstreamError{Err: domain.ErrUpstreamRateLimited, RetryAfter: retryAfter, Detail: detail}
}

// TransportFailure construye el error de transporte.
func TransportFailure(detail string) error {
	return &UpstreamError{Err: domain.ErrTransportFailure, Detail: detail}
}

func retryAfter(err error) time.Duration {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.RetryAfter
	}
	return 0
}

// NormalizingAdapter implementa MapRecord con el normalizador común.
// Los adaptadores concretos lo embeben.
type NormalizingAdapter struct{}

// MapRecord normaliza el registro nativo.
func (NormalizingAdapter) MapRecord(raw source.RawRecord) (*entity.Record, error) {
	return source.Normalize(raw)
}
