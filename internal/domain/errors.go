package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")
)

// Errores de unificación y sincronización.
// Nivel registro: ErrMalformedRecord, ErrInvalidIdentity, ErrConflictRetryExhausted (el lote continúa).
// Nivel página/corrida: ErrUpstreamRateLimited, ErrTransportFailure, ErrPaginationLoop.
var (
	ErrMalformedRecord        = errors.New("registro mal formado")
	ErrInvalidIdentity        = errors.New("identidad inválida: email no utilizable")
	ErrConflictRetryExhausted = errors.New("reintentos de conflicto agotados")
	ErrPaginationLoop         = errors.New("ciclo de paginación detectado")
	ErrUpstreamRateLimited    = errors.New("límite de peticiones del origen alcanzado")
	ErrTransportFailure       = errors.New("fallo de transporte con el origen")
	ErrUnknownSource          = errors.New("origen desconocido")
)

// Errores del flujo de consultas (inquiries).
var (
	ErrInvalidTransition   = errors.New("transición de estado no permitida")
	ErrClosingNoteRequired = errors.New("se requiere una nota de cierre")
)
