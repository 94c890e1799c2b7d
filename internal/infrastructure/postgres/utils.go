package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/CRM-api/internal/domain"
)

// Códigos SQLSTATE relevantes.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// isRetryable fallo de serialización o deadlock: el intento puede repetirse.
func isRetryable(err error) bool {
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// wrapErr traduce errores de Postgres a errores de dominio conservando el original.
func wrapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isRetryable(err):
		return fmt.Errorf("%s: %w: %v", op, domain.ErrConflict, err)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %v", op, domain.ErrDuplicate, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

// jsonArg serializa a JSON para columnas jsonb.
func jsonArg(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// rawJSON devuelve el snapshot o "{}" si está vacío.
func rawJSON(b []byte) string {
	if len(b) == 0 || !json.Valid(b) {
		return "{}"
	}
	return string(b)
}
