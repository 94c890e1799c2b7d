package crm

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail aplica trim + minúsculas. Devuelve ok=false si el resultado no tiene forma de email.
func NormalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if !emailShape.MatchString(email) {
		return email, false
	}
	return email, true
}

// CleanText normaliza a NFC y colapsa espacios internos.
func CleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

var folder = cases.Fold()

// NameKey clave de comparación para nombres completos (contactos contables):
// NFC, case folding y espacios colapsados.
func NameKey(fullName string) string {
	return folder.String(CleanText(fullName))
}

// SplitFullName separa "Nombre Apellido(s)" en nombre y apellidos.
func SplitFullName(full string) (first, last string) {
	parts := strings.Fields(CleanText(full))
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
