// Package accounting lee los exports CSV del sistema contable (contactos y transacciones).
package accounting

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText devuelve el contenido en UTF-8. Acepta UTF-8 con o sin BOM;
// cualquier otro contenido se interpreta como Windows-1252.
func decodeText(b []byte) (string, error) {
	b = bytes.TrimPrefix(b, utf8BOM)
	if utf8.Valid(b) {
		return string(b), nil
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), b)
	if err != nil {
		return "", fmt.Errorf("decodificar Windows-1252: %w", err)
	}
	return string(out), nil
}

// headerKey normaliza encabezados: "Product/Service" → "product_service", "E-mail" → "e_mail".
func headerKey(h string) string {
	fields := strings.FieldsFunc(strings.ToLower(h), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, "_")
}

// row fila con acceso por alias de columna.
type row map[string]string

func (r row) get(aliases ...string) string {
	for _, a := range aliases {
		if v, ok := r[a]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// readRows lee un CSV con encabezado. Filas vacías se ignoran.
func readRows(r io.Reader) ([]row, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text, err := decodeText(raw)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("leer encabezado: %w", err)
	}
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = headerKey(h)
	}

	var rows []row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("leer fila: %w", err)
		}
		rw := make(row, len(keys))
		empty := true
		for i, v := range rec {
			if i >= len(keys) || keys[i] == "" {
				continue
			}
			rw[keys[i]] = v
			if strings.TrimSpace(v) != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, rw)
		}
	}
}
