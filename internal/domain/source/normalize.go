// Package source traduce los registros nativos de cada origen (e-commerce, contabilidad,
// web) a la representación intermedia común. Todas las funciones son puras.
package source

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// RawRecord registro nativo tal como lo entrega el cliente del origen.
// Payload es JSON y se conserva como snapshot en el libro de procedencia.
type RawRecord struct {
	Source  entity.Source     `json:"source"`
	Kind    entity.RecordKind `json:"kind"`
	Payload json.RawMessage   `json:"payload"`
}

// Normalize despacha al normalizador del origen y tipo. Los campos obligatorios
// ausentes devuelven un error que envuelve domain.ErrMalformedRecord.
func Normalize(raw RawRecord) (*entity.Record, error) {
	var (
		rec *entity.Record
		err error
	)
	switch {
	case raw.Source == entity.SourceEcommerce && raw.Kind == entity.KindOrder:
		var p EcommerceOrder
		if err = decode(raw.Payload, &p); err == nil {
			rec, err = NormalizeEcommerceOrder(p)
		}
	case raw.Source == entity.SourceEcommerce && raw.Kind == entity.KindCustomer:
		var p EcommerceCustomer
		if err = decode(raw.Payload, &p); err == nil {
			rec, err = NormalizeEcommerceCustomer(p)
		}
	case raw.Source == entity.SourceAccounting && raw.Kind == entity.KindContact:
		var p AccountingContact
		if err = decode(raw.Payload, &p); err == nil {
			rec, err = NormalizeAccountingContact(p)
		}
	case raw.Source == entity.SourceAccounting && raw.Kind == entity.KindInvoice:
		var p AccountingTransaction
		if err = decode(raw.Payload, &p); err == nil {
			rec, err = NormalizeAccountingTransaction(p)
		}
	case (raw.Source == entity.SourceWebsite || raw.Source == entity.SourceManual) && raw.Kind == entity.KindInquiry:
		var p WebsiteInquiry
		if err = decode(raw.Payload, &p); err == nil {
			rec, err = NormalizeWebsiteInquiry(raw.Source, p)
		}
	default:
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrUnknownSource, raw.Source, raw.Kind)
	}
	if err != nil {
		return nil, err
	}
	rec.Raw = raw.Payload
	return rec, nil
}

func decode(payload []byte, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload vacío", domain.ErrMalformedRecord)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	return nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedRecord, fmt.Sprintf(format, args...))
}

// parseMoney interpreta montos decimales en texto ("19.99", "1,299.00"). Vacío = (cero, false).
func parseMoney(field, s string) (decimal.Decimal, bool, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, malformed("%s %q no es un monto válido", field, s)
	}
	return d, true, nil
}

// parseTimestamp acepta ISO-8601 (RFC 3339). Vacío o inválido = tiempo cero (campo opcional).
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func latest(ts ...time.Time) time.Time {
	var out time.Time
	for _, t := range ts {
		if t.After(out) {
			out = t
		}
	}
	return out
}
