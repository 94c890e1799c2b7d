// Package website lee exports JSON de consultas del formulario web.
package website

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jhoicas/CRM-api/internal/application/syncer"
	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/source"
)

// CredPath ruta del export JSON en las credenciales.
const CredPath = "path"

// Adapter sirve un arreglo JSON de consultas paginado por desplazamiento.
type Adapter struct {
	syncer.NormalizingAdapter
	src   entity.Source
	items []json.RawMessage
}

var _ syncer.SourceAdapter = (*Adapter)(nil)

// Load lee el arreglo completo. Acepta `[...]` o `{"inquiries": [...]}`.
func Load(r io.Reader, src entity.Source) (*Adapter, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	items, err := DecodeBatch(b)
	if err != nil {
		return nil, err
	}
	return &Adapter{src: src, items: items}, nil
}

// DecodeBatch separa un lote de consultas en sus elementos crudos.
func DecodeBatch(b []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err == nil {
		return items, nil
	}
	var envelope struct {
		Inquiries []json.RawMessage `json:"inquiries"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return nil, fmt.Errorf("%w: lote de consultas: %v", domain.ErrMalformedRecord, err)
	}
	if envelope.Inquiries == nil {
		// Un objeto suelto es una única consulta.
		return []json.RawMessage{json.RawMessage(b)}, nil
	}
	return envelope.Inquiries, nil
}

// RawRecords envuelve los elementos como registros nativos del origen.
func RawRecords(src entity.Source, items []json.RawMessage) []source.RawRecord {
	out := make([]source.RawRecord, 0, len(items))
	for _, it := range items {
		out = append(out, source.RawRecord{Source: src, Kind: entity.KindInquiry, Payload: it})
	}
	return out
}

func (a *Adapter) Source() entity.Source   { return a.src }
func (a *Adapter) Kind() entity.RecordKind { return entity.KindInquiry }

// FetchPage ignora SinceID: las consultas no tienen id numérico y su alta es idempotente.
func (a *Adapter) FetchPage(ctx context.Context, req syncer.PageRequest) (*syncer.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	offset := 0
	if req.Cursor != "" {
		n, err := strconv.Atoi(req.Cursor)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: cursor %q", domain.ErrInvalidInput, req.Cursor)
		}
		offset = n
	}
	if offset > len(a.items) {
		offset = len(a.items)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = syncer.DefaultPageSize
	}
	end := min(offset+limit, len(a.items))
	page := &syncer.Page{Records: RawRecords(a.src, a.items[offset:end])}
	if end < len(a.items) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// Factory abre el export indicado en las credenciales.
func Factory(src entity.Source) syncer.AdapterFactory {
	return func(creds map[string]string) (syncer.SourceAdapter, error) {
		path := creds[CredPath]
		if path == "" {
			return nil, fmt.Errorf("%w: falta %s", domain.ErrInvalidInput, CredPath)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
		}
		defer f.Close()
		return Load(f, src)
	}
}
