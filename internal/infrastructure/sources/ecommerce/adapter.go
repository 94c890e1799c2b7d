package ecommerce

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/CRM-api/internal/application/syncer"
	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/source"
	"github.com/jhoicas/CRM-api/pkg/config"
)

// Claves de credenciales aceptadas en la petición de sincronización.
const (
	CredBaseURL     = "base_url"
	CredAccessToken = "access_token"
	CredAPIVersion  = "api_version"
	CredResource    = "resource"
)

// Adapter adaptador de sincronización sobre el Client.
type Adapter struct {
	syncer.NormalizingAdapter
	client   *Client
	resource Resource
}

var _ syncer.SourceAdapter = (*Adapter)(nil)

// NewAdapter adaptador de una colección.
func NewAdapter(client *Client, res Resource) *Adapter {
	return &Adapter{client: client, resource: res}
}

func (a *Adapter) Source() entity.Source { return entity.SourceEcommerce }

func (a *Adapter) Kind() entity.RecordKind {
	if a.resource == ResourceCustomers {
		return entity.KindCustomer
	}
	return entity.KindOrder
}

// FetchPage pide una página y la envuelve como registros nativos.
func (a *Adapter) FetchPage(ctx context.Context, req syncer.PageRequest) (*syncer.Page, error) {
	items, next, err := a.client.ListPage(ctx, a.resource, req.Cursor, req.SinceID, req.Limit)
	if err != nil {
		return nil, err
	}
	page := &syncer.Page{NextCursor: next, Records: make([]source.RawRecord, 0, len(items))}
	for _, it := range items {
		page.Records = append(page.Records, source.RawRecord{Source: entity.SourceEcommerce, Kind: a.Kind(), Payload: it})
	}
	return page, nil
}

// Factory fábrica registrable en el orquestador: las credenciales de la petición
// tienen prioridad sobre la configuración.
func Factory(cfg config.EcommerceConfig) syncer.AdapterFactory {
	return func(creds map[string]string) (syncer.SourceAdapter, error) {
		base := pick(creds[CredBaseURL], cfg.BaseURL)
		token := pick(creds[CredAccessToken], cfg.AccessToken)
		if base == "" || token == "" {
			return nil, fmt.Errorf("%w: e-commerce requiere %s y %s", domain.ErrInvalidInput, CredBaseURL, CredAccessToken)
		}
		res := Resource(pick(creds[CredResource], string(ResourceOrders)))
		if res != ResourceOrders && res != ResourceCustomers {
			return nil, fmt.Errorf("%w: recurso %q", domain.ErrInvalidInput, res)
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client := NewClient(base, token, pick(creds[CredAPIVersion], cfg.APIVersion), timeout, nil)
		return NewAdapter(client, res), nil
	}
}

func pick(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
