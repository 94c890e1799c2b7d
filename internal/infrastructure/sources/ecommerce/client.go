// Package ecommerce cliente REST de la plataforma de e-commerce (pedidos y clientes paginados).
package ecommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/CRM-api/internal/application/syncer"
	"github.com/jhoicas/CRM-api/internal/domain"
)

const (
	defaultAPIVersion = "2024-01"
	maxResponseSize   = 16 << 20
	maxPageSize       = 250
)

// Resource colección paginada del API.
type Resource string

const (
	ResourceOrders    Resource = "orders"
	ResourceCustomers Resource = "customers"
)

// Client cliente HTTP del API de administración. Usa net/http; no hay SDK oficial en Go.
type Client struct {
	baseURL    string
	token      string
	apiVersion string
	httpClient *http.Client
}

// NewClient construye el cliente. httpClient nil = cliente con el timeout dado.
func NewClient(baseURL, token, apiVersion string, timeout time.Duration, httpClient *http.Client) *Client {
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		apiVersion: apiVersion,
		httpClient: httpClient,
	}
}

// ListPage una página de la colección: los elementos crudos y el page_info de la siguiente ("" = última).
// 429 devuelve syncer.RateLimited con Retry-After; errores de red y 5xx, syncer.TransportFailure.
func (c *Client) ListPage(ctx context.Context, res Resource, pageInfo string, sinceID int64, limit int) ([]json.RawMessage, string, error) {
	if c.baseURL == "" {
		return nil, "", fmt.Errorf("%w: URL base del e-commerce no configurada", domain.ErrInvalidInput)
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if pageInfo != "" {
		// Con page_info el API rechaza cualquier otro filtro.
		q.Set("page_info", pageInfo)
	} else {
		if res == ResourceOrders {
			q.Set("status", "any")
		}
		if sinceID > 0 {
			q.Set("since_id", strconv.FormatInt(sinceID, 10))
		}
	}
	endpoint := fmt.Sprintf("%s/admin/api/%s/%s.json?%s", c.baseURL, c.apiVersion, res, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("ecommerce: crear request: %w", err)
	}
	req.Header.Set("X-Access-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", syncer.TransportFailure(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, "", syncer.TransportFailure(fmt.Sprintf("leer respuesta: %v", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, "", syncer.RateLimited(parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()), "HTTP 429")
	case resp.StatusCode >= 500:
		return nil, "", syncer.TransportFailure(fmt.Sprintf("HTTP %d", resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, "", fmt.Errorf("%w: e-commerce HTTP %d", domain.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, "", fmt.Errorf("ecommerce: HTTP %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var envelope map[string][]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, "", syncer.TransportFailure(fmt.Sprintf("respuesta no es JSON válido: %v", err))
	}
	items, ok := envelope[string(res)]
	if !ok {
		return nil, "", errors.New("ecommerce: respuesta sin colección " + string(res))
	}
	return items, nextPageInfo(resp.Header.Get("Link")), nil
}

// nextPageInfo extrae page_info del enlace rel="next" de la cabecera Link.
func nextPageInfo(link string) string {
	for _, part := range strings.Split(link, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		isNext := false
		for _, s := range segs[1:] {
			if strings.TrimSpace(s) == `rel="next"` {
				isNext = true
			}
		}
		if !isNext {
			continue
		}
		raw := strings.Trim(strings.TrimSpace(segs[0]), "<>")
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		return u.Query().Get("page_info")
	}
	return ""
}

// parseRetryAfter acepta segundos o fecha HTTP. Ausente o inválido = 0 (usar backoff propio).
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "…"
	}
	return string(b)
}
