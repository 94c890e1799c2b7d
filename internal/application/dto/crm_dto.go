package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// CustomerResponse cliente canónico.
type CustomerResponse struct {
	ID              string          `json:"id"`
	Email           string          `json:"email"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	Phone           string          `json:"phone,omitempty"`
	CompanyName     string          `json:"company_name,omitempty"`
	BillingAddress  entity.Address  `json:"billing_address"`
	ShippingAddress entity.Address  `json:"shipping_address"`
	Status          string          `json:"status"`
	AssignedOwner   string          `json:"assigned_owner,omitempty"`
	Tags            []string        `json:"tags"`
	TotalInquiries  int             `json:"total_inquiries"`
	TotalOrders     int             `json:"total_orders"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
	FirstContactAt  *time.Time      `json:"first_contact_at,omitempty"`
	LastContactAt   *time.Time      `json:"last_contact_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CustomerDetailResponse cliente con notas, pedidos, consultas y procedencia.
type CustomerDetailResponse struct {
	CustomerResponse
	Notes     []NoteResponse         `json:"notes"`
	Orders    []OrderResponse        `json:"orders"`
	Inquiries []InquiryResponse      `json:"inquiries"`
	Sources   []ContributionResponse `json:"sources"`
}

// CustomerListResponse listado paginado.
type CustomerListResponse struct {
	Items []CustomerResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// CustomerListRequest filtros del listado.
type CustomerListRequest struct {
	PageRequest
	Owner  string `query:"owner"`
	Status string `query:"status"`
	Search string `query:"q"`
}

// LineItemResponse línea tal como llegó más su interpretación efectiva (bundles expandidos).
type LineItemResponse struct {
	SKU               string          `json:"sku,omitempty"`
	Label             string          `json:"label"`
	Quantity          decimal.Decimal `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	LineTotal         decimal.Decimal `json:"line_total"`
	EffectiveSKU      string          `json:"effective_sku"`
	EffectiveQuantity decimal.Decimal `json:"effective_quantity"`
	Bundle            bool            `json:"bundle"`
}

// OrderResponse pedido canónico con vendedor derivado.
type OrderResponse struct {
	ID              string             `json:"id"`
	OrderNumber     string             `json:"order_number"`
	CustomerEmail   string             `json:"customer_email,omitempty"`
	CustomerName    string             `json:"customer_name,omitempty"`
	TotalAmount     decimal.Decimal    `json:"total_amount"`
	Currency        string             `json:"currency"`
	Status          string             `json:"status"`
	ShippingAddress entity.Address     `json:"shipping_address"`
	TrackingNumber  string             `json:"tracking_number,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	NoteFields      map[string]string  `json:"note_fields,omitempty"`
	Source          string             `json:"source"`
	SourceID        string             `json:"source_id"`
	BusinessUnit    string             `json:"business_unit"`
	SalesOwner      string             `json:"sales_owner,omitempty"`
	LineItems       []LineItemResponse `json:"line_items"`
	PlacedAt        *time.Time         `json:"placed_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// InquiryResponse consulta con dueño efectivo.
type InquiryResponse struct {
	ID             string         `json:"id"`
	CustomerEmail  string         `json:"customer_email"`
	Category       string         `json:"category"`
	Message        string         `json:"message"`
	Status         string         `json:"status"`
	AssignedTo     string         `json:"assigned_to,omitempty"`
	EffectiveOwner string         `json:"effective_owner,omitempty"`
	Source         string         `json:"source"`
	SourceRef      string         `json:"source_ref"`
	Notes          []NoteResponse `json:"notes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NoteResponse nota inmutable.
type NoteResponse struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Private   bool      `json:"private"`
	CreatedAt time.Time `json:"created_at"`
}

// ContributionResponse origen que aportó al registro.
type ContributionResponse struct {
	Source         string    `json:"source"`
	SourceRecordID string    `json:"source_record_id"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
}

// SKUUnits unidades efectivas de un SKU.
type SKUUnits struct {
	SKU      string          `json:"sku"`
	Quantity decimal.Decimal `json:"quantity"`
}

// UnitsBySKUResponse reporte de unidades vendidas por SKU con bundles expandidos.
type UnitsBySKUResponse struct {
	From   *time.Time `json:"from,omitempty"`
	To     *time.Time `json:"to,omitempty"`
	Orders int        `json:"orders"`
	Units  []SKUUnits `json:"units"`
}

// ─── Requests ───────────────────────────────────────────────────────────────

// SyncRequest cuerpo de POST /api/sync.
type SyncRequest struct {
	Source      string            `json:"source"`
	Credentials map[string]string `json:"credentials"`
	Mode        string            `json:"mode"`
	Cursor      string            `json:"cursor,omitempty"`
}

// SyncResponse resultado de una corrida.
type SyncResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Stats   entity.SyncStats `json:"stats"`
}

// ReassignRequest cuerpo de PUT /api/customers/:id/owner. Owner vacío libera la asignación.
type ReassignRequest struct {
	Owner string `json:"owner"`
}

// ReassignResponse resultado de la reasignación.
type ReassignResponse struct {
	Customer         CustomerResponse `json:"customer"`
	InquiriesUpdated int              `json:"inquiries_updated"`
}

// NoteRequest cuerpo para agregar una nota.
type NoteRequest struct {
	Body    string `json:"body"`
	Private bool   `json:"private"`
}

// CreateInquiryRequest alta de consulta (formulario web o carga manual).
type CreateInquiryRequest struct {
	ID       string `json:"id,omitempty"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Company  string `json:"company,omitempty"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// CloseInquiryRequest cierre con nota obligatoria.
type CloseInquiryRequest struct {
	Note string `json:"note"`
}

// SyncRunResponse corrida registrada.
type SyncRunResponse struct {
	ID         string           `json:"id"`
	Source     string           `json:"source"`
	Mode       string           `json:"mode"`
	Cursor     string           `json:"cursor,omitempty"`
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	Stats      entity.SyncStats `json:"stats"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}
