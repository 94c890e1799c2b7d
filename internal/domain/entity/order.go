package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus estado canónico de un pedido.
type OrderStatus string

// Estados canónicos de pedido.
const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
)

// BusinessUnit partición gruesa de pedidos para reportes.
type BusinessUnit string

// Unidades de negocio.
const (
	BusinessUnitDistributor BusinessUnit = "distributor"
	BusinessUnitDigital     BusinessUnit = "digital"
)

// LineItem línea de pedido tal como llegó del origen (el orden se conserva).
type LineItem struct {
	SKU       string          `json:"sku,omitempty"`
	Label     string          `json:"label"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Order es el pedido canónico, único por (Source, OrderNumber).
type Order struct {
	ID              string
	OrderNumber     string
	CustomerEmail   string // vacío si el pedido quedó sin vincular
	CustomerName    string
	TotalAmount     decimal.Decimal
	Currency        string
	Status          OrderStatus
	ShippingAddress Address
	TrackingNumber  string
	Notes           string
	Source          Source
	SourceID        string // id nativo en el origen
	BusinessUnit    BusinessUnit
	LineItems       []LineItem
	SalesOwner      string // derivado en lectura: customers.assigned_owner
	PlacedAt        time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
