package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LifecycleStatus estado comercial del cliente, derivado de sus contadores.
type LifecycleStatus string

// Estados de ciclo de vida.
const (
	LifecycleProspect LifecycleStatus = "prospect"
	LifecycleContact  LifecycleStatus = "contact"
	LifecycleCustomer LifecycleStatus = "customer"
)

// Address dirección postal (facturación o envío).
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// IsEmpty indica si la dirección no tiene ningún campo con contenido.
func (a Address) IsEmpty() bool {
	return strings.TrimSpace(a.Line1+a.Line2+a.City+a.Province+a.PostalCode+a.Country) == ""
}

// Customer es el registro canónico de un cliente (una fila por email normalizado).
type Customer struct {
	ID              string
	Email           string // normalizado: trim + minúsculas
	FirstName       string
	LastName        string
	Phone           string
	CompanyName     string
	BillingAddress  Address
	ShippingAddress Address
	Status          LifecycleStatus
	AssignedOwner   string // email del vendedor; vacío = sin asignar
	Tags            []string
	Notes           []*Note // sólo en lecturas de detalle
	TotalInquiries  int
	TotalOrders     int
	TotalSpent      decimal.Decimal
	FirstContactAt  *time.Time
	LastContactAt   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FullName nombre y apellido separados por espacio.
func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// ActivityTotals agregados derivados de pedidos y consultas de un email.
type ActivityTotals struct {
	TotalOrders    int
	TotalSpent     decimal.Decimal
	TotalInquiries int
	FirstContactAt *time.Time
	LastContactAt  *time.Time
}
