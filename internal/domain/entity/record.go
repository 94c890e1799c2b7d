package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// IntermediateCustomer representación común de un cliente, independiente del origen.
type IntermediateCustomer struct {
	RecordID        string // id de registro del cliente en el origen (con espacio de nombres); vacío = derivar del email
	Email           string
	FirstName       string
	LastName        string
	Phone           string
	CompanyName     string
	BillingAddress  Address
	ShippingAddress Address
	Tags            []string
	SeenAt          time.Time
}

// IntermediateOrder representación común de un pedido.
type IntermediateOrder struct {
	OrderNumber       string
	SourceID          string
	Customer          IntermediateCustomer
	TotalAmount       decimal.Decimal
	Currency          string
	FinancialStatus   string
	FulfillmentStatus string
	ShippingAddress   Address
	TrackingNumber    string
	Notes             string
	LineItems         []LineItem
	PlacedAt          time.Time
	UpdatedAt         time.Time
}

// IntermediateInquiry representación común de una consulta.
type IntermediateInquiry struct {
	SourceRef string
	Customer  IntermediateCustomer
	Category  InquiryCategory
	Message   string
	CreatedAt time.Time
}

// Record resultado de normalizar un registro nativo; exactamente uno de
// Customer, Order o Inquiry viene informado según Kind.
type Record struct {
	Source         Source
	Kind           RecordKind
	SourceRecordID string
	NativeID       int64
	Raw            []byte
	Customer       *IntermediateCustomer
	Order          *IntermediateOrder
	Inquiry        *IntermediateInquiry
}

// Provenance referencia al registro nativo que aporta a un registro canónico.
type Provenance struct {
	Source         Source
	SourceRecordID string
	NativeID       int64
	Raw            []byte
}

// Provenance referencia de procedencia del propio registro.
func (r *Record) Provenance() Provenance {
	return Provenance{Source: r.Source, SourceRecordID: r.SourceRecordID, NativeID: r.NativeID, Raw: r.Raw}
}
