package source_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/crm"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/source"
)

const pedidoTienda = `{
  "id": 450789469,
  "name": "#1001",
  "order_number": 1001,
  "email": "Ana@Example.com",
  "customer": {"id": 207119551, "email": "ana@example.com", "first_name": "Ana", "last_name": "Pérez", "tags": "vip, mayorista"},
  "billing_address": {"address1": "Calle 1", "city": "Bogotá", "company": "Acme", "phone": "555"},
  "shipping_address": {"address1": "Carrera 2", "city": "Medellín"},
  "total_price": "45.00",
  "currency": "usd",
  "financial_status": "paid",
  "fulfillment_status": null,
  "line_items": [
    {"sku": "W-1", "title": "Agua 1L", "quantity": 2, "price": "10.00", "total_discount": "1.00"},
    {"sku": "W-6", "title": "Agua  6-pack", "quantity": 1, "price": "26.00", "total_discount": "0"}
  ],
  "note": "Dejar en portería",
  "note_attributes": [{"name": "po_number", "value": "PO-9"}],
  "fulfillments": [{"tracking_number": "TRK1"}],
  "created_at": "2024-03-01T10:00:00-05:00",
  "updated_at": "2024-03-02T10:00:00-05:00"
}`

func raw(src entity.Source, kind entity.RecordKind, payload string) source.RawRecord {
	return source.RawRecord{Source: src, Kind: kind, Payload: json.RawMessage(payload)}
}

// ─── E-commerce ─────────────────────────────────────────────────────────────

func TestNormalize_PedidoEcommerce(t *testing.T) {
	rec, err := source.Normalize(raw(entity.SourceEcommerce, entity.KindOrder, pedidoTienda))
	require.NoError(t, err)

	assert.Equal(t, entity.KindOrder, rec.Kind)
	assert.Equal(t, "order:450789469", rec.SourceRecordID)
	assert.Equal(t, int64(450789469), rec.NativeID)
	assert.JSONEq(t, pedidoTienda, string(rec.Raw))

	o := rec.Order
	require.NotNil(t, o)
	assert.Equal(t, "1001", o.OrderNumber)
	assert.True(t, decimal.RequireFromString("45").Equal(o.TotalAmount))
	assert.Equal(t, "USD", o.Currency)
	assert.Equal(t, "", o.FulfillmentStatus)
	assert.Equal(t, "TRK1", o.TrackingNumber)
	require.Len(t, o.LineItems, 2)
	assert.True(t, decimal.RequireFromString("19").Equal(o.LineItems[0].LineTotal), "2×10 − 1")
	assert.Equal(t, "Agua 6-pack", o.LineItems[1].Label)
	assert.True(t, o.PlacedAt.Equal(time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)))

	free, fields := crm.ParseOrderNotes(o.Notes)
	assert.Equal(t, "Dejar en portería", free)
	assert.Equal(t, "PO-9", fields["po_number"])

	c := o.Customer
	assert.Equal(t, "customer:207119551", c.RecordID)
	assert.Equal(t, "Ana@Example.com", c.Email, "el email del pedido tiene prioridad; se normaliza al resolver")
	assert.Equal(t, "Ana", c.FirstName)
	assert.Equal(t, "Acme", c.CompanyName)
	assert.Equal(t, []string{"vip", "mayorista"}, c.Tags)
	assert.Equal(t, "Carrera 2", c.ShippingAddress.Line1)
	assert.True(t, c.SeenAt.Equal(time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)), "gana la fecha más reciente")
}

func TestNormalize_PedidoSinTotalSumaLineas(t *testing.T) {
	rec, err := source.Normalize(raw(entity.SourceEcommerce, entity.KindOrder,
		`{"id": 1, "name": "#77", "line_items": [{"title": "X", "quantity": 3, "price": "2.50"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "77", rec.Order.OrderNumber)
	assert.True(t, decimal.RequireFromString("7.5").Equal(rec.Order.TotalAmount))
}

func TestNormalize_PedidoMalFormado(t *testing.T) {
	casos := map[string]string{
		"sin número":           `{"id": 1, "total_price": "5"}`,
		"sin montos ni líneas": `{"id": 1, "name": "#5"}`,
		"monto inválido":       `{"id": 1, "name": "#5", "total_price": "cinco"}`,
		"json roto":            `{"id": `,
		"vacío":                ``,
	}
	for nombre, payload := range casos {
		t.Run(nombre, func(t *testing.T) {
			_, err := source.Normalize(raw(entity.SourceEcommerce, entity.KindOrder, payload))
			assert.ErrorIs(t, err, domain.ErrMalformedRecord)
		})
	}
}

func TestNormalize_ClienteEcommerce(t *testing.T) {
	rec, err := source.Normalize(raw(entity.SourceEcommerce, entity.KindCustomer,
		`{"id": 555, "email": "b@x.com", "tags": "", "default_address": {"first_name": "Beto", "company": "B SA", "address1": "Av 3"}}`))
	require.NoError(t, err)
	assert.Equal(t, "customer:555", rec.SourceRecordID)
	assert.Equal(t, rec.SourceRecordID, rec.Customer.RecordID)
	assert.Equal(t, "Beto", rec.Customer.FirstName)
	assert.Equal(t, "B SA", rec.Customer.CompanyName)
	assert.Nil(t, rec.Customer.Tags)

	_, err = source.Normalize(raw(entity.SourceEcommerce, entity.KindCustomer, `{"id": 556}`))
	assert.ErrorIs(t, err, domain.ErrMalformedRecord)
}

// ─── Contabilidad ───────────────────────────────────────────────────────────

func TestNormalize_FacturaContableUnidaAContacto(t *testing.T) {
	payload := `{"invoice_number": "1042", "customer_full_name": "JOSÉ  pérez", "date": "3/7/24",
		"lines": [{"amount": "120.00", "item": "Agua Pallet", "quantity": "2"}],
		"contact": {"full_name": "José Pérez", "email": "jose@x.com", "company": "JP Ltda", "city": "Cali"}}`
	rec, err := source.Normalize(raw(entity.SourceAccounting, entity.KindInvoice, payload))
	require.NoError(t, err)

	assert.Equal(t, "invoice:1042", rec.SourceRecordID)
	assert.Equal(t, int64(1042), rec.NativeID)
	o := rec.Order
	assert.Equal(t, crm.FlagPaidInvoiceImport, o.FinancialStatus)
	assert.Equal(t, source.DefaultAccountingCurrency, o.Currency)
	assert.True(t, o.PlacedAt.Equal(time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)))
	require.Len(t, o.LineItems, 1)
	assert.True(t, decimal.RequireFromString("60").Equal(o.LineItems[0].UnitPrice), "rate = amount / qty")
	assert.Equal(t, "jose@x.com", o.Customer.Email)
	assert.Equal(t, "JP Ltda", o.Customer.CompanyName)
	assert.Equal(t, "contact:"+crm.NameKey("José Pérez"), o.Customer.RecordID)
}

func TestNormalize_FacturaContableVariasFilas(t *testing.T) {
	payload := `{"invoice_number": "1001", "memo": "entrega martes", "lines": [
		{"item": "Agua 1L", "quantity": "10", "amount": "100.00"},
		{"item": "Jugo 1L", "quantity": "5", "rate": "10.00"}]}`
	rec, err := source.Normalize(raw(entity.SourceAccounting, entity.KindInvoice, payload))
	require.NoError(t, err)

	o := rec.Order
	assert.True(t, decimal.RequireFromString("150").Equal(o.TotalAmount), "el total suma las filas")
	require.Len(t, o.LineItems, 2)
	assert.Equal(t, "Agua 1L", o.LineItems[0].Label)
	assert.True(t, decimal.RequireFromString("10").Equal(o.LineItems[0].UnitPrice))
	assert.Equal(t, "Jugo 1L", o.LineItems[1].Label)
	assert.True(t, decimal.RequireFromString("50").Equal(o.LineItems[1].LineTotal), "sin monto, qty * rate")
}

func TestNormalize_FacturaContableSinFilasUtiles(t *testing.T) {
	casos := map[string]string{
		"sin filas":      `{"invoice_number": "9"}`,
		"filas vacías":   `{"invoice_number": "9", "lines": [{}]}`,
		"monto inválido": `{"invoice_number": "9", "lines": [{"amount": "diez"}]}`,
		"sin número":     `{"lines": [{"amount": "10"}]}`,
	}
	for nombre, payload := range casos {
		t.Run(nombre, func(t *testing.T) {
			_, err := source.Normalize(raw(entity.SourceAccounting, entity.KindInvoice, payload))
			assert.ErrorIs(t, err, domain.ErrMalformedRecord)
		})
	}
}

func TestParseAccountingDate_DosFormatos(t *testing.T) {
	d1, err := source.ParseAccountingDate("12/31/2023")
	require.NoError(t, err)
	d2, err := source.ParseAccountingDate("12/31/23")
	require.NoError(t, err)
	assert.True(t, d1.Equal(d2))

	_, err = source.ParseAccountingDate("2023-12-31")
	assert.ErrorIs(t, err, domain.ErrMalformedRecord)
}

func TestNormalize_ContactoContable(t *testing.T) {
	rec, err := source.Normalize(raw(entity.SourceAccounting, entity.KindContact,
		`{"full_name": "Ana María Ruiz", "email": "ana@x.com", "street": "Calle 9"}`))
	require.NoError(t, err)
	assert.Equal(t, "contact:"+crm.NameKey("Ana María Ruiz"), rec.SourceRecordID)
	assert.Equal(t, "Ana", rec.Customer.FirstName)
	assert.Equal(t, "María Ruiz", rec.Customer.LastName)
	assert.Equal(t, "Calle 9", rec.Customer.BillingAddress.Line1)

	_, err = source.Normalize(raw(entity.SourceAccounting, entity.KindContact, `{"full_name": "Sin Email"}`))
	assert.ErrorIs(t, err, domain.ErrMalformedRecord)
}

// ─── Web ────────────────────────────────────────────────────────────────────

func TestNormalize_ConsultaWeb(t *testing.T) {
	rec, err := source.Normalize(raw(entity.SourceWebsite, entity.KindInquiry,
		`{"email": "c@x.com", "name": "Carla Gómez", "category": "BULK", "message": " Necesito 40 cajas "}`))
	require.NoError(t, err)
	inq := rec.Inquiry
	assert.Equal(t, entity.CategoryBulk, inq.Category)
	assert.Equal(t, "Necesito 40 cajas", inq.Message)
	assert.Equal(t, "Carla", inq.Customer.FirstName)
	assert.NotEmpty(t, inq.SourceRef)

	again, err := source.Normalize(raw(entity.SourceWebsite, entity.KindInquiry,
		`{"email": "c@x.com", "name": "Carla Gómez", "category": "BULK", "message": " Necesito 40 cajas "}`))
	require.NoError(t, err)
	assert.Equal(t, inq.SourceRef, again.Inquiry.SourceRef, "sin id la referencia es estable")
}

func TestNormalize_ConsultaCategoriaDesconocidaEsQuestions(t *testing.T) {
	rec, err := source.Normalize(raw(entity.SourceManual, entity.KindInquiry,
		`{"id": "F-1", "email": "c@x.com", "category": "otra", "message": "hola"}`))
	require.NoError(t, err)
	assert.Equal(t, entity.CategoryQuestions, rec.Inquiry.Category)
	assert.Equal(t, "inquiry:F-1", rec.SourceRecordID)
	assert.Equal(t, entity.SourceManual, rec.Source)
}

func TestNormalize_OrigenDesconocido(t *testing.T) {
	_, err := source.Normalize(raw("erp", entity.KindOrder, `{}`))
	assert.ErrorIs(t, err, domain.ErrUnknownSource)
}
