package source

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/CRM-api/internal/domain/crm"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// AccountingContact fila del export de contactos, identificada por nombre completo.
type AccountingContact struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Company    string `json:"company"`
	Street     string `json:"street"`
	Street2    string `json:"street2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// AccountingTransaction factura del export de transacciones, unida a su contacto por nombre.
// Las filas que comparten número de factura llegan agrupadas en Lines, en el orden del archivo.
type AccountingTransaction struct {
	InvoiceNumber    string             `json:"invoice_number"`
	CustomerFullName string             `json:"customer_full_name"`
	Date             string             `json:"date"` // M/D/YY o M/D/YYYY
	Memo             string             `json:"memo"`
	Currency         string             `json:"currency"`
	Lines            []AccountingLine   `json:"lines"`
	Contact          *AccountingContact `json:"contact,omitempty"`
}

// AccountingLine una fila de la factura.
type AccountingLine struct {
	Amount   string `json:"amount"`
	Item     string `json:"item"`
	Quantity string `json:"quantity"`
	Rate     string `json:"rate"`
}

// DefaultAccountingCurrency moneda asumida cuando el export no la informa.
const DefaultAccountingCurrency = "USD"

// ParseAccountingDate interpreta fechas M/D/YY y M/D/YYYY.
func ParseAccountingDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("1/2/2006", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("1/2/06", s)
	if err != nil {
		return time.Time{}, malformed("fecha %q no reconocida", s)
	}
	return t.UTC(), nil
}

// NormalizeAccountingContact exige email; el id de registro es la clave del nombre.
func NormalizeAccountingContact(p AccountingContact) (*entity.Record, error) {
	name := crm.CleanText(p.FullName)
	if name == "" {
		return nil, malformed("contacto sin nombre")
	}
	if strings.TrimSpace(p.Email) == "" {
		return nil, malformed("contacto %q sin email", name)
	}
	first, last := crm.SplitFullName(name)
	addr := contactAddress(p)
	recordID := entity.SourceRecordID(entity.KindContact, crm.NameKey(name))
	return &entity.Record{
		Source:         entity.SourceAccounting,
		Kind:           entity.KindContact,
		SourceRecordID: recordID,
		Customer: &entity.IntermediateCustomer{
			RecordID:        recordID,
			Email:           p.Email,
			FirstName:       first,
			LastName:        last,
			Phone:           strings.TrimSpace(p.Phone),
			CompanyName:     crm.CleanText(p.Company),
			BillingAddress:  addr,
			ShippingAddress: addr,
		},
	}, nil
}

// NormalizeAccountingTransaction produce un pedido con la marca de factura pagada importada.
// Exige número de factura y al menos una fila con monto o ítem. El total es la suma de las filas.
func NormalizeAccountingTransaction(p AccountingTransaction) (*entity.Record, error) {
	number := strings.TrimSpace(p.InvoiceNumber)
	if number == "" {
		return nil, malformed("transacción sin número de factura")
	}

	var (
		amount decimal.Decimal
		lines  []entity.LineItem
		usable bool
	)
	for i, l := range p.Lines {
		line, lineAmount, ok, err := accountingLine(l)
		if err != nil {
			return nil, fmt.Errorf("factura %s fila %d: %w", number, i+1, err)
		}
		if !ok {
			continue
		}
		usable = true
		amount = amount.Add(lineAmount)
		if line != nil {
			lines = append(lines, *line)
		}
	}
	if !usable {
		return nil, malformed("factura %s sin monto ni ítem", number)
	}

	var (
		placed time.Time
		err    error
	)
	if strings.TrimSpace(p.Date) != "" {
		if placed, err = ParseAccountingDate(p.Date); err != nil {
			return nil, err
		}
	}

	customer := entity.IntermediateCustomer{SeenAt: placed}
	name := crm.CleanText(p.CustomerFullName)
	if c := p.Contact; c != nil {
		customer.Email = c.Email
		customer.Phone = strings.TrimSpace(c.Phone)
		customer.CompanyName = crm.CleanText(c.Company)
		customer.BillingAddress = contactAddress(*c)
		customer.ShippingAddress = customer.BillingAddress
		name = firstNonEmpty(name, crm.CleanText(c.FullName))
	}
	customer.FirstName, customer.LastName = crm.SplitFullName(name)
	if name != "" {
		customer.RecordID = entity.SourceRecordID(entity.KindContact, crm.NameKey(name))
	}

	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = DefaultAccountingCurrency
	}
	var nativeID int64
	if n, err := strconv.ParseInt(number, 10, 64); err == nil {
		nativeID = n
	}
	return &entity.Record{
		Source:         entity.SourceAccounting,
		Kind:           entity.KindInvoice,
		SourceRecordID: entity.SourceRecordID(entity.KindInvoice, number),
		NativeID:       nativeID,
		Order: &entity.IntermediateOrder{
			OrderNumber:     number,
			SourceID:        number,
			Customer:        customer,
			TotalAmount:     amount,
			Currency:        currency,
			FinancialStatus: crm.FlagPaidInvoiceImport,
			ShippingAddress: customer.ShippingAddress,
			Notes:           crm.EncodeOrderNotes(p.Memo, nil),
			LineItems:       lines,
			PlacedAt:        placed,
			UpdatedAt:       placed,
		},
	}, nil
}

// accountingLine interpreta una fila. ok=false si no trae monto ni ítem; line=nil si sólo trae monto.
func accountingLine(l AccountingLine) (line *entity.LineItem, amount decimal.Decimal, ok bool, err error) {
	amount, hasAmount, err := parseMoney("amount", l.Amount)
	if err != nil {
		return nil, amount, false, err
	}
	item := crm.CleanText(l.Item)
	if item == "" {
		return nil, amount, hasAmount, nil
	}
	qty, hasQty, err := parseMoney("quantity", l.Quantity)
	if err != nil {
		return nil, amount, false, err
	}
	if !hasQty || qty.IsZero() {
		qty = decimal.NewFromInt(1)
	}
	rate, hasRate, err := parseMoney("rate", l.Rate)
	if err != nil {
		return nil, amount, false, err
	}
	if !hasRate && hasAmount {
		rate = amount.Div(qty)
	}
	if !hasAmount {
		amount = qty.Mul(rate)
	}
	return &entity.LineItem{Label: item, Quantity: qty, UnitPrice: rate, LineTotal: amount}, amount, true, nil
}

func contactAddress(c AccountingContact) entity.Address {
	return entity.Address{
		Line1:      crm.CleanText(c.Street),
		Line2:      crm.CleanText(c.Street2),
		City:       crm.CleanText(c.City),
		Province:   crm.CleanText(c.State),
		PostalCode: strings.TrimSpace(c.PostalCode),
		Country:    crm.CleanText(c.Country),
	}
}
