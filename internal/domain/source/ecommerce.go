package source

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/CRM-api/internal/domain/crm"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// EcommerceAddress dirección en el payload de la tienda.
type EcommerceAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	Province  string `json:"province"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

// EcommerceCustomer cliente de la tienda.
type EcommerceCustomer struct {
	ID             int64             `json:"id"`
	Email          string            `json:"email"`
	FirstName      string            `json:"first_name"`
	LastName       string            `json:"last_name"`
	Phone          string            `json:"phone"`
	Tags           string            `json:"tags"` // separados por coma
	DefaultAddress *EcommerceAddress `json:"default_address"`
	CreatedAt      string            `json:"created_at"`
	UpdatedAt      string            `json:"updated_at"`
}

// EcommerceLineItem línea de pedido de la tienda.
type EcommerceLineItem struct {
	SKU           string `json:"sku"`
	Title         string `json:"title"`
	Quantity      int64  `json:"quantity"`
	Price         string `json:"price"`
	TotalDiscount string `json:"total_discount"`
}

// EcommerceNoteAttribute atributo adicional del checkout.
type EcommerceNoteAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EcommerceFulfillment envío asociado al pedido.
type EcommerceFulfillment struct {
	TrackingNumber string `json:"tracking_number"`
}

// EcommerceOrder pedido de la tienda.
type EcommerceOrder struct {
	ID                int64                    `json:"id"`
	Name              string                   `json:"name"` // "#1001"
	OrderNumber       int64                    `json:"order_number"`
	Email             string                   `json:"email"`
	Customer          *EcommerceCustomer       `json:"customer"`
	BillingAddress    *EcommerceAddress        `json:"billing_address"`
	ShippingAddress   *EcommerceAddress        `json:"shipping_address"`
	TotalPrice        string                   `json:"total_price"`
	Currency          string                   `json:"currency"`
	FinancialStatus   string                   `json:"financial_status"`
	FulfillmentStatus *string                  `json:"fulfillment_status"`
	LineItems         []EcommerceLineItem      `json:"line_items"`
	Note              string                   `json:"note"`
	NoteAttributes    []EcommerceNoteAttribute `json:"note_attributes"`
	Fulfillments      []EcommerceFulfillment   `json:"fulfillments"`
	Tags              string                   `json:"tags"`
	CreatedAt         string                   `json:"created_at"`
	UpdatedAt         string                   `json:"updated_at"`
}

// NormalizeEcommerceOrder exige número de pedido y al menos un monto o una línea.
func NormalizeEcommerceOrder(p EcommerceOrder) (*entity.Record, error) {
	number := strings.TrimPrefix(strings.TrimSpace(p.Name), "#")
	if p.OrderNumber > 0 {
		number = strconv.FormatInt(p.OrderNumber, 10)
	}
	if number == "" {
		return nil, malformed("pedido sin número")
	}

	total, hasTotal, err := parseMoney("total_price", p.TotalPrice)
	if err != nil {
		return nil, err
	}
	lines := make([]entity.LineItem, 0, len(p.LineItems))
	for _, li := range p.LineItems {
		price, _, err := parseMoney("price", li.Price)
		if err != nil {
			return nil, err
		}
		discount, _, err := parseMoney("total_discount", li.TotalDiscount)
		if err != nil {
			return nil, err
		}
		qty := decimal.NewFromInt(li.Quantity)
		lines = append(lines, entity.LineItem{
			SKU:       strings.TrimSpace(li.SKU),
			Label:     crm.CleanText(li.Title),
			Quantity:  qty,
			UnitPrice: price,
			LineTotal: qty.Mul(price).Sub(discount),
		})
	}
	if !hasTotal && len(lines) == 0 {
		return nil, malformed("pedido %s sin montos ni líneas", number)
	}
	if !hasTotal {
		for _, l := range lines {
			total = total.Add(l.LineTotal)
		}
	}

	created := parseTimestamp(p.CreatedAt)
	updated := parseTimestamp(p.UpdatedAt)

	customer := entity.IntermediateCustomer{SeenAt: latest(created, updated)}
	var billing, shipping EcommerceAddress
	if p.BillingAddress != nil {
		billing = *p.BillingAddress
	}
	if p.ShippingAddress != nil {
		shipping = *p.ShippingAddress
	}
	if c := p.Customer; c != nil {
		if c.ID > 0 {
			customer.RecordID = entity.SourceRecordID(entity.KindCustomer, strconv.FormatInt(c.ID, 10))
		}
		customer.Email = c.Email
		customer.FirstName = c.FirstName
		customer.LastName = c.LastName
		customer.Phone = c.Phone
		customer.Tags = splitTags(c.Tags)
	}
	customer.Email = firstNonEmpty(p.Email, customer.Email)
	customer.FirstName = crm.CleanText(firstNonEmpty(customer.FirstName, billing.FirstName, shipping.FirstName))
	customer.LastName = crm.CleanText(firstNonEmpty(customer.LastName, billing.LastName, shipping.LastName))
	customer.Phone = firstNonEmpty(customer.Phone, billing.Phone, shipping.Phone)
	customer.CompanyName = crm.CleanText(firstNonEmpty(billing.Company, shipping.Company))
	customer.BillingAddress = toAddress(billing)
	customer.ShippingAddress = toAddress(shipping)

	fulfillment := ""
	if p.FulfillmentStatus != nil {
		fulfillment = *p.FulfillmentStatus
	}
	tracking := ""
	for _, f := range p.Fulfillments {
		if tracking = strings.TrimSpace(f.TrackingNumber); tracking != "" {
			break
		}
	}
	attrs := make(map[string]string, len(p.NoteAttributes))
	for _, a := range p.NoteAttributes {
		attrs[a.Name] = a.Value
	}

	sourceID := strconv.FormatInt(p.ID, 10)
	if p.ID == 0 {
		sourceID = number
	}
	return &entity.Record{
		Source:         entity.SourceEcommerce,
		Kind:           entity.KindOrder,
		SourceRecordID: entity.SourceRecordID(entity.KindOrder, sourceID),
		NativeID:       p.ID,
		Order: &entity.IntermediateOrder{
			OrderNumber:       number,
			SourceID:          sourceID,
			Customer:          customer,
			TotalAmount:       total,
			Currency:          strings.ToUpper(strings.TrimSpace(p.Currency)),
			FinancialStatus:   p.FinancialStatus,
			FulfillmentStatus: fulfillment,
			ShippingAddress:   customer.ShippingAddress,
			TrackingNumber:    tracking,
			Notes:             crm.EncodeOrderNotes(p.Note, attrs),
			LineItems:         lines,
			PlacedAt:          created,
			UpdatedAt:         updated,
		},
	}, nil
}

// NormalizeEcommerceCustomer exige email.
func NormalizeEcommerceCustomer(p EcommerceCustomer) (*entity.Record, error) {
	if strings.TrimSpace(p.Email) == "" {
		return nil, malformed("cliente %d sin email", p.ID)
	}
	var addr EcommerceAddress
	if p.DefaultAddress != nil {
		addr = *p.DefaultAddress
	}
	nativeID := strconv.FormatInt(p.ID, 10)
	if p.ID == 0 {
		nativeID = strings.ToLower(strings.TrimSpace(p.Email))
	}
	recordID := entity.SourceRecordID(entity.KindCustomer, nativeID)
	return &entity.Record{
		Source:         entity.SourceEcommerce,
		Kind:           entity.KindCustomer,
		SourceRecordID: recordID,
		NativeID:       p.ID,
		Customer: &entity.IntermediateCustomer{
			RecordID:        recordID,
			Email:           p.Email,
			FirstName:       crm.CleanText(firstNonEmpty(p.FirstName, addr.FirstName)),
			LastName:        crm.CleanText(firstNonEmpty(p.LastName, addr.LastName)),
			Phone:           firstNonEmpty(p.Phone, addr.Phone),
			CompanyName:     crm.CleanText(addr.Company),
			BillingAddress:  toAddress(addr),
			ShippingAddress: toAddress(addr),
			Tags:            splitTags(p.Tags),
			SeenAt:          latest(parseTimestamp(p.CreatedAt), parseTimestamp(p.UpdatedAt)),
		},
	}, nil
}

func toAddress(a EcommerceAddress) entity.Address {
	return entity.Address{
		Line1:      crm.CleanText(a.Address1),
		Line2:      crm.CleanText(a.Address2),
		City:       crm.CleanText(a.City),
		Province:   crm.CleanText(a.Province),
		PostalCode: strings.TrimSpace(a.Zip),
		Country:    crm.CleanText(a.Country),
	}
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
