package accounting

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jhoicas/CRM-api/internal/application/syncer"
	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/crm"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/source"
	"github.com/jhoicas/CRM-api/pkg/config"
)

// Claves de credenciales aceptadas en la petición de sincronización.
const (
	CredContactsPath     = "contacts_path"
	CredTransactionsPath = "transactions_path"
	CredCurrency         = "currency"
)

// Adapter sirve primero los contactos y luego las transacciones (ya unidas a su contacto)
// como una secuencia paginada por desplazamiento.
type Adapter struct {
	syncer.NormalizingAdapter
	contacts     []source.AccountingContact
	transactions []source.AccountingTransaction
}

var _ syncer.SourceAdapter = (*Adapter)(nil)

// Load parsea ambos exports. contacts puede ser nil.
func Load(contacts, transactions io.Reader, currency string) (*Adapter, error) {
	a := &Adapter{}
	byName := make(map[string]source.AccountingContact)
	if contacts != nil {
		rows, err := readRows(contacts)
		if err != nil {
			return nil, fmt.Errorf("contactos: %w", err)
		}
		for _, r := range rows {
			c := source.AccountingContact{
				FullName:   r.get("full_name", "name", "customer", "display_name", "contact"),
				Email:      r.get("email", "e_mail", "main_email"),
				Phone:      r.get("phone", "main_phone", "phone_numbers"),
				Company:    r.get("company", "company_name"),
				Street:     r.get("street", "street1", "address", "billing_address_line_1"),
				Street2:    r.get("street2", "billing_address_line_2"),
				City:       r.get("city", "billing_address_city"),
				State:      r.get("state", "province", "billing_address_state"),
				PostalCode: r.get("postal_code", "zip", "billing_address_postal_code"),
				Country:    r.get("country", "billing_address_country"),
			}
			a.contacts = append(a.contacts, c)
			if key := crm.NameKey(c.FullName); key != "" {
				byName[key] = c
			}
		}
	}
	rows, err := readRows(transactions)
	if err != nil {
		return nil, fmt.Errorf("transacciones: %w", err)
	}
	// Filas con el mismo número forman una sola factura; la cabecera sale de la primera.
	byNumber := make(map[string]int)
	for _, r := range rows {
		number := strings.TrimSpace(r.get("invoice_number", "num", "invoice_no", "invoice", "no"))
		line := source.AccountingLine{
			Amount:   r.get("amount", "total", "total_amount"),
			Item:     r.get("item", "product_service", "product"),
			Quantity: r.get("quantity", "qty"),
			Rate:     r.get("rate", "sales_price", "unit_price"),
		}
		memo := r.get("memo", "description", "memo_description")
		if idx, ok := byNumber[number]; ok && number != "" {
			t := &a.transactions[idx]
			t.Lines = append(t.Lines, line)
			if t.Memo == "" {
				t.Memo = memo
			}
			continue
		}
		t := source.AccountingTransaction{
			InvoiceNumber:    number,
			CustomerFullName: r.get("customer_full_name", "customer", "name"),
			Date:             r.get("date", "invoice_date", "transaction_date"),
			Memo:             memo,
			Currency:         r.get("currency"),
			Lines:            []source.AccountingLine{line},
		}
		if t.Currency == "" {
			t.Currency = currency
		}
		if c, ok := byName[crm.NameKey(t.CustomerFullName)]; ok {
			t.Contact = &c
		}
		if number != "" {
			byNumber[number] = len(a.transactions)
		}
		a.transactions = append(a.transactions, t)
	}
	return a, nil
}

func (a *Adapter) Source() entity.Source   { return entity.SourceAccounting }
func (a *Adapter) Kind() entity.RecordKind { return entity.KindInvoice }

// FetchPage el cursor es el desplazamiento en la secuencia contactos + transacciones.
// En modo incremental se omiten facturas numéricas ya vistas; los contactos siempre se reenvían.
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
	limit := req.Limit
	if limit <= 0 {
		limit = syncer.DefaultPageSize
	}

	total := len(a.contacts) + len(a.transactions)
	page := &syncer.Page{}
	i := offset
	for ; i < total && len(page.Records) < limit; i++ {
		var (
			kind    entity.RecordKind
			payload any
		)
		if i < len(a.contacts) {
			kind, payload = entity.KindContact, a.contacts[i]
		} else {
			t := a.transactions[i-len(a.contacts)]
			if req.SinceID > 0 {
				if n, err := strconv.ParseInt(t.InvoiceNumber, 10, 64); err == nil && n <= req.SinceID {
					continue
				}
			}
			kind, payload = entity.KindInvoice, t
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		page.Records = append(page.Records, source.RawRecord{Source: entity.SourceAccounting, Kind: kind, Payload: b})
	}
	if i < total {
		page.NextCursor = strconv.Itoa(i)
	}
	return page, nil
}

// Factory abre los exports indicados en las credenciales o en la configuración.
func Factory(cfg config.AccountingConfig) syncer.AdapterFactory {
	return func(creds map[string]string) (syncer.SourceAdapter, error) {
		contactsPath := pick(creds[CredContactsPath], cfg.ContactsPath)
		txPath := pick(creds[CredTransactionsPath], cfg.TransactionsPath)
		if txPath == "" {
			return nil, fmt.Errorf("%w: falta %s", domain.ErrInvalidInput, CredTransactionsPath)
		}
		txFile, err := os.Open(txPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
		}
		defer txFile.Close()

		var contacts io.Reader
		if contactsPath != "" {
			f, err := os.Open(contactsPath)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
			}
			defer f.Close()
			contacts = f
		}
		return Load(contacts, txFile, pick(creds[CredCurrency], cfg.Currency))
	}
}

func pick(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
