package accounting_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/CRM-api/internal/application/syncer"
	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/crm"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/source"
	"github.com/jhoicas/CRM-api/internal/infrastructure/sources/accounting"
	"github.com/jhoicas/CRM-api/pkg/config"
)

const contactosCSV = "\xEF\xBB\xBFName,E-mail,Phone,Company,Street,City\n" +
	"José Pérez,jose@x.com,555-1,JP Ltda,Calle 1,Cali\n" +
	",,,,,\n" +
	"Ana Ruiz,ana@x.com,,,,\n"

const transaccionesCSV = "Date,Num,Customer,Product/Service,Qty,Amount,Memo/Description\n" +
	"3/7/24,1001,JOSE PEREZ,Agua Pallet,2,120.00,sin tildes\n" +
	"03/08/2024,1002,José  Pérez,Agua 1L,,15.00,\n" +
	"3/9/24,1003,Desconocido,,,40,\n"

func cargar(t *testing.T, contactos, transacciones string) *accounting.Adapter {
	t.Helper()
	a, err := accounting.Load(strings.NewReader(contactos), strings.NewReader(transacciones), "COP")
	require.NoError(t, err)
	return a
}

func decodificar[T any](t *testing.T, raw source.RawRecord) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw.Payload, &v))
	return v
}

// ─── Carga ──────────────────────────────────────────────────────────────────

func TestLoad_ContactosPrimeroLuegoFacturasUnidas(t *testing.T) {
	a := cargar(t, contactosCSV, transaccionesCSV)

	page, err := a.FetchPage(context.Background(), syncer.PageRequest{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.NextCursor)
	require.Len(t, page.Records, 5, "la fila vacía se ignora")

	assert.Equal(t, entity.KindContact, page.Records[0].Kind)
	jose := decodificar[source.AccountingContact](t, page.Records[0])
	assert.Equal(t, "José Pérez", jose.FullName, "el BOM no contamina el primer encabezado")
	assert.Equal(t, "jose@x.com", jose.Email)

	f1002 := decodificar[source.AccountingTransaction](t, page.Records[3])
	assert.Equal(t, entity.KindInvoice, page.Records[3].Kind)
	assert.Equal(t, "1002", f1002.InvoiceNumber)
	require.Len(t, f1002.Lines, 1)
	assert.Equal(t, "Agua 1L", f1002.Lines[0].Item)
	assert.Equal(t, "COP", f1002.Currency)
	require.NotNil(t, f1002.Contact, "se une por nombre normalizado")
	assert.Equal(t, "JP Ltda", f1002.Contact.Company)

	f1001 := decodificar[source.AccountingTransaction](t, page.Records[2])
	assert.Nil(t, f1001.Contact, "sin tildes no coincide con el contacto")
	f1003 := decodificar[source.AccountingTransaction](t, page.Records[4])
	assert.Nil(t, f1003.Contact)
}

func TestLoad_Windows1252(t *testing.T) {
	contactos := []byte("Name,Email\nJos\xe9 P\xe9rez,jose@x.com\n")
	tx := []byte("Num,Customer,Amount\n7,Jos\xe9 P\xe9rez,10\n")

	a, err := accounting.Load(bytes.NewReader(contactos), bytes.NewReader(tx), "")
	require.NoError(t, err)
	page, err := a.FetchPage(context.Background(), syncer.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)

	c := decodificar[source.AccountingContact](t, page.Records[0])
	assert.Equal(t, "José Pérez", c.FullName)
	f := decodificar[source.AccountingTransaction](t, page.Records[1])
	require.NotNil(t, f.Contact)
	assert.Equal(t, "jose@x.com", f.Contact.Email)
}

func TestLoad_FilasDeUnaFacturaSeAgrupan(t *testing.T) {
	tx := "Date,Num,Customer,Product/Service,Qty,Amount,Memo/Description\n" +
		"3/7/24,1001,Ana Ruiz,Agua 1L,10,100.00,\n" +
		"3/7/24,1001,Ana Ruiz,Jugo 1L,5,50.00,segunda fila\n" +
		"3/8/24,1002,Ana Ruiz,Agua 1L,1,10.00,\n"
	a := cargar(t, contactosCSV, tx)

	page, err := a.FetchPage(context.Background(), syncer.PageRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Records, 4, "dos contactos y dos facturas")

	f1001 := decodificar[source.AccountingTransaction](t, page.Records[2])
	assert.Equal(t, "1001", f1001.InvoiceNumber)
	require.Len(t, f1001.Lines, 2)
	assert.Equal(t, "Agua 1L", f1001.Lines[0].Item)
	assert.Equal(t, "Jugo 1L", f1001.Lines[1].Item)
	assert.Equal(t, "segunda fila", f1001.Memo, "el primer memo no vacío")
	require.NotNil(t, f1001.Contact)

	rec, err := a.MapRecord(page.Records[2])
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("150").Equal(rec.Order.TotalAmount))
	assert.Len(t, rec.Order.LineItems, 2)
}

// ─── Paginación ─────────────────────────────────────────────────────────────

func TestFetchPage_CursorPorDesplazamiento(t *testing.T) {
	a := cargar(t, contactosCSV, transaccionesCSV)
	ctx := context.Background()

	p1, err := a.FetchPage(ctx, syncer.PageRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, p1.Records, 2)
	assert.Equal(t, "2", p1.NextCursor)

	p2, err := a.FetchPage(ctx, syncer.PageRequest{Cursor: p1.NextCursor, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, p2.Records, 2)
	assert.Equal(t, "4", p2.NextCursor)

	p3, err := a.FetchPage(ctx, syncer.PageRequest{Cursor: p2.NextCursor, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, p3.Records, 1)
	assert.Empty(t, p3.NextCursor)

	_, err = a.FetchPage(ctx, syncer.PageRequest{Cursor: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFetchPage_IncrementalOmiteFacturasVistas(t *testing.T) {
	a := cargar(t, contactosCSV, transaccionesCSV)

	page, err := a.FetchPage(context.Background(), syncer.PageRequest{SinceID: 1002, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Records, 3, "dos contactos y la factura 1003")
	f := decodificar[source.AccountingTransaction](t, page.Records[2])
	assert.Equal(t, "1003", f.InvoiceNumber)
}

func TestMapRecord_FacturaNormalizada(t *testing.T) {
	a := cargar(t, contactosCSV, transaccionesCSV)
	page, err := a.FetchPage(context.Background(), syncer.PageRequest{Limit: 10})
	require.NoError(t, err)

	rec, err := a.MapRecord(page.Records[3])
	require.NoError(t, err)
	assert.Equal(t, "invoice:1002", rec.SourceRecordID)
	assert.Equal(t, "jose@x.com", rec.Order.Customer.Email)
	assert.Equal(t, crm.FlagPaidInvoiceImport, rec.Order.FinancialStatus)
	assert.Equal(t, "COP", rec.Order.Currency)
}

// ─── Fábrica ────────────────────────────────────────────────────────────────

func TestFactory_LeeArchivos(t *testing.T) {
	dir := t.TempDir()
	txPath := filepath.Join(dir, "tx.csv")
	require.NoError(t, os.WriteFile(txPath, []byte(transaccionesCSV), 0o600))

	f := accounting.Factory(config.AccountingConfig{})
	_, err := f(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f(map[string]string{accounting.CredTransactionsPath: filepath.Join(dir, "no-existe.csv")})
	assert.ErrorIs(t, err, domain.ErrTransportFailure)

	a, err := f(map[string]string{accounting.CredTransactionsPath: txPath})
	require.NoError(t, err)
	assert.Equal(t, entity.KindInvoice, a.Kind())
	page, err := a.FetchPage(context.Background(), syncer.PageRequest{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Records, 3)
}
