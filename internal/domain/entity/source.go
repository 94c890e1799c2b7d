package entity

import "fmt"

// Source identifica el sistema de origen de un registro.
type Source string

// Orígenes soportados.
const (
	SourceEcommerce  Source = "ecommerce"
	SourceAccounting Source = "accounting"
	SourceWebsite    Source = "website"
	SourceManual     Source = "manual"
)

// IsValid indica si el origen es conocido.
func (s Source) IsValid() bool {
	switch s {
	case SourceEcommerce, SourceAccounting, SourceWebsite, SourceManual:
		return true
	}
	return false
}

func (s Source) String() string { return string(s) }

// RecordKind tipo de registro nativo dentro de un origen.
type RecordKind string

// Tipos de registro.
const (
	KindCustomer RecordKind = "customer"
	KindOrder    RecordKind = "order"
	KindInquiry  RecordKind = "inquiry"
	KindContact  RecordKind = "contact"
	KindInvoice  RecordKind = "invoice"
)

// SourceRecordID construye el identificador de registro con espacio de nombres por tipo,
// p. ej. "order:1001". Evita colisiones entre ids nativos de distintos tipos en un mismo origen.
func SourceRecordID(kind RecordKind, nativeID string) string {
	return fmt.Sprintf("%s:%s", kind, nativeID)
}
