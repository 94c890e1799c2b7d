package crm

import (
	"strings"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

const anyFlag = "*"

// FlagPaidInvoiceImport marca financiera que asigna el normalizador contable a facturas importadas.
const FlagPaidInvoiceImport = "paid-invoice-import"

// StatusRule fila de la tabla de mapeo de estados. "*" o vacío en Source = cualquiera.
type StatusRule struct {
	Source      entity.Source
	Financial   string
	Fulfillment string
	Status      entity.OrderStatus
}

// OrderStatusRules tabla de búsqueda (gana la primera coincidencia).
var OrderStatusRules = []StatusRule{
	{Financial: anyFlag, Fulfillment: "fulfilled", Status: entity.OrderStatusDelivered},
	{Financial: anyFlag, Fulfillment: "partial", Status: entity.OrderStatusShipped},
	{Financial: anyFlag, Fulfillment: "partially_fulfilled", Status: entity.OrderStatusShipped},
	{Financial: "paid", Fulfillment: "unfulfilled", Status: entity.OrderStatusProcessing},
	{Source: entity.SourceAccounting, Financial: FlagPaidInvoiceImport, Fulfillment: anyFlag, Status: entity.OrderStatusPaid},
	{Financial: anyFlag, Fulfillment: "unfulfilled", Status: entity.OrderStatusPending},
}

// MapOrderStatus traduce las marcas del origen al estado canónico.
// matched=false indica una combinación desconocida, que cae en pending (el caller la registra).
func MapOrderStatus(source entity.Source, financial, fulfillment string) (status entity.OrderStatus, matched bool) {
	financial = canonicalFlag(financial, "")
	fulfillment = canonicalFlag(fulfillment, "unfulfilled")
	for _, r := range OrderStatusRules {
		if r.Source != "" && r.Source != source {
			continue
		}
		if !flagMatches(r.Financial, financial) || !flagMatches(r.Fulfillment, fulfillment) {
			continue
		}
		return r.Status, true
	}
	return entity.OrderStatusPending, false
}

func canonicalFlag(s, empty string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "null" {
		return empty
	}
	return s
}

func flagMatches(pattern, value string) bool {
	return pattern == anyFlag || pattern == value
}
