package crm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// BundleRule regla declarativa para decodificar líneas compuestas (p. ej. un pallet de un SKU).
// ConstituentSKU vacío = el SKU de la propia línea.
type BundleRule struct {
	MatchPattern   string `mapstructure:"match_pattern" json:"match_pattern"`
	ConstituentSKU string `mapstructure:"constituent_sku" json:"constituent_sku"`
	Multiplier     int64  `mapstructure:"multiplier" json:"multiplier"`
}

// DefaultBundleRules tabla por defecto; puede reemplazarse desde configuración.
var DefaultBundleRules = []BundleRule{
	{MatchPattern: `(?i)\bpallet\b`, Multiplier: 50},
	{MatchPattern: `(?i)\bcase\s+of\s+24\b|\b24[- ]?pack\b`, Multiplier: 24},
	{MatchPattern: `(?i)\b12[- ]?pack\b`, Multiplier: 12},
	{MatchPattern: `(?i)\b6[- ]?pack\b`, Multiplier: 6},
}

type compiledRule struct {
	BundleRule
	re *regexp.Regexp
}

// BundleTable tabla compilada. Es el único lugar donde se decodifican bundles:
// todas las rutas de lectura deben pasar por Expand.
type BundleTable struct {
	rules []compiledRule
}

// EffectiveLine SKU y cantidad efectivas de una línea tras expandir bundles.
type EffectiveLine struct {
	SKU      string
	Quantity decimal.Decimal
	Bundle   bool
}

// NewBundleTable compila las reglas. Multiplicador < 1 o patrón inválido es error.
func NewBundleTable(rules []BundleRule) (*BundleTable, error) {
	t := &BundleTable{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		if r.Multiplier < 1 {
			return nil, fmt.Errorf("regla de bundle %d: multiplicador %d inválido", i, r.Multiplier)
		}
		re, err := regexp.Compile(r.MatchPattern)
		if err != nil {
			return nil, fmt.Errorf("regla de bundle %d: %w", i, err)
		}
		t.rules = append(t.rules, compiledRule{BundleRule: r, re: re})
	}
	return t, nil
}

// MustDefaultBundleTable compila DefaultBundleRules.
func MustDefaultBundleTable() *BundleTable {
	t, err := NewBundleTable(DefaultBundleRules)
	if err != nil {
		panic(err)
	}
	return t
}

// Match devuelve la primera regla cuyo patrón coincide con la etiqueta o el SKU de la línea.
func (t *BundleTable) Match(item entity.LineItem) (BundleRule, bool) {
	if t == nil {
		return BundleRule{}, false
	}
	for _, r := range t.rules {
		if r.re.MatchString(item.Label) || (item.SKU != "" && r.re.MatchString(item.SKU)) {
			return r.BundleRule, true
		}
	}
	return BundleRule{}, false
}

// Expand calcula SKU y cantidad efectivas de una línea.
func (t *BundleTable) Expand(item entity.LineItem) EffectiveLine {
	sku := strings.TrimSpace(item.SKU)
	if sku == "" {
		sku = strings.TrimSpace(item.Label)
	}
	rule, ok := t.Match(item)
	if !ok {
		return EffectiveLine{SKU: sku, Quantity: item.Quantity}
	}
	if rule.ConstituentSKU != "" {
		sku = rule.ConstituentSKU
	}
	return EffectiveLine{
		SKU:      sku,
		Quantity: item.Quantity.Mul(decimal.NewFromInt(rule.Multiplier)),
		Bundle:   true,
	}
}

// HasBundle indica si alguna línea es compuesta.
func (t *BundleTable) HasBundle(items []entity.LineItem) bool {
	for _, it := range items {
		if _, ok := t.Match(it); ok {
			return true
		}
	}
	return false
}

// UnitsBySKU suma cantidades efectivas por SKU.
func (t *BundleTable) UnitsBySKU(items []entity.LineItem) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, it := range items {
		eff := t.Expand(it)
		out[eff.SKU] = out[eff.SKU].Add(eff.Quantity)
	}
	return out
}
