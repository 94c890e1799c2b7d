package crm

import "github.com/jhoicas/CRM-api/internal/domain/entity"

// ClassifyBusinessUnit: facturas contables y pedidos con bundles → distributor; el resto → digital.
func ClassifyBusinessUnit(source entity.Source, items []entity.LineItem, bundles *BundleTable) entity.BusinessUnit {
	if source == entity.SourceAccounting {
		return entity.BusinessUnitDistributor
	}
	if bundles.HasBundle(items) {
		return entity.BusinessUnitDistributor
	}
	return entity.BusinessUnitDigital
}
