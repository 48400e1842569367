// Package catalog resolves products, packagings and prices for order entry.
package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-orders/internal/sales/pricing"
)

// Product represents a product row with its base unit of measure.
type Product struct {
	ID            int64           `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	UnitCode      string          `json:"unit_code"`
	NetWeightKg   decimal.Decimal `json:"net_weight_kg"`
	GrossWeightKg decimal.Decimal `json:"gross_weight_kg"`
	TaxClass      string          `json:"tax_class"`
	ListPrice     decimal.Decimal `json:"list_price"`
	IsActive      bool            `json:"is_active"`
}

// Packaging represents a packaging row of a product.
type Packaging struct {
	ID            int64            `json:"id"`
	ProductID     int64            `json:"product_id"`
	Label         string           `json:"label"`
	QtyInBase     decimal.Decimal  `json:"qty_in_base"`
	GrossWeightKg *decimal.Decimal `json:"gross_weight_kg,omitempty"`
}

// Resolved is a validated product ready to be priced into an order line.
type Resolved struct {
	Product      pricing.Product `json:"product"`
	BasePrice    decimal.Decimal `json:"base_price"`
	PriceTableID *int64          `json:"price_table_id,omitempty"`
}
