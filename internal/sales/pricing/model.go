// Package pricing keeps sales-order lines and order totals consistent with user edits.
//
// Unit prices on a line are always denominated in the packaging currently selected on that
// line, never in the product's base unit. Every derived amount is recomputed from its inputs
// on each mutation; nothing is accumulated incrementally.
package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Packaging is a sellable unit of a product expressed as a multiple of the base unit.
type Packaging struct {
	ID            int64            `json:"id"`
	Label         string           `json:"label"`
	QtyInBase     decimal.Decimal  `json:"qty_in_base"`
	GrossWeightKg *decimal.Decimal `json:"gross_weight_kg,omitempty"`
}

// Product is the catalog snapshot a line is priced against.
type Product struct {
	ID                int64           `json:"id"`
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	BaseUOM           string          `json:"base_uom"`
	NetWeightKgBase   decimal.Decimal `json:"net_weight_kg_base"`
	GrossWeightKgBase decimal.Decimal `json:"gross_weight_kg_base"`
	TaxClass          string          `json:"tax_class,omitempty"`
	Packagings        []Packaging     `json:"packagings"`
}

// Packaging returns the packaging with the given id when it belongs to the product.
func (p Product) Packaging(id int64) (Packaging, bool) {
	for _, pkg := range p.Packagings {
		if pkg.ID == id {
			return pkg, true
		}
	}
	return Packaging{}, false
}

// Line is one product on an order.
type Line struct {
	ID                    uuid.UUID       `json:"id"`
	ProductID             int64           `json:"product_id"`
	ProductName           string          `json:"product_name,omitempty"`
	Quantity              decimal.Decimal `json:"quantity"`
	PackagingID           *int64          `json:"packaging_id,omitempty"`
	PackagingFactor       decimal.Decimal `json:"packaging_factor"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
	DiscountAmount        decimal.Decimal `json:"discount_amount"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	QtyBase               decimal.Decimal `json:"qty_base"`
	UnitWeightKg          decimal.Decimal `json:"unit_weight_kg"`
	GrossWeightKgSnapshot decimal.Decimal `json:"gross_weight_kg_snapshot"`
}

// Factor returns the packaging factor in effect, defaulting to 1 for the base unit.
func (l Line) Factor() decimal.Decimal {
	if l.PackagingFactor.LessThanOrEqual(decimal.Zero) {
		return decimal.NewFromInt(1)
	}
	return l.PackagingFactor
}

// BaseUnitPrice is the price of one base unit implied by the current packaging price.
func (l Line) BaseUnitPrice() decimal.Decimal {
	return l.UnitPrice.Div(l.Factor())
}

// Order is the aggregate under edit.
type Order struct {
	Items              []Line          `json:"items"`
	FreightAmount      decimal.Decimal `json:"freight_amount"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	SubtotalAmount     decimal.Decimal `json:"subtotal_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	TotalWeightKg      decimal.Decimal `json:"total_weight_kg"`
	TotalGrossWeightKg decimal.Decimal `json:"total_gross_weight_kg"`
}

// Line returns a copy of the line with the given id.
func (o *Order) Line(id uuid.UUID) (Line, bool) {
	if i := o.indexOf(id); i >= 0 {
		return o.Items[i], true
	}
	return Line{}, false
}

func (o *Order) indexOf(id uuid.UUID) int {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return i
		}
	}
	return -1
}
