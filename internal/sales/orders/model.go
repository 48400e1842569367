package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-orders/internal/sales/pricing"
)

type SalesOrderStatus string

const (
	SalesOrderStatusDraft     SalesOrderStatus = "DRAFT"
	SalesOrderStatusConfirmed SalesOrderStatus = "CONFIRMED"
	SalesOrderStatusCancelled SalesOrderStatus = "CANCELLED"
)

type SalesOrder struct {
	ID                 int64            `json:"id" db:"id"`
	DocNumber          string           `json:"doc_number" db:"doc_number"`
	CompanyID          int64            `json:"company_id" db:"company_id"`
	CustomerID         int64            `json:"customer_id" db:"customer_id"`
	PriceTableID       *int64           `json:"price_table_id,omitempty" db:"price_table_id"`
	OrderDate          time.Time        `json:"order_date" db:"order_date"`
	Status             SalesOrderStatus `json:"status" db:"status"`
	Currency           string           `json:"currency" db:"currency"`
	FreightAmount      decimal.Decimal  `json:"freight_amount" db:"freight_amount"`
	DiscountAmount     decimal.Decimal  `json:"discount_amount" db:"discount_amount"`
	Subtotal           decimal.Decimal  `json:"subtotal" db:"subtotal"`
	TotalAmount        decimal.Decimal  `json:"total_amount" db:"total_amount"`
	TotalWeightKg      decimal.Decimal  `json:"total_weight_kg" db:"total_weight_kg"`
	TotalGrossWeightKg decimal.Decimal  `json:"total_gross_weight_kg" db:"total_gross_weight_kg"`
	TaxAmount          decimal.Decimal  `json:"tax_amount" db:"tax_amount"`
	STAmount           decimal.Decimal  `json:"st_amount" db:"st_amount"`
	FiscalTotal        decimal.Decimal  `json:"fiscal_total" db:"fiscal_total"`
	Notes              *string          `json:"notes,omitempty" db:"notes"`
	CreatedBy          int64            `json:"created_by" db:"created_by"`
	ConfirmedBy        *int64           `json:"confirmed_by,omitempty" db:"confirmed_by"`
	ConfirmedAt        *time.Time       `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at" db:"updated_at"`
	Lines              []SalesOrderLine `json:"lines,omitempty" db:"-"`
}

// SalesOrderLine is the persisted form of a pricing.Line. LineUID carries the line identity
// across drafts and saves.
type SalesOrderLine struct {
	ID              int64           `json:"id" db:"id"`
	LineUID         uuid.UUID       `json:"line_uid" db:"line_uid"`
	SalesOrderID    int64           `json:"sales_order_id" db:"sales_order_id"`
	ProductID       int64           `json:"product_id" db:"product_id"`
	Description     string          `json:"description" db:"description"`
	Quantity        decimal.Decimal `json:"quantity" db:"quantity"`
	PackagingID     *int64          `json:"packaging_id,omitempty" db:"packaging_id"`
	PackagingFactor decimal.Decimal `json:"packaging_factor" db:"packaging_factor"`
	UnitPrice       decimal.Decimal `json:"unit_price" db:"unit_price"`
	DiscountAmount  decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	LineTotal       decimal.Decimal `json:"line_total" db:"line_total"`
	QtyBase         decimal.Decimal `json:"qty_base" db:"qty_base"`
	UnitWeightKg    decimal.Decimal `json:"unit_weight_kg" db:"unit_weight_kg"`
	GrossWeightKg   decimal.Decimal `json:"gross_weight_kg" db:"gross_weight_kg"`
	LineOrder       int             `json:"line_order" db:"line_order"`
}

func lineFromPricing(orderID int64, l pricing.Line, position int) SalesOrderLine {
	return SalesOrderLine{
		LineUID:         l.ID,
		SalesOrderID:    orderID,
		ProductID:       l.ProductID,
		Description:     l.ProductName,
		Quantity:        l.Quantity,
		PackagingID:     l.PackagingID,
		PackagingFactor: l.Factor(),
		UnitPrice:       l.UnitPrice,
		DiscountAmount:  l.DiscountAmount,
		LineTotal:       l.TotalAmount,
		QtyBase:         l.QtyBase,
		UnitWeightKg:    l.UnitWeightKg,
		GrossWeightKg:   l.GrossWeightKgSnapshot,
		LineOrder:       position,
	}
}

func (l SalesOrderLine) toPricing() pricing.Line {
	return pricing.Line{
		ID:                    l.LineUID,
		ProductID:             l.ProductID,
		ProductName:           l.Description,
		Quantity:              l.Quantity,
		PackagingID:           l.PackagingID,
		PackagingFactor:       l.PackagingFactor,
		UnitPrice:             l.UnitPrice,
		DiscountAmount:        l.DiscountAmount,
		TotalAmount:           l.LineTotal,
		QtyBase:               l.QtyBase,
		UnitWeightKg:          l.UnitWeightKg,
		GrossWeightKgSnapshot: l.GrossWeightKg,
	}
}

func (l SalesOrderLine) toHistoric() pricing.HistoricLine {
	return pricing.HistoricLine{
		ProductID:             l.ProductID,
		ProductName:           l.Description,
		Quantity:              l.Quantity,
		UnitPrice:             l.UnitPrice,
		UnitWeightKg:          l.UnitWeightKg,
		GrossWeightKgSnapshot: l.GrossWeightKg,
	}
}

// PricingOrder rebuilds the editable aggregate from a persisted order. Stored header totals
// are kept; Recompute only corrects them when they drifted.
func (o SalesOrder) PricingOrder() pricing.Order {
	items := make([]pricing.Line, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, l.toPricing())
	}
	po := pricing.Order{
		Items:              items,
		FreightAmount:      o.FreightAmount,
		DiscountAmount:     o.DiscountAmount,
		SubtotalAmount:     o.Subtotal,
		TotalAmount:        o.TotalAmount,
		TotalWeightKg:      o.TotalWeightKg,
		TotalGrossWeightKg: o.TotalGrossWeightKg,
	}
	po.Recompute()
	return po
}

// HeaderTotals are the header amounts maintained by the editor.
type HeaderTotals struct {
	FreightAmount      decimal.Decimal
	DiscountAmount     decimal.Decimal
	Subtotal           decimal.Decimal
	TotalAmount        decimal.Decimal
	TotalWeightKg      decimal.Decimal
	TotalGrossWeightKg decimal.Decimal
}

func headerFromPricing(o pricing.Order) HeaderTotals {
	return HeaderTotals{
		FreightAmount:      o.FreightAmount,
		DiscountAmount:     o.DiscountAmount,
		Subtotal:           o.SubtotalAmount,
		TotalAmount:        o.TotalAmount,
		TotalWeightKg:      o.TotalWeightKg,
		TotalGrossWeightKg: o.TotalGrossWeightKg,
	}
}
