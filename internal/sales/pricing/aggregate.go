package pricing

import "github.com/shopspring/decimal"

// epsilon below which a recomputed aggregate is considered unchanged.
var epsilon = decimal.New(1, -3)

// Totals are the derived order-level amounts.
type Totals struct {
	SubtotalAmount     decimal.Decimal `json:"subtotal_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	TotalWeightKg      decimal.Decimal `json:"total_weight_kg"`
	TotalGrossWeightKg decimal.Decimal `json:"total_gross_weight_kg"`
}

// ComputeTotals derives order totals from lines, freight and the global discount.
func ComputeTotals(items []Line, freight, discount decimal.Decimal) Totals {
	var t Totals
	for _, line := range items {
		t.SubtotalAmount = t.SubtotalAmount.Add(line.TotalAmount)
		t.TotalWeightKg = t.TotalWeightKg.Add(line.UnitWeightKg.Mul(line.Quantity))
		gross := decimal.Max(line.GrossWeightKgSnapshot, line.UnitWeightKg)
		t.TotalGrossWeightKg = t.TotalGrossWeightKg.Add(gross.Mul(line.Quantity))
	}
	t.TotalAmount = decimal.Max(decimal.Zero, t.SubtotalAmount.Add(freight).Sub(discount))
	return t
}

// Totals returns the stored aggregate values.
func (o *Order) Totals() Totals {
	return Totals{
		SubtotalAmount:     o.SubtotalAmount,
		TotalAmount:        o.TotalAmount,
		TotalWeightKg:      o.TotalWeightKg,
		TotalGrossWeightKg: o.TotalGrossWeightKg,
	}
}

// Recompute refreshes the order aggregates and reports whether any stored value changed.
// Values within epsilon of the stored ones are left alone.
func (o *Order) Recompute() bool {
	next := ComputeTotals(o.Items, o.FreightAmount, o.DiscountAmount)
	changed := false
	assign := func(dst *decimal.Decimal, v decimal.Decimal) {
		if dst.Sub(v).Abs().GreaterThan(epsilon) {
			*dst = v
			changed = true
		}
	}
	assign(&o.SubtotalAmount, next.SubtotalAmount)
	assign(&o.TotalAmount, next.TotalAmount)
	assign(&o.TotalWeightKg, next.TotalWeightKg)
	assign(&o.TotalGrossWeightKg, next.TotalGrossWeightKg)
	return changed
}
