package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Field names a user-editable numeric field of a line.
type Field string

const (
	FieldQuantity       Field = "quantity"
	FieldUnitPrice      Field = "unit_price"
	FieldDiscountAmount Field = "discount_amount"
)

// HistoricLine is a line taken from a previously placed order.
type HistoricLine struct {
	ProductID             int64
	ProductName           string
	Quantity              decimal.Decimal
	UnitPrice             decimal.Decimal
	UnitWeightKg          decimal.Decimal
	GrossWeightKgSnapshot decimal.Decimal
}

// AddLine prices a product into a new line and appends it to the order.
// unitPriceAtBaseUnit is the price of one base unit; the stored unit price is per packaging.
func (o *Order) AddLine(product Product, quantity decimal.Decimal, packaging *Packaging, unitPriceAtBaseUnit decimal.Decimal) (Line, error) {
	if product.ID <= 0 {
		return Line{}, ErrMissingProduct
	}
	if !quantity.GreaterThan(decimal.Zero) {
		return Line{}, ErrInvalidQuantity
	}
	if unitPriceAtBaseUnit.IsNegative() {
		return Line{}, ErrNegativePrice
	}
	factor, packagingID, err := resolvePackaging(product, packaging)
	if err != nil {
		return Line{}, err
	}

	line := Line{
		ID:              uuid.New(),
		ProductID:       product.ID,
		ProductName:     product.Name,
		Quantity:        quantity,
		PackagingID:     packagingID,
		PackagingFactor: factor,
		UnitPrice:       unitPriceAtBaseUnit.Mul(factor),
		DiscountAmount:  decimal.Zero,
	}
	line.UnitWeightKg, line.GrossWeightKgSnapshot = weightSnapshot(product, packaging, factor)
	line.recalculate()

	o.Items = append(o.Items, line)
	o.Recompute()
	return line, nil
}

// ChangePackaging switches a line to another packaging of the same product, or to the base
// unit when packaging is nil. The implied base-unit price is preserved.
func (o *Order) ChangePackaging(lineID uuid.UUID, product Product, packaging *Packaging) (Line, error) {
	i := o.indexOf(lineID)
	if i < 0 {
		return Line{}, ErrLineNotFound
	}
	if product.ID != o.Items[i].ProductID {
		return Line{}, ErrProductMismatch
	}
	newFactor, packagingID, err := resolvePackaging(product, packaging)
	if err != nil {
		return Line{}, err
	}

	line := o.Items[i]
	oldFactor := line.PackagingFactor
	if oldFactor.IsZero() && line.PackagingID == nil {
		oldFactor = one
	}
	basePrice := decimal.Zero
	if oldFactor.GreaterThan(decimal.Zero) {
		basePrice = line.UnitPrice.Div(oldFactor)
	}

	line.UnitPrice = basePrice.Mul(newFactor)
	line.PackagingID = packagingID
	line.PackagingFactor = newFactor
	line.UnitWeightKg, line.GrossWeightKgSnapshot = weightSnapshot(product, packaging, newFactor)
	line.recalculate()

	o.Items[i] = line
	o.Recompute()
	return line, nil
}

// UpdateLineField sets quantity, unit price or discount on a line and recomputes its totals.
func (o *Order) UpdateLineField(lineID uuid.UUID, field Field, value decimal.Decimal) (Line, error) {
	i := o.indexOf(lineID)
	if i < 0 {
		return Line{}, ErrLineNotFound
	}
	line := o.Items[i]
	switch field {
	case FieldQuantity:
		if value.IsNegative() {
			return Line{}, ErrNegativeQuantity
		}
		line.Quantity = value
	case FieldUnitPrice:
		if value.IsNegative() {
			return Line{}, ErrNegativePrice
		}
		line.UnitPrice = value
	case FieldDiscountAmount:
		if value.IsNegative() {
			return Line{}, ErrNegativeDiscount
		}
		line.DiscountAmount = value
	default:
		return Line{}, ErrUnknownField
	}
	line.recalculate()

	o.Items[i] = line
	o.Recompute()
	return line, nil
}

// RemoveLine drops a line by identity.
func (o *Order) RemoveLine(lineID uuid.UUID) error {
	i := o.indexOf(lineID)
	if i < 0 {
		return ErrLineNotFound
	}
	o.Items = append(o.Items[:i:i], o.Items[i+1:]...)
	o.Recompute()
	return nil
}

// SetFreight sets the order freight amount.
func (o *Order) SetFreight(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeFreight
	}
	o.FreightAmount = amount
	o.Recompute()
	return nil
}

// SetDiscount sets the order-level discount amount.
func (o *Order) SetDiscount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeDiscount
	}
	o.DiscountAmount = amount
	o.Recompute()
	return nil
}

// CopyLines appends lines from a previous order. Packaging is reset to the base unit and
// prices and weights are taken as recorded, without re-pricing.
func (o *Order) CopyLines(previous []HistoricLine) ([]Line, error) {
	copied := make([]Line, 0, len(previous))
	for _, prev := range previous {
		if prev.ProductID <= 0 {
			return nil, ErrMissingProduct
		}
		if !prev.Quantity.GreaterThan(decimal.Zero) {
			return nil, ErrInvalidQuantity
		}
		if prev.UnitPrice.IsNegative() {
			return nil, ErrNegativePrice
		}
		line := Line{
			ID:                    uuid.New(),
			ProductID:             prev.ProductID,
			ProductName:           prev.ProductName,
			Quantity:              prev.Quantity,
			PackagingFactor:       one,
			UnitPrice:             prev.UnitPrice,
			DiscountAmount:        decimal.Zero,
			UnitWeightKg:          prev.UnitWeightKg,
			GrossWeightKgSnapshot: decimal.Max(prev.GrossWeightKgSnapshot, prev.UnitWeightKg),
		}
		line.recalculate()
		copied = append(copied, line)
	}
	o.Items = append(o.Items, copied...)
	o.Recompute()
	return copied, nil
}

// recalculate refreshes the line's derived fields. Line totals are not clamped at zero.
func (l *Line) recalculate() {
	l.TotalAmount = l.Quantity.Mul(l.UnitPrice).Sub(l.DiscountAmount)
	l.QtyBase = l.Quantity.Mul(l.Factor())
}

func resolvePackaging(product Product, packaging *Packaging) (decimal.Decimal, *int64, error) {
	if packaging == nil {
		return one, nil, nil
	}
	owned, ok := product.Packaging(packaging.ID)
	if !ok {
		return decimal.Zero, nil, ErrForeignPackaging
	}
	if !owned.QtyInBase.GreaterThan(decimal.Zero) {
		return decimal.Zero, nil, ErrInvalidFactor
	}
	id := owned.ID
	return owned.QtyInBase, &id, nil
}

// weightSnapshot returns net and gross weight of one packaging unit. Gross is never below net.
func weightSnapshot(product Product, packaging *Packaging, factor decimal.Decimal) (net, gross decimal.Decimal) {
	net = product.NetWeightKgBase.Mul(factor)
	gross = product.GrossWeightKgBase.Mul(factor)
	if packaging != nil {
		if owned, ok := product.Packaging(packaging.ID); ok && owned.GrossWeightKg != nil {
			gross = *owned.GrossWeightKg
		}
	}
	if gross.LessThan(net) {
		gross = net
	}
	return net, gross
}
