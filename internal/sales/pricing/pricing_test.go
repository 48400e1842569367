package pricing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s got %s %v", want, got.String(), msgAndArgs)
}

func ptrDec(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func sampleProduct() Product {
	return Product{
		ID:                7,
		Code:              "AGUA-500",
		Name:              "Agua mineral 500ml",
		BaseUOM:           "UN",
		NetWeightKgBase:   dec("0.5"),
		GrossWeightKgBase: dec("0.52"),
		Packagings: []Packaging{
			{ID: 70, Label: "Fardo 12", QtyInBase: dec("12")},
			{ID: 71, Label: "Caixa 3", QtyInBase: dec("3"), GrossWeightKg: ptrDec("1.7")},
			{ID: 72, Label: "Meia", QtyInBase: dec("0.5")},
			{ID: 73, Label: "Palete", QtyInBase: dec("7"), GrossWeightKg: ptrDec("1")},
		},
	}
}

func cloneOrder(o Order) Order {
	cp := o
	cp.Items = append([]Line(nil), o.Items...)
	return cp
}

func mustAdd(t *testing.T, o *Order, p Product, qty string, pkg *Packaging, base string) Line {
	t.Helper()
	line, err := o.AddLine(p, dec(qty), pkg, dec(base))
	require.NoError(t, err)
	return line
}

func TestAddLineBaseUnit(t *testing.T) {
	var o Order
	line := mustAdd(t, &o, sampleProduct(), "4", nil, "2.5")

	assert.Nil(t, line.PackagingID)
	assertDec(t, "1", line.PackagingFactor)
	assertDec(t, "2.5", line.UnitPrice)
	assertDec(t, "4", line.QtyBase)
	assertDec(t, "10", line.TotalAmount)
	assertDec(t, "0.5", line.UnitWeightKg)
	assertDec(t, "0.52", line.GrossWeightKgSnapshot)
	assert.NotEqual(t, uuid.Nil, line.ID)
	require.Len(t, o.Items, 1)
	assertDec(t, "10", o.SubtotalAmount)
	assertDec(t, "10", o.TotalAmount)
	assertDec(t, "2", o.TotalWeightKg)
	assertDec(t, "2.08", o.TotalGrossWeightKg)
}

func TestAddLineWithPackagingStoresPackagingPrice(t *testing.T) {
	p := sampleProduct()
	var o Order
	line := mustAdd(t, &o, p, "2", &p.Packagings[0], "10")

	require.NotNil(t, line.PackagingID)
	assert.Equal(t, int64(70), *line.PackagingID)
	assertDec(t, "120", line.UnitPrice)
	assertDec(t, "24", line.QtyBase)
	assertDec(t, "240", line.TotalAmount)
	assertDec(t, "6", line.UnitWeightKg)
	assertDec(t, "6.24", line.GrossWeightKgSnapshot)
}

func TestAddLineGrossOverrideAndFloor(t *testing.T) {
	p := sampleProduct()
	var o Order

	withOverride := mustAdd(t, &o, p, "1", &p.Packagings[1], "1")
	assertDec(t, "1.5", withOverride.UnitWeightKg)
	assertDec(t, "1.7", withOverride.GrossWeightKgSnapshot)

	// The palete override (1kg) is lighter than 7 × 0.5kg net, so gross is raised to net.
	floored := mustAdd(t, &o, p, "1", &p.Packagings[3], "1")
	assertDec(t, "3.5", floored.UnitWeightKg)
	assertDec(t, "3.5", floored.GrossWeightKgSnapshot)
}

func TestAddLineValidation(t *testing.T) {
	p := sampleProduct()
	foreign := Packaging{ID: 999, Label: "Outro", QtyInBase: dec("6")}
	broken := p
	broken.Packagings = []Packaging{{ID: 80, Label: "Zero", QtyInBase: decimal.Zero}}

	cases := []struct {
		name    string
		product Product
		qty     string
		pkg     *Packaging
		price   string
		want    error
	}{
		{"zero quantity", p, "0", nil, "1", ErrInvalidQuantity},
		{"negative quantity", p, "-1", nil, "1", ErrInvalidQuantity},
		{"negative price", p, "1", nil, "-0.01", ErrNegativePrice},
		{"missing product", Product{}, "1", nil, "1", ErrMissingProduct},
		{"foreign packaging", p, "1", &foreign, "1", ErrForeignPackaging},
		{"zero factor", broken, "1", &broken.Packagings[0], "1", ErrInvalidFactor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var o Order
			mustAdd(t, &o, p, "1", nil, "3")
			before := cloneOrder(o)

			_, err := o.AddLine(tc.product, dec(tc.qty), tc.pkg, dec(tc.price))
			require.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, before, o)
		})
	}
}

func TestAddLineQuantityErrorMessage(t *testing.T) {
	var o Order
	_, err := o.AddLine(sampleProduct(), decimal.Zero, nil, dec("1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity must be positive")
}

func TestChangePackagingRoundTrip(t *testing.T) {
	p := sampleProduct()
	var o Order
	line := mustAdd(t, &o, p, "3", nil, "10.00")

	converted, err := o.ChangePackaging(line.ID, p, &p.Packagings[0])
	require.NoError(t, err)
	assertDec(t, "120.00", converted.UnitPrice)
	assertDec(t, "36", converted.QtyBase)
	assertDec(t, "360", converted.TotalAmount)
	require.NotNil(t, converted.PackagingID)
	assert.Equal(t, int64(70), *converted.PackagingID)
	assertDec(t, "360", o.SubtotalAmount)

	back, err := o.ChangePackaging(line.ID, p, nil)
	require.NoError(t, err)
	assertDec(t, "10.00", back.UnitPrice)
	assertDec(t, "3", back.QtyBase)
	assert.Nil(t, back.PackagingID)
	assertDec(t, "30", o.SubtotalAmount)
}

func TestChangePackagingPreservesBasePrice(t *testing.T) {
	p := sampleProduct()
	targets := []*Packaging{nil, &p.Packagings[0], &p.Packagings[1], &p.Packagings[2], &p.Packagings[3]}

	for _, start := range targets {
		for _, target := range targets {
			var o Order
			line := mustAdd(t, &o, p, "2", start, "9.99")
			before := line.BaseUnitPrice()

			changed, err := o.ChangePackaging(line.ID, p, target)
			require.NoError(t, err)

			diff := changed.BaseUnitPrice().Sub(before).Abs()
			assert.Truef(t, diff.LessThan(dec("0.000000001")), "base price drifted by %s", diff)
		}
	}
}

func TestChangePackagingRetakesWeights(t *testing.T) {
	p := sampleProduct()
	var o Order
	line := mustAdd(t, &o, p, "2", nil, "1")

	changed, err := o.ChangePackaging(line.ID, p, &p.Packagings[1])
	require.NoError(t, err)
	assertDec(t, "1.5", changed.UnitWeightKg)
	assertDec(t, "1.7", changed.GrossWeightKgSnapshot)
	assertDec(t, "3", o.TotalWeightKg)
	assertDec(t, "3.4", o.TotalGrossWeightKg)
}

func TestChangePackagingRejections(t *testing.T) {
	p := sampleProduct()
	var o Order
	line := mustAdd(t, &o, p, "2", &p.Packagings[0], "1")
	before := cloneOrder(o)

	other := p
	other.ID = 8
	_, err := o.ChangePackaging(line.ID, other, nil)
	assert.ErrorIs(t, err, ErrProductMismatch)

	_, err = o.ChangePackaging(line.ID, p, &Packaging{ID: 555, QtyInBase: dec("2")})
	assert.ErrorIs(t, err, ErrForeignPackaging)

	_, err = o.ChangePackaging(uuid.New(), p, nil)
	assert.ErrorIs(t, err, ErrLineNotFound)

	assert.Equal(t, before, o)
}

func TestChangePackagingZeroFactorYieldsZeroBasePrice(t *testing.T) {
	p := sampleProduct()
	pkgID := int64(70)
	o := Order{Items: []Line{{
		ID:              uuid.New(),
		ProductID:       p.ID,
		Quantity:        dec("1"),
		PackagingID:     &pkgID,
		PackagingFactor: decimal.Zero,
		UnitPrice:       dec("50"),
	}}}

	changed, err := o.ChangePackaging(o.Items[0].ID, p, &p.Packagings[1])
	require.NoError(t, err)
	assertDec(t, "0", changed.UnitPrice)
}

func TestUpdateLineFieldQuantity(t *testing.T) {
	var o Order
	line := mustAdd(t, &o, sampleProduct(), "1", nil, "5.00")
	_, err := o.UpdateLineField(line.ID, FieldDiscountAmount, dec("2.00"))
	require.NoError(t, err)

	updated, err := o.UpdateLineField(line.ID, FieldQuantity, dec("3"))
	require.NoError(t, err)
	assertDec(t, "13.00", updated.TotalAmount)
	assertDec(t, "3", updated.QtyBase)
	assertDec(t, "13.00", o.SubtotalAmount)
}

func TestUpdateLineFieldKeepsPackagingFactor(t *testing.T) {
	p := sampleProduct()
	var o Order
	line := mustAdd(t, &o, p, "1", &p.Packagings[1], "2")

	updated, err := o.UpdateLineField(line.ID, FieldQuantity, dec("5"))
	require.NoError(t, err)
	assertDec(t, "15", updated.QtyBase)
	assertDec(t, "30", updated.TotalAmount)

	updated, err = o.UpdateLineField(line.ID, FieldUnitPrice, dec("7"))
	require.NoError(t, err)
	assertDec(t, "35", updated.TotalAmount)
	assertDec(t, "15", updated.QtyBase)
}

func TestUpdateLineFieldLineTotalNotClamped(t *testing.T) {
	var o Order
	line := mustAdd(t, &o, sampleProduct(), "1", nil, "5")

	updated, err := o.UpdateLineField(line.ID, FieldDiscountAmount, dec("8"))
	require.NoError(t, err)
	assertDec(t, "-3", updated.TotalAmount)
	assertDec(t, "-3", o.SubtotalAmount)
	assertDec(t, "0", o.TotalAmount)
}

func TestUpdateLineFieldRejections(t *testing.T) {
	var o Order
	line := mustAdd(t, &o, sampleProduct(), "2", nil, "5")
	before := cloneOrder(o)

	_, err := o.UpdateLineField(line.ID, FieldQuantity, dec("-1"))
	assert.ErrorIs(t, err, ErrNegativeQuantity)
	_, err = o.UpdateLineField(line.ID, FieldUnitPrice, dec("-1"))
	assert.ErrorIs(t, err, ErrNegativePrice)
	_, err = o.UpdateLineField(line.ID, FieldDiscountAmount, dec("-1"))
	assert.ErrorIs(t, err, ErrNegativeDiscount)
	_, err = o.UpdateLineField(line.ID, Field("weight"), dec("1"))
	assert.ErrorIs(t, err, ErrUnknownField)
	_, err = o.UpdateLineField(uuid.New(), FieldQuantity, dec("1"))
	assert.ErrorIs(t, err, ErrLineNotFound)

	assert.Equal(t, before, o)
}

func TestTotalConsistencyAfterEveryMutation(t *testing.T) {
	p := sampleProduct()
	var o Order
	check := func() {
		t.Helper()
		for _, l := range o.Items {
			want := l.Quantity.Mul(l.UnitPrice).Sub(l.DiscountAmount)
			assert.Truef(t, want.Equal(l.TotalAmount), "line %s total %s want %s", l.ID, l.TotalAmount, want)
		}
	}

	a := mustAdd(t, &o, p, "2", nil, "4.5")
	check()
	b := mustAdd(t, &o, p, "1", &p.Packagings[0], "4.5")
	check()
	_, err := o.UpdateLineField(a.ID, FieldDiscountAmount, dec("1.25"))
	require.NoError(t, err)
	check()
	_, err = o.ChangePackaging(b.ID, p, &p.Packagings[2])
	require.NoError(t, err)
	check()
	_, err = o.UpdateLineField(b.ID, FieldUnitPrice, dec("3.333"))
	require.NoError(t, err)
	check()
	require.NoError(t, o.RemoveLine(a.ID))
	check()
}

func TestOrderTotals(t *testing.T) {
	var o Order
	mustAdd(t, &o, sampleProduct(), "10", nil, "10.00")
	mustAdd(t, &o, sampleProduct(), "5", nil, "10.00")
	require.NoError(t, o.SetFreight(dec("20.00")))
	require.NoError(t, o.SetDiscount(dec("30.00")))

	assertDec(t, "150.00", o.SubtotalAmount)
	assertDec(t, "140.00", o.TotalAmount)
}

func TestOrderTotalFloor(t *testing.T) {
	cases := []struct{ subtotalPrice, freight, discount, want string }{
		{"10", "0", "5", "5"},
		{"10", "5", "15", "0"},
		{"10", "0", "1000", "0"},
		{"0", "0", "1", "0"},
		{"10", "2", "0", "12"},
	}
	for _, tc := range cases {
		var o Order
		mustAdd(t, &o, sampleProduct(), "1", nil, tc.subtotalPrice)
		require.NoError(t, o.SetFreight(dec(tc.freight)))
		require.NoError(t, o.SetDiscount(dec(tc.discount)))
		assert.False(t, o.TotalAmount.IsNegative())
		assertDec(t, tc.want, o.TotalAmount, tc)
	}
}

func TestSetFreightAndDiscountRejectNegative(t *testing.T) {
	var o Order
	mustAdd(t, &o, sampleProduct(), "1", nil, "10")
	before := cloneOrder(o)

	assert.ErrorIs(t, o.SetFreight(dec("-1")), ErrNegativeFreight)
	assert.ErrorIs(t, o.SetDiscount(dec("-1")), ErrNegativeDiscount)
	assert.Equal(t, before, o)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	p := sampleProduct()
	var o Order
	mustAdd(t, &o, p, "3", &p.Packagings[1], "1.1")
	mustAdd(t, &o, p, "2", nil, "7")
	require.NoError(t, o.SetFreight(dec("4")))

	o.Recompute()
	first := cloneOrder(o)
	changed := o.Recompute()

	assert.False(t, changed)
	assert.Equal(t, first, o)
}

func TestRecomputeSkipsWithinEpsilon(t *testing.T) {
	var o Order
	mustAdd(t, &o, sampleProduct(), "1", nil, "10")

	o.SubtotalAmount = dec("10.0004")
	o.TotalAmount = dec("9.9995")
	assert.False(t, o.Recompute())
	assertDec(t, "10.0004", o.SubtotalAmount)

	o.SubtotalAmount = dec("10.01")
	assert.True(t, o.Recompute())
	assertDec(t, "10", o.SubtotalAmount)
}

func TestWeightAggregation(t *testing.T) {
	p := sampleProduct()
	var o Order
	mustAdd(t, &o, p, "2", nil, "1")
	mustAdd(t, &o, p, "3", &p.Packagings[0], "1")
	mustAdd(t, &o, p, "1", &p.Packagings[3], "1")

	net := decimal.Zero
	for _, l := range o.Items {
		net = net.Add(l.UnitWeightKg.Mul(l.Quantity))
	}
	assert.True(t, net.Equal(o.TotalWeightKg))
	assertDec(t, "22.5", o.TotalWeightKg)
	assert.True(t, o.TotalGrossWeightKg.GreaterThanOrEqual(o.TotalWeightKg))
}

func TestGrossFloorAppliedDuringAggregation(t *testing.T) {
	o := Order{Items: []Line{{
		ID:                    uuid.New(),
		ProductID:             1,
		Quantity:              dec("2"),
		PackagingFactor:       dec("1"),
		UnitWeightKg:          dec("3"),
		GrossWeightKgSnapshot: dec("1"),
	}}}
	o.Recompute()
	assertDec(t, "6", o.TotalWeightKg)
	assertDec(t, "6", o.TotalGrossWeightKg)
}

func TestRemoveLine(t *testing.T) {
	p := sampleProduct()
	var o Order
	keep := mustAdd(t, &o, p, "2", nil, "10")
	drop := mustAdd(t, &o, p, "1", &p.Packagings[1], "4")

	subtotal, net, gross := o.SubtotalAmount, o.TotalWeightKg, o.TotalGrossWeightKg
	require.NoError(t, o.RemoveLine(drop.ID))

	require.Len(t, o.Items, 1)
	assert.Equal(t, keep.ID, o.Items[0].ID)
	assert.True(t, subtotal.Sub(drop.TotalAmount).Equal(o.SubtotalAmount))
	assert.True(t, net.Sub(drop.UnitWeightKg.Mul(drop.Quantity)).Equal(o.TotalWeightKg))
	assert.True(t, gross.Sub(drop.GrossWeightKgSnapshot.Mul(drop.Quantity)).Equal(o.TotalGrossWeightKg))

	assert.ErrorIs(t, o.RemoveLine(drop.ID), ErrLineNotFound)
}

func TestRemoveLineKeepsInsertionOrder(t *testing.T) {
	var o Order
	a := mustAdd(t, &o, sampleProduct(), "1", nil, "1")
	b := mustAdd(t, &o, sampleProduct(), "1", nil, "2")
	c := mustAdd(t, &o, sampleProduct(), "1", nil, "3")

	require.NoError(t, o.RemoveLine(b.ID))
	require.Len(t, o.Items, 2)
	assert.Equal(t, a.ID, o.Items[0].ID)
	assert.Equal(t, c.ID, o.Items[1].ID)
}

func TestCopyLines(t *testing.T) {
	var o Order
	copied, err := o.CopyLines([]HistoricLine{
		{ProductID: 7, ProductName: "Agua", Quantity: dec("2"), UnitPrice: dec("120"), UnitWeightKg: dec("6"), GrossWeightKgSnapshot: dec("6.5")},
		{ProductID: 9, Quantity: dec("1"), UnitPrice: dec("3.5"), UnitWeightKg: dec("1"), GrossWeightKgSnapshot: dec("0.8")},
	})
	require.NoError(t, err)
	require.Len(t, copied, 2)

	first := copied[0]
	assert.Nil(t, first.PackagingID)
	assertDec(t, "1", first.PackagingFactor)
	assertDec(t, "120", first.UnitPrice)
	assertDec(t, "2", first.QtyBase)
	assertDec(t, "240", first.TotalAmount)
	assertDec(t, "1", copied[1].GrossWeightKgSnapshot)
	assert.NotEqual(t, first.ID, copied[1].ID)

	assertDec(t, "243.5", o.SubtotalAmount)
	assertDec(t, "13", o.TotalWeightKg)
	assertDec(t, "14", o.TotalGrossWeightKg)
}

func TestCopyLinesRejectsInvalidHistoryAtomically(t *testing.T) {
	var o Order
	mustAdd(t, &o, sampleProduct(), "1", nil, "1")
	before := cloneOrder(o)

	_, err := o.CopyLines([]HistoricLine{
		{ProductID: 7, Quantity: dec("1"), UnitPrice: dec("1")},
		{ProductID: 7, Quantity: decimal.Zero, UnitPrice: dec("1")},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, before, o)
}
