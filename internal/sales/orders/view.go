package orders

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/odyssey-orders/internal/sales/drafts"
)

var displayLanguages = language.NewMatcher([]language.Tag{
	language.English,
	language.BrazilianPortuguese,
	language.Indonesian,
})

// DraftView is the draft as returned to clients, with amounts formatted for display.
type DraftView struct {
	drafts.Draft
	Display DisplayAmounts `json:"display"`
}

// DisplayAmounts are localized, currency-formatted header amounts.
type DisplayAmounts struct {
	Subtotal    string `json:"subtotal"`
	Freight     string `json:"freight"`
	Discount    string `json:"discount"`
	Total       string `json:"total"`
	FiscalTotal string `json:"fiscal_total,omitempty"`
}

// NewDraftView formats the draft amounts for the language preferences in acceptLanguage.
func NewDraftView(d drafts.Draft, acceptLanguage string) DraftView {
	tags, _, _ := language.ParseAcceptLanguage(acceptLanguage)
	tag, _, _ := displayLanguages.Match(tags...)
	f := amountFormatter{printer: message.NewPrinter(tag)}
	if unit, err := currency.ParseISO(d.Currency); err == nil {
		f.unit = &unit
	}

	view := DraftView{
		Draft: d,
		Display: DisplayAmounts{
			Subtotal: f.format(d.Order.SubtotalAmount),
			Freight:  f.format(d.Order.FreightAmount),
			Discount: f.format(d.Order.DiscountAmount),
			Total:    f.format(d.Order.TotalAmount),
		},
	}
	if d.Fiscal != nil {
		view.Display.FiscalTotal = f.format(d.Fiscal.TotalAmount)
	}
	return view
}

type amountFormatter struct {
	printer *message.Printer
	unit    *currency.Unit
}

// format falls back to the plain decimal when the currency code is unknown.
func (f amountFormatter) format(v decimal.Decimal) string {
	if f.unit == nil {
		return v.StringFixed(2)
	}
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(v.InexactFloat64())))
}
