package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-orders/internal/sales/pricing"
)

type CreateSalesOrderRequest struct {
	CompanyID    int64     `json:"company_id" validate:"required,gt=0"`
	CustomerID   int64     `json:"customer_id" validate:"required,gt=0"`
	PriceTableID *int64    `json:"price_table_id,omitempty" validate:"omitempty,gt=0"`
	OrderDate    time.Time `json:"order_date" validate:"required"`
	Currency     string    `json:"currency" validate:"omitempty,len=3"`
	Notes        *string   `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type SelectProductRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

// AddLineRequest adds the selected product. UnitPrice, when present, is a base-unit price that
// replaces the price table price.
type AddLineRequest struct {
	ProductID   int64            `json:"product_id" validate:"required,gt=0"`
	Quantity    decimal.Decimal  `json:"quantity"`
	PackagingID *int64           `json:"packaging_id,omitempty" validate:"omitempty,gt=0"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
}

type UpdateLineRequest struct {
	Field string          `json:"field" validate:"required,oneof=quantity unit_price discount_amount"`
	Value decimal.Decimal `json:"value"`
}

// ChangePackagingRequest selects a packaging; a null packaging_id selects the base unit.
type ChangePackagingRequest struct {
	PackagingID *int64 `json:"packaging_id" validate:"omitempty,gt=0"`
}

type UpdateTotalsRequest struct {
	FreightAmount  *decimal.Decimal `json:"freight_amount,omitempty"`
	DiscountAmount *decimal.Decimal `json:"discount_amount,omitempty"`
}

func (r UpdateLineRequest) field() pricing.Field {
	return pricing.Field(r.Field)
}
