// Package customers reads the business partners sales orders are placed for.
package customers

// Customer is the subset of a business partner that order entry needs.
type Customer struct {
	ID           int64  `json:"id" db:"id"`
	Code         string `json:"code" db:"code"`
	Name         string `json:"name" db:"name"`
	CompanyID    int64  `json:"company_id" db:"company_id"`
	PriceTableID *int64 `json:"price_table_id,omitempty" db:"price_table_id"`
	Currency     string `json:"currency" db:"currency"`
	IsActive     bool   `json:"is_active" db:"is_active"`
}
