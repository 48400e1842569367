// Package drafts keeps the working copy of a sales order between HTTP requests.
package drafts

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-orders/internal/catalog"
	"github.com/odyssey-erp/odyssey-orders/internal/fiscal"
	"github.com/odyssey-erp/odyssey-orders/internal/sales/pricing"
)

// Selection is the product lookup in progress for the line being entered.
type Selection struct {
	Generation pricing.Ticket    `json:"generation"`
	ProductID  int64             `json:"product_id,omitempty"`
	Ready      bool              `json:"ready"`
	Resolved   *catalog.Resolved `json:"resolved,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Draft is an order under edit. Order holds the priced lines and totals; the remaining
// fields describe the persisted header and the submission state.
type Draft struct {
	OrderID        int64          `json:"order_id"`
	DocNumber      string         `json:"doc_number"`
	CompanyID      int64          `json:"company_id"`
	CustomerID     int64          `json:"customer_id"`
	PriceTableID   *int64         `json:"price_table_id,omitempty"`
	Currency       string         `json:"currency"`
	Order          pricing.Order  `json:"order"`
	State          string         `json:"state"`
	Unsaved        bool           `json:"unsaved"`
	RemovedLineIDs []uuid.UUID    `json:"removed_line_ids,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
	Fiscal         *fiscal.Totals `json:"fiscal,omitempty"`
	Selection      Selection      `json:"selection"`
	Version        int64          `json:"version"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// MarkRemoved records a line to be deleted on the next save.
func (d *Draft) MarkRemoved(id uuid.UUID) {
	for _, existing := range d.RemovedLineIDs {
		if existing == id {
			return
		}
	}
	d.RemovedLineIDs = append(d.RemovedLineIDs, id)
}
