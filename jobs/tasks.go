package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOrderConfirmed is emitted once a sales order has been confirmed.
	TaskOrderConfirmed = "sales:order_confirmed"
	// TaskCatalogCacheRefresh invalidates cached catalog resolutions.
	TaskCatalogCacheRefresh = "catalog:cache_refresh"
)

// OrderConfirmedPayload describes a confirmed sales order.
type OrderConfirmedPayload struct {
	OrderID     int64           `json:"order_id"`
	DocNumber   string          `json:"doc_number"`
	CompanyID   int64           `json:"company_id"`
	CustomerID  int64           `json:"customer_id"`
	Currency    string          `json:"currency"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	FiscalTotal decimal.Decimal `json:"fiscal_total"`
	LineCount   int             `json:"line_count"`
	ConfirmedBy int64           `json:"confirmed_by"`
	ConfirmedAt time.Time       `json:"confirmed_at"`
}

// NewOrderConfirmedTask constructs an Asynq task. The task id is derived from the order so a
// repeated enqueue for the same order is rejected by the queue.
func NewOrderConfirmedTask(payload OrderConfirmedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderConfirmed, data,
		asynq.Queue(QueueDefault),
		asynq.TaskID(fmt.Sprintf("order-confirmed-%d", payload.OrderID)),
		asynq.MaxRetry(10),
	), nil
}

// CatalogCacheRefreshPayload carries scheduling metadata.
type CatalogCacheRefreshPayload struct {
	Reason string `json:"reason"`
}

// NewCatalogCacheRefreshTask constructs the cache invalidation task.
func NewCatalogCacheRefreshTask(reason string) (*asynq.Task, error) {
	body, err := json.Marshal(CatalogCacheRefreshPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogCacheRefresh, body, asynq.Queue(QueueDefault)), nil
}
