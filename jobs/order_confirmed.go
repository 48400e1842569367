package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-orders/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Notifier forwards confirmations to downstream consumers.
type Notifier interface {
	NotifyOrderConfirmed(ctx context.Context, payload OrderConfirmedPayload) error
}

// LogNotifier writes a structured confirmation record.
type LogNotifier struct {
	Logger *slog.Logger
}

// NotifyOrderConfirmed implements Notifier.
func (n LogNotifier) NotifyOrderConfirmed(ctx context.Context, p OrderConfirmedPayload) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "sales order confirmed",
		slog.Int64("order_id", p.OrderID),
		slog.String("doc_number", p.DocNumber),
		slog.Int64("company_id", p.CompanyID),
		slog.Int64("customer_id", p.CustomerID),
		slog.String("currency", p.Currency),
		slog.String("total_amount", p.TotalAmount.StringFixed(2)),
		slog.String("fiscal_total", p.FiscalTotal.StringFixed(2)),
		slog.Int("lines", p.LineCount),
	)
	return nil
}

// OrderConfirmedJob handles TaskOrderConfirmed.
type OrderConfirmedJob struct {
	Notifier Notifier
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewOrderConfirmedJob wires dependencies for the confirmation handler.
func NewOrderConfirmedJob(notifier Notifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *OrderConfirmedJob {
	return &OrderConfirmedJob{Notifier: notifier, Logger: logger, Metrics: metrics}
}

// Handle processes confirmation tasks.
func (j *OrderConfirmedJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Notifier == nil {
		return errors.New("order confirmed: handler not configured")
	}
	var payload OrderConfirmedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("order confirmed: decode payload: %w", asynq.SkipRetry)
	}
	if payload.OrderID <= 0 {
		return fmt.Errorf("order confirmed: missing order id: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskOrderConfirmed)
	if err := j.Notifier.NotifyOrderConfirmed(ctx, payload); err != nil {
		j.logger().Error("notify order confirmed", slog.Int64("order_id", payload.OrderID), slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics().AddConfirmation(payload.CompanyID, payload.Currency)
	return tracker.End(nil)
}

func (j *OrderConfirmedJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOrderConfirmed))
	}
	return slog.Default().With(slog.String("job", TaskOrderConfirmed))
}

func (j *OrderConfirmedJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
