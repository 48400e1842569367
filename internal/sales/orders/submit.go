package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/odyssey-erp/odyssey-orders/internal/fiscal"
	"github.com/odyssey-erp/odyssey-orders/internal/sales/drafts"
	"github.com/odyssey-erp/odyssey-orders/internal/shared"
	"github.com/odyssey-erp/odyssey-orders/jobs"
)

// Save persists the draft and recalculates fiscal totals, returning the order to DRAFT.
func (s *Service) Save(ctx context.Context, id int64) (drafts.Draft, error) {
	return s.submit(ctx, id, false, "", 0)
}

// Confirm saves, recalculates fiscal totals and confirms the order. The idempotency key makes
// a repeated confirmation of the same request a conflict instead of a second confirmation.
func (s *Service) Confirm(ctx context.Context, id int64, idempotencyKey string, userID int64) (drafts.Draft, error) {
	if idempotencyKey == "" {
		return drafts.Draft{}, shared.ErrIdempotencyKeyMissing
	}
	return s.submit(ctx, id, true, idempotencyKey, userID)
}

func (s *Service) submit(ctx context.Context, id int64, confirm bool, key string, userID int64) (drafts.Draft, error) {
	mode := "save"
	if confirm {
		mode = "confirm"
	}
	logger := s.logger.With(slog.Int64("order_id", id), slog.String("mode", mode))

	if _, err := s.OpenDraft(ctx, id); err != nil {
		return drafts.Draft{}, err
	}
	token, err := s.drafts.Lock(ctx, id, s.lockTTL)
	if err != nil {
		return drafts.Draft{}, err
	}
	defer s.unlock(ctx, id, token)

	var snapshot drafts.Draft
	_, err = s.drafts.Update(ctx, id, func(d *drafts.Draft) error {
		s.resetInterrupted(id, d)
		if !State(d.State).Editable() {
			return ErrNotEditable
		}
		d.State = string(StateSaving)
		d.LastError = ""
		snapshot = *d
		return nil
	})
	if err != nil {
		return drafts.Draft{}, err
	}

	wf := NewWorkflow(StateDraft, func(st State) {
		logger.Debug("order submission state", slog.String("state", string(st)))
	})
	if err := wf.Advance(StateSaving); err != nil {
		return drafts.Draft{}, err
	}

	run := submission{svc: s, wf: wf, id: id, logger: logger}
	d, err := run.execute(ctx, snapshot, confirm, key, userID)
	if err != nil {
		s.metrics.Submission(mode, "failed")
		return d, err
	}
	s.metrics.Submission(mode, "ok")
	return d, nil
}

type submission struct {
	svc    *Service
	wf     *Workflow
	id     int64
	logger *slog.Logger
}

func (r submission) execute(ctx context.Context, snapshot drafts.Draft, confirm bool, key string, userID int64) (drafts.Draft, error) {
	s := r.svc

	if err := r.persist(ctx, snapshot); err != nil {
		return r.fail(ctx, "save order", err)
	}
	if _, err := r.advance(ctx, StateFiscalPending, func(d *drafts.Draft) {
		d.Unsaved = false
		d.RemovedLineIDs = nil
	}); err != nil {
		return r.fail(ctx, "record save", err)
	}

	totals, err := s.fiscal.Recalculate(ctx, r.id)
	if err != nil {
		return r.fail(ctx, "fiscal recalculation", err)
	}
	if err := s.repo.ApplyFiscalTotals(ctx, r.id, totals); err != nil {
		return r.fail(ctx, "store fiscal totals", err)
	}

	if !confirm {
		d, err := r.advance(ctx, StateDraft, func(d *drafts.Draft) { d.Fiscal = &totals })
		if err != nil {
			return r.fail(ctx, "record fiscal totals", err)
		}
		r.logger.Info("sales order saved", slog.String("fiscal_total", totals.TotalAmount.StringFixed(2)))
		return d, nil
	}

	if _, err := r.advance(ctx, StateConfirming, func(d *drafts.Draft) { d.Fiscal = &totals }); err != nil {
		return r.fail(ctx, "record fiscal totals", err)
	}
	if err := s.idem.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
		return r.fail(ctx, "check idempotency key", err)
	}
	if err := s.repo.UpdateStatus(ctx, r.id, SalesOrderStatusConfirmed, userID); err != nil {
		if delErr := s.idem.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			r.logger.Warn("release idempotency key", slog.Any("error", delErr))
		}
		return r.fail(ctx, "confirm order", err)
	}

	d, err := r.advance(ctx, StateConfirmed, nil)
	if err != nil {
		// The order is confirmed in the database; the working copy is rebuilt from it.
		r.logger.Warn("record confirmation", slog.Any("error", err))
		if delErr := s.drafts.Delete(context.WithoutCancel(ctx), r.id); delErr != nil {
			r.logger.Warn("drop stale draft", slog.Any("error", delErr))
		}
		d, err = s.OpenDraft(ctx, r.id)
		if err != nil {
			return drafts.Draft{}, err
		}
	}
	r.enqueueConfirmation(ctx, d, totals, userID)
	r.recordAudit(ctx, d, userID)
	r.logger.Info("sales order confirmed", slog.String("doc_number", d.DocNumber))
	return d, nil
}

func (r submission) persist(ctx context.Context, snapshot drafts.Draft) error {
	lines := make([]SalesOrderLine, 0, len(snapshot.Order.Items))
	for i, item := range snapshot.Order.Items {
		lines = append(lines, lineFromPricing(r.id, item, i+1))
	}
	return r.svc.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.DeleteLines(ctx, r.id, snapshot.RemovedLineIDs); err != nil {
			return err
		}
		if err := repo.UpsertLines(ctx, r.id, lines); err != nil {
			return err
		}
		return repo.UpdateTotals(ctx, r.id, headerFromPricing(snapshot.Order))
	})
}

// advance moves the workflow and the stored draft to next, applying fn to the draft.
func (r submission) advance(ctx context.Context, next State, fn func(*drafts.Draft)) (drafts.Draft, error) {
	if err := r.wf.Advance(next); err != nil {
		return drafts.Draft{}, err
	}
	return r.svc.drafts.Update(ctx, r.id, func(d *drafts.Draft) error {
		d.State = string(next)
		if fn != nil {
			fn(d)
		}
		return nil
	})
}

// fail moves the submission to FAILED and back to DRAFT, keeping the edits and marking them
// unsaved with a readable reason.
func (r submission) fail(ctx context.Context, step string, cause error) (drafts.Draft, error) {
	r.logger.Error("order submission failed", slog.String("step", step), slog.Any("error", cause))
	if err := r.wf.Fail(); err != nil {
		r.logger.Error("workflow fail", slog.Any("error", err))
	}
	message := failureMessage(step, cause)
	d, err := r.svc.drafts.Update(context.WithoutCancel(ctx), r.id, func(d *drafts.Draft) error {
		d.State = string(StateDraft)
		d.Unsaved = true
		d.LastError = message
		return nil
	})
	if err != nil {
		r.logger.Error("record submission failure", slog.Any("error", err))
	}
	return d, fmt.Errorf("%s: %w", step, cause)
}

func (r submission) enqueueConfirmation(ctx context.Context, d drafts.Draft, totals fiscal.Totals, userID int64) {
	if r.svc.jobs == nil {
		return
	}
	payload := jobs.OrderConfirmedPayload{
		OrderID:     r.id,
		DocNumber:   d.DocNumber,
		CompanyID:   d.CompanyID,
		CustomerID:  d.CustomerID,
		Currency:    d.Currency,
		TotalAmount: d.Order.TotalAmount,
		FiscalTotal: totals.TotalAmount,
		LineCount:   len(d.Order.Items),
		ConfirmedBy: userID,
		ConfirmedAt: r.svc.now().UTC(),
	}
	if err := r.svc.jobs.EnqueueOrderConfirmed(ctx, payload); err != nil {
		r.logger.Warn("enqueue order confirmed", slog.Any("error", err))
	}
}

func (r submission) recordAudit(ctx context.Context, d drafts.Draft, userID int64) {
	if r.svc.audit == nil {
		return
	}
	err := r.svc.audit.Record(ctx, shared.AuditLog{
		ActorID:  userID,
		Action:   idempotencyModule,
		Entity:   "sales_order",
		EntityID: strconv.FormatInt(r.id, 10),
		Meta: map[string]any{
			"doc_number":   d.DocNumber,
			"total_amount": d.Order.TotalAmount.String(),
		},
		At: r.svc.now().UTC(),
	})
	if err != nil {
		r.logger.Warn("record confirmation audit", slog.Any("error", err))
	}
}

func failureMessage(step string, cause error) string {
	switch {
	case errors.Is(cause, fiscal.ErrRejected):
		return "Fiscal recalculation rejected the order: " + cause.Error()
	case errors.Is(cause, fiscal.ErrUnavailable):
		return "Fiscal service is unavailable, try again later"
	case errors.Is(cause, shared.ErrIdempotencyConflict):
		return "This confirmation request was already processed"
	default:
		return "Could not " + step + ": " + cause.Error()
	}
}
