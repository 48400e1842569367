package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-orders/internal/catalog"
	"github.com/odyssey-erp/odyssey-orders/internal/fiscal"
	"github.com/odyssey-erp/odyssey-orders/internal/sales/customers"
	"github.com/odyssey-erp/odyssey-orders/internal/sales/drafts"
	"github.com/odyssey-erp/odyssey-orders/internal/sales/pricing"
	"github.com/odyssey-erp/odyssey-orders/internal/shared"
	"github.com/odyssey-erp/odyssey-orders/jobs"
)

var (
	ErrInvalidStatus = errors.New("invalid status transition")
	// ErrNotEditable indicates the order is confirmed or a submission is in flight.
	ErrNotEditable = fmt.Errorf("%w: order is not editable", ErrInvalidStatus)
	// ErrNothingToRepeat indicates the customer has no earlier order to copy lines from.
	ErrNothingToRepeat = errors.New("customer has no previous order")

	errStaleSelection = errors.New("stale product selection")
)

const (
	idempotencyModule  = "sales.order.confirm"
	defaultLockTTL     = 2 * time.Minute
	interruptedMessage = "Previous submission was interrupted, review the order and save again"
)

type DraftStore interface {
	Get(ctx context.Context, orderID int64) (drafts.Draft, error)
	Save(ctx context.Context, d drafts.Draft) (drafts.Draft, error)
	Update(ctx context.Context, orderID int64, fn func(*drafts.Draft) error) (drafts.Draft, error)
	Delete(ctx context.Context, orderID int64) error
	Lock(ctx context.Context, orderID int64, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, orderID int64, token string) error
}

type ProductResolver interface {
	Resolve(ctx context.Context, productID int64, priceTableID *int64) (catalog.Resolved, error)
}

type FiscalCalculator interface {
	Recalculate(ctx context.Context, orderID int64) (fiscal.Totals, error)
}

type IdempotencyChecker interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

type ConfirmationEnqueuer interface {
	EnqueueOrderConfirmed(ctx context.Context, payload jobs.OrderConfirmedPayload) error
}

type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Metrics interface {
	StaleLookup()
	Submission(mode, outcome string)
	Mutation(op string, err error)
}

// ServiceDeps collects the collaborators of the order editor.
type ServiceDeps struct {
	Repo        Repository
	Customers   customers.Repository
	Catalog     ProductResolver
	Drafts      DraftStore
	Fiscal      FiscalCalculator
	Idempotency IdempotencyChecker
	Jobs        ConfirmationEnqueuer
	Audit       AuditRecorder
	Metrics     Metrics
	Logger      *slog.Logger
	LockTTL     time.Duration
}

type Service struct {
	repo      Repository
	customers customers.Repository
	catalog   ProductResolver
	drafts    DraftStore
	fiscal    FiscalCalculator
	idem      IdempotencyChecker
	jobs      ConfirmationEnqueuer
	audit     AuditRecorder
	metrics   Metrics
	logger    *slog.Logger
	lockTTL   time.Duration
	now       func() time.Time
}

func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lockTTL := deps.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Service{
		repo:      deps.Repo,
		customers: deps.Customers,
		catalog:   deps.Catalog,
		drafts:    deps.Drafts,
		fiscal:    deps.Fiscal,
		idem:      deps.Idempotency,
		jobs:      deps.Jobs,
		audit:     deps.Audit,
		metrics:   metrics,
		logger:    logger,
		lockTTL:   lockTTL,
		now:       time.Now,
	}
}

// Create stores a new DRAFT order header and opens a working copy for it.
func (s *Service) Create(ctx context.Context, req CreateSalesOrderRequest, createdBy int64) (drafts.Draft, error) {
	customer, err := s.customers.Get(ctx, req.CustomerID)
	if err != nil {
		return drafts.Draft{}, fmt.Errorf("verify customer: %w", err)
	}
	if !customer.IsActive {
		return drafts.Draft{}, customers.ErrInactive
	}
	if customer.CompanyID != req.CompanyID {
		return drafts.Draft{}, fmt.Errorf("verify customer: %w", customers.ErrNotFound)
	}

	priceTableID := req.PriceTableID
	if priceTableID == nil {
		priceTableID = customer.PriceTableID
	}
	currency := req.Currency
	if currency == "" {
		currency = customer.Currency
	}
	if currency == "" {
		return drafts.Draft{}, fmt.Errorf("%w: currency required", pricing.ErrValidation)
	}

	docNumber, err := s.repo.GenerateNumber(ctx, req.CompanyID, req.OrderDate)
	if err != nil {
		return drafts.Draft{}, fmt.Errorf("generate doc number: %w", err)
	}

	order := SalesOrder{
		DocNumber:    docNumber,
		CompanyID:    req.CompanyID,
		CustomerID:   req.CustomerID,
		PriceTableID: priceTableID,
		OrderDate:    req.OrderDate,
		Status:       SalesOrderStatusDraft,
		Currency:     currency,
		Notes:        req.Notes,
		CreatedBy:    createdBy,
	}
	id, err := s.repo.Create(ctx, order)
	if err != nil {
		return drafts.Draft{}, fmt.Errorf("create order: %w", err)
	}
	order.ID = id

	s.logger.Info("sales order created", slog.Int64("order_id", id), slog.String("doc_number", docNumber))
	return s.drafts.Save(ctx, draftFromOrder(order))
}

// Get returns the persisted order.
func (s *Service) Get(ctx context.Context, id int64) (*SalesOrder, error) {
	return s.repo.Get(ctx, id)
}

// OpenDraft returns the working copy of an order, loading it from the database when none exists.
func (s *Service) OpenDraft(ctx context.Context, id int64) (drafts.Draft, error) {
	d, err := s.drafts.Get(ctx, id)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, drafts.ErrNotFound) {
		return drafts.Draft{}, err
	}
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return drafts.Draft{}, fmt.Errorf("get order: %w", err)
	}
	return s.drafts.Save(ctx, draftFromOrder(*order))
}

// DiscardDraft drops unsaved edits; the next OpenDraft reloads the persisted order. A draft
// held by a running submission cannot be discarded.
func (s *Service) DiscardDraft(ctx context.Context, id int64) error {
	if _, err := s.drafts.Get(ctx, id); err != nil {
		if errors.Is(err, drafts.ErrNotFound) {
			return nil
		}
		return err
	}
	token, err := s.drafts.Lock(ctx, id, s.lockTTL)
	if errors.Is(err, drafts.ErrLocked) {
		return ErrNotEditable
	}
	if err != nil {
		return err
	}
	defer s.unlock(ctx, id, token)
	return s.drafts.Delete(ctx, id)
}

// SelectProduct starts a product lookup for the line being entered. A lookup that finishes
// after a newer selection was made is discarded.
func (s *Service) SelectProduct(ctx context.Context, id, productID int64) (drafts.Draft, error) {
	if _, err := s.openEditable(ctx, id); err != nil {
		return drafts.Draft{}, err
	}

	var (
		ticket  pricing.Ticket
		tableID *int64
	)
	_, err := s.drafts.Update(ctx, id, func(d *drafts.Draft) error {
		if !State(d.State).Editable() {
			return ErrNotEditable
		}
		var gen pricing.Generation
		gen.Restore(d.Selection.Generation)
		ticket = gen.Next()
		d.Selection = drafts.Selection{Generation: ticket, ProductID: productID}
		tableID = d.PriceTableID
		return nil
	})
	if err != nil {
		return drafts.Draft{}, err
	}

	resolved, lookupErr := s.catalog.Resolve(ctx, productID, tableID)
	result := pricing.Stamped[catalog.Resolved]{Ticket: ticket, Value: resolved, Err: lookupErr}

	d, err := s.drafts.Update(ctx, id, func(d *drafts.Draft) error {
		var gen pricing.Generation
		gen.Restore(d.Selection.Generation)
		applied := gen.Apply(result.Ticket, func() {
			d.Selection.Ready = true
			if result.Err != nil {
				d.Selection.Error = result.Err.Error()
				return
			}
			d.Selection.Resolved = &result.Value
		})
		if !applied {
			return errStaleSelection
		}
		return nil
	})
	if errors.Is(err, errStaleSelection) {
		s.metrics.StaleLookup()
		s.logger.Debug("discarded stale product lookup",
			slog.Int64("order_id", id), slog.Int64("product_id", productID), slog.Uint64("ticket", uint64(ticket)))
		return s.drafts.Get(ctx, id)
	}
	if err != nil {
		return drafts.Draft{}, err
	}
	return d, lookupErr
}

// AddLine prices the product into a new line. The current selection is used when it matches
// the product; otherwise the product is resolved now.
func (s *Service) AddLine(ctx context.Context, id int64, req AddLineRequest) (drafts.Draft, error) {
	current, err := s.OpenDraft(ctx, id)
	if err != nil {
		return drafts.Draft{}, err
	}
	resolved, err := s.resolveForLine(ctx, current, req.ProductID)
	if err != nil {
		return drafts.Draft{}, err
	}

	basePrice := resolved.BasePrice
	if req.UnitPrice != nil {
		basePrice = *req.UnitPrice
	}
	packaging := packagingFor(resolved.Product, req.PackagingID)

	return s.mutate(ctx, id, "add_line", func(d *drafts.Draft) error {
		if _, err := d.Order.AddLine(resolved.Product, req.Quantity, packaging, basePrice); err != nil {
			return err
		}
		d.Selection = drafts.Selection{Generation: d.Selection.Generation}
		return nil
	})
}

// ChangePackaging switches a line to another packaging of its product, or to the base unit.
func (s *Service) ChangePackaging(ctx context.Context, id int64, lineID uuid.UUID, packagingID *int64) (drafts.Draft, error) {
	current, err := s.OpenDraft(ctx, id)
	if err != nil {
		return drafts.Draft{}, err
	}
	line, ok := current.Order.Line(lineID)
	if !ok {
		return drafts.Draft{}, pricing.ErrLineNotFound
	}
	resolved, err := s.catalog.Resolve(ctx, line.ProductID, current.PriceTableID)
	if err != nil {
		return drafts.Draft{}, fmt.Errorf("resolve product %d: %w", line.ProductID, err)
	}
	packaging := packagingFor(resolved.Product, packagingID)

	return s.mutate(ctx, id, "change_packaging", func(d *drafts.Draft) error {
		_, err := d.Order.ChangePackaging(lineID, resolved.Product, packaging)
		return err
	})
}

// UpdateLine edits quantity, unit price or discount of a line.
func (s *Service) UpdateLine(ctx context.Context, id int64, lineID uuid.UUID, req UpdateLineRequest) (drafts.Draft, error) {
	return s.mutate(ctx, id, "update_line", func(d *drafts.Draft) error {
		_, err := d.Order.UpdateLineField(lineID, req.field(), req.Value)
		return err
	})
}

// RemoveLine deletes a line; persisted lines are deleted on the next save.
func (s *Service) RemoveLine(ctx context.Context, id int64, lineID uuid.UUID) (drafts.Draft, error) {
	return s.mutate(ctx, id, "remove_line", func(d *drafts.Draft) error {
		if err := d.Order.RemoveLine(lineID); err != nil {
			return err
		}
		d.MarkRemoved(lineID)
		return nil
	})
}

// UpdateTotals sets the order-level freight and discount.
func (s *Service) UpdateTotals(ctx context.Context, id int64, req UpdateTotalsRequest) (drafts.Draft, error) {
	return s.mutate(ctx, id, "update_totals", func(d *drafts.Draft) error {
		next := d.Order
		if req.FreightAmount != nil {
			if err := next.SetFreight(*req.FreightAmount); err != nil {
				return err
			}
		}
		if req.DiscountAmount != nil {
			if err := next.SetDiscount(*req.DiscountAmount); err != nil {
				return err
			}
		}
		d.Order = next
		return nil
	})
}

// RepeatLastOrder appends the lines of the customer's previous order.
func (s *Service) RepeatLastOrder(ctx context.Context, id int64) (drafts.Draft, error) {
	current, err := s.OpenDraft(ctx, id)
	if err != nil {
		return drafts.Draft{}, err
	}
	last, err := s.repo.LastForCustomer(ctx, current.CustomerID, id)
	if errors.Is(err, ErrNotFound) || (err == nil && len(last.Lines) == 0) {
		return drafts.Draft{}, ErrNothingToRepeat
	}
	if err != nil {
		return drafts.Draft{}, fmt.Errorf("load last order: %w", err)
	}
	previous := make([]pricing.HistoricLine, 0, len(last.Lines))
	for _, l := range last.Lines {
		previous = append(previous, l.toHistoric())
	}

	return s.mutate(ctx, id, "repeat_last_order", func(d *drafts.Draft) error {
		_, err := d.Order.CopyLines(previous)
		return err
	})
}

func (s *Service) mutate(ctx context.Context, id int64, op string, fn func(*drafts.Draft) error) (drafts.Draft, error) {
	if _, err := s.openEditable(ctx, id); err != nil {
		return drafts.Draft{}, err
	}
	d, err := s.drafts.Update(ctx, id, func(d *drafts.Draft) error {
		if !State(d.State).Editable() {
			return ErrNotEditable
		}
		if err := fn(d); err != nil {
			return err
		}
		d.Unsaved = true
		d.Fiscal = nil
		return nil
	})
	s.metrics.Mutation(op, err)
	return d, err
}

// openEditable opens the draft and resets it when a submission died while owning it.
func (s *Service) openEditable(ctx context.Context, id int64) (drafts.Draft, error) {
	d, err := s.OpenDraft(ctx, id)
	if err != nil || !State(d.State).InProgress() {
		return d, err
	}
	token, err := s.drafts.Lock(ctx, id, s.lockTTL)
	if errors.Is(err, drafts.ErrLocked) {
		return drafts.Draft{}, ErrNotEditable
	}
	if err != nil {
		return drafts.Draft{}, err
	}
	defer s.unlock(ctx, id, token)
	return s.drafts.Update(ctx, id, func(d *drafts.Draft) error {
		s.resetInterrupted(id, d)
		return nil
	})
}

// resetInterrupted moves a draft left in progress through FAILED back to DRAFT. The caller
// must hold the order lock, which proves no live submission owns the draft.
func (s *Service) resetInterrupted(id int64, d *drafts.Draft) {
	from := State(d.State)
	if !from.InProgress() {
		return
	}
	if err := NewWorkflow(from, nil).Fail(); err != nil {
		return
	}
	s.logger.Warn("recovered interrupted submission", slog.Int64("order_id", id), slog.String("state", string(from)))
	d.State = string(StateDraft)
	d.Unsaved = true
	d.LastError = interruptedMessage
}

func (s *Service) unlock(ctx context.Context, id int64, token string) {
	if err := s.drafts.Unlock(context.WithoutCancel(ctx), id, token); err != nil {
		s.logger.Warn("release order lock", slog.Int64("order_id", id), slog.Any("error", err))
	}
}

func (s *Service) resolveForLine(ctx context.Context, d drafts.Draft, productID int64) (catalog.Resolved, error) {
	sel := d.Selection
	if sel.Ready && sel.Resolved != nil && sel.Resolved.Product.ID == productID {
		return *sel.Resolved, nil
	}
	resolved, err := s.catalog.Resolve(ctx, productID, d.PriceTableID)
	if err != nil {
		return catalog.Resolved{}, fmt.Errorf("resolve product %d: %w", productID, err)
	}
	return resolved, nil
}

// packagingFor returns the product packaging with the given id. An id the product does not
// own yields a bare packaging that the pricing core rejects as foreign.
func packagingFor(product pricing.Product, id *int64) *pricing.Packaging {
	if id == nil {
		return nil
	}
	if pkg, ok := product.Packaging(*id); ok {
		return &pkg
	}
	return &pricing.Packaging{ID: *id, QtyInBase: decimal.NewFromInt(1)}
}

func draftFromOrder(o SalesOrder) drafts.Draft {
	state := StateDraft
	if o.Status == SalesOrderStatusConfirmed {
		state = StateConfirmed
	}
	d := drafts.Draft{
		OrderID:      o.ID,
		DocNumber:    o.DocNumber,
		CompanyID:    o.CompanyID,
		CustomerID:   o.CustomerID,
		PriceTableID: o.PriceTableID,
		Currency:     o.Currency,
		Order:        o.PricingOrder(),
		State:        string(state),
	}
	if !o.FiscalTotal.IsZero() || !o.TaxAmount.IsZero() {
		d.Fiscal = &fiscal.Totals{
			Subtotal:    o.Subtotal,
			TaxAmount:   o.TaxAmount,
			STAmount:    o.STAmount,
			TotalAmount: o.FiscalTotal,
		}
	}
	return d
}

type noopMetrics struct{}

func (noopMetrics) StaleLookup() {}

func (noopMetrics) Submission(string, string) {}

func (noopMetrics) Mutation(string, error) {}
