package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-orders/internal/catalog"
	"github.com/odyssey-erp/odyssey-orders/internal/fiscal"
	"github.com/odyssey-erp/odyssey-orders/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-orders/internal/sales/customers"
	"github.com/odyssey-erp/odyssey-orders/internal/sales/drafts"
	"github.com/odyssey-erp/odyssey-orders/internal/sales/pricing"
	"github.com/odyssey-erp/odyssey-orders/internal/shared"
)

// IdempotencyHeader carries the client key that makes a confirmation request repeatable.
const IdempotencyHeader = "Idempotency-Key"

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.Errorf(httpx.ErrUnauthorized, "missing caller identity"))
		return
	}
	var req CreateSalesOrderRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.Create(r.Context(), req, actor.UserID)
	if err != nil {
		h.fail(w, r, "create sales order", err)
		return
	}
	w.Header().Set("Location", "/sales/orders/"+strconv.FormatInt(d.OrderID, 10))
	httpx.JSON(w, http.StatusCreated, NewDraftView(d, r.Header.Get("Accept-Language")))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get sales order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) ShowDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	d, err := h.service.OpenDraft(r.Context(), id)
	h.respondDraft(w, r, "open draft", d, err)
}

func (h *Handler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	if err := h.service.DiscardDraft(r.Context(), id); err != nil {
		h.fail(w, r, "discard draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SelectProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req SelectProductRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.SelectProduct(r.Context(), id, req.ProductID)
	h.respondDraft(w, r, "select product", d, err)
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req AddLineRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.AddLine(r.Context(), id, req)
	h.respondDraft(w, r, "add line", d, err)
}

func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	id, lineID, ok := lineParams(w, r)
	if !ok {
		return
	}
	var req UpdateLineRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.UpdateLine(r.Context(), id, lineID, req)
	h.respondDraft(w, r, "update line", d, err)
}

func (h *Handler) ChangePackaging(w http.ResponseWriter, r *http.Request) {
	id, lineID, ok := lineParams(w, r)
	if !ok {
		return
	}
	var req ChangePackagingRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.ChangePackaging(r.Context(), id, lineID, req.PackagingID)
	h.respondDraft(w, r, "change packaging", d, err)
}

func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	id, lineID, ok := lineParams(w, r)
	if !ok {
		return
	}
	d, err := h.service.RemoveLine(r.Context(), id, lineID)
	h.respondDraft(w, r, "remove line", d, err)
}

func (h *Handler) UpdateTotals(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req UpdateTotalsRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.UpdateTotals(r.Context(), id, req)
	h.respondDraft(w, r, "update totals", d, err)
}

func (h *Handler) RepeatLastOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	d, err := h.service.RepeatLastOrder(r.Context(), id)
	h.respondDraft(w, r, "repeat last order", d, err)
}

func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	d, err := h.service.Save(r.Context(), id)
	h.respondDraft(w, r, "save order", d, err)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.Errorf(httpx.ErrUnauthorized, "missing caller identity"))
		return
	}
	d, err := h.service.Confirm(r.Context(), id, r.Header.Get(IdempotencyHeader), actor.UserID)
	h.respondDraft(w, r, "confirm order", d, err)
}

func (h *Handler) respondDraft(w http.ResponseWriter, r *http.Request, op string, d drafts.Draft, err error) {
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewDraftView(d, r.Header.Get("Accept-Language")))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	classified, known := classify(err)
	if known {
		h.logger.Debug(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	} else {
		h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, classified)
}

// classify tags domain errors with the HTTP kind RespondError renders.
func classify(err error) (error, bool) {
	switch {
	case errors.Is(err, pricing.ErrLineNotFound),
		errors.Is(err, ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, customers.ErrNotFound):
		return httpx.Wrap(httpx.ErrNotFound, err), true
	case errors.Is(err, pricing.ErrValidation),
		errors.Is(err, shared.ErrIdempotencyKeyMissing):
		return httpx.Wrap(httpx.ErrValidation, err), true
	case errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, drafts.ErrLocked),
		errors.Is(err, drafts.ErrConflict):
		return httpx.Wrap(httpx.ErrConflict, err), true
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return httpx.Wrap(httpx.ErrDuplicate, err), true
	case errors.Is(err, customers.ErrInactive),
		errors.Is(err, catalog.ErrInvalidProduct),
		errors.Is(err, fiscal.ErrRejected),
		errors.Is(err, ErrNothingToRepeat):
		return httpx.Wrap(httpx.ErrUnprocessable, err), true
	case errors.Is(err, fiscal.ErrUnavailable):
		return httpx.Wrap(httpx.ErrUnavailable, err), true
	default:
		return err, false
	}
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be a positive integer")
		return 0, false
	}
	return id, true
}

func lineParams(w http.ResponseWriter, r *http.Request) (int64, uuid.UUID, bool) {
	id, ok := orderID(w, r)
	if !ok {
		return 0, uuid.Nil, false
	}
	lineID, err := uuid.Parse(chi.URLParam(r, "lineID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid line", "line id must be a UUID")
		return 0, uuid.Nil, false
	}
	return id, lineID, true
}
