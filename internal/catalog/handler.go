package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-orders/internal/platform/httpx"
)

// Resolver is the lookup the handler depends on.
type Resolver interface {
	Resolve(ctx context.Context, productID int64, priceTableID *int64) (Resolved, error)
}

// Handler exposes catalog lookups over HTTP.
type Handler struct {
	logger   *slog.Logger
	resolver Resolver
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, resolver Resolver) *Handler {
	return &Handler{logger: logger, resolver: resolver}
}

// MountRoutes attaches catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products/{id}", h.getProduct)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be a positive integer")
		return
	}
	var tableID *int64
	if raw := r.URL.Query().Get("price_table_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid price table", "price_table_id must be an integer")
			return
		}
		tableID = &v
	}

	resolved, err := h.resolver.Resolve(r.Context(), id, tableID)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, resolved)
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrNotFound, err))
	case errors.Is(err, ErrInvalidProduct):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrUnprocessable, err))
	default:
		h.logger.Error("resolve product", slog.Int64("product_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
