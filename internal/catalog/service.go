package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-orders/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-orders/internal/sales/pricing"
)

// ErrInvalidProduct indicates catalog data that cannot be priced into an order.
var ErrInvalidProduct = errors.New("invalid catalog product")

const lookupTimeout = 15 * time.Second

// Service resolves catalog records into pricing snapshots.
type Service struct {
	repo  Repository
	cache *cache.JSONCache
	group singleflight.Group
}

// NewService constructs the catalog service. cache may be nil.
func NewService(repo Repository, cache *cache.JSONCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Resolve loads the product, its packagings and its base-unit price for the price table.
func (s *Service) Resolve(ctx context.Context, productID int64, priceTableID *int64) (Resolved, error) {
	if productID <= 0 {
		return Resolved{}, fmt.Errorf("%w: product id required", ErrInvalidProduct)
	}
	key, err := s.cache.BuildKey(ctx, "catalog", "resolved", strconv.FormatInt(productID, 10), tableToken(priceTableID))
	if err != nil {
		return Resolved{}, err
	}

	// The shared lookup outlives the caller that started it; waiters stop on their own ctx.
	ch := s.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		var out Resolved
		err := s.cache.FetchJSON(loadCtx, key, &out, func(ctx context.Context) (any, error) {
			return s.load(ctx, productID, priceTableID)
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return Resolved{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Resolved{}, res.Err
		}
		return res.Val.(Resolved), nil
	}
}

// Invalidate drops every cached resolution.
func (s *Service) Invalidate(ctx context.Context) (int64, error) {
	return s.cache.Bump(ctx)
}

func (s *Service) load(ctx context.Context, productID int64, priceTableID *int64) (Resolved, error) {
	var (
		product    Product
		packagings []Packaging
		price      decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		product, err = s.repo.GetProduct(gctx, productID)
		return err
	})
	g.Go(func() error {
		var err error
		packagings, err = s.repo.ListPackagings(gctx, productID)
		return err
	})
	g.Go(func() error {
		var err error
		price, err = s.repo.GetPrice(gctx, productID, priceTableID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Resolved{}, err
	}
	if !product.IsActive {
		return Resolved{}, ErrNotFound
	}

	snapshot, err := toPricing(product, packagings)
	if err != nil {
		return Resolved{}, err
	}
	if price.IsNegative() {
		return Resolved{}, fmt.Errorf("%w: negative price for product %d", ErrInvalidProduct, productID)
	}
	return Resolved{Product: snapshot, BasePrice: price, PriceTableID: priceTableID}, nil
}

// toPricing validates catalog rows at the boundary before they reach the pricing core.
func toPricing(p Product, packagings []Packaging) (pricing.Product, error) {
	if p.ID <= 0 {
		return pricing.Product{}, fmt.Errorf("%w: missing id", ErrInvalidProduct)
	}
	if p.NetWeightKg.IsNegative() || p.GrossWeightKg.IsNegative() {
		return pricing.Product{}, fmt.Errorf("%w: negative weight on product %d", ErrInvalidProduct, p.ID)
	}
	out := pricing.Product{
		ID:                p.ID,
		Code:              p.Code,
		Name:              p.Name,
		BaseUOM:           p.UnitCode,
		NetWeightKgBase:   p.NetWeightKg,
		GrossWeightKgBase: p.GrossWeightKg,
		TaxClass:          p.TaxClass,
		Packagings:        make([]pricing.Packaging, 0, len(packagings)),
	}
	for _, pkg := range packagings {
		if pkg.ProductID != p.ID {
			return pricing.Product{}, fmt.Errorf("%w: packaging %d belongs to product %d", ErrInvalidProduct, pkg.ID, pkg.ProductID)
		}
		if !pkg.QtyInBase.GreaterThan(decimal.Zero) {
			return pricing.Product{}, fmt.Errorf("%w: packaging %d has non-positive factor", ErrInvalidProduct, pkg.ID)
		}
		if pkg.GrossWeightKg != nil && pkg.GrossWeightKg.IsNegative() {
			return pricing.Product{}, fmt.Errorf("%w: packaging %d has negative weight", ErrInvalidProduct, pkg.ID)
		}
		out.Packagings = append(out.Packagings, pricing.Packaging{
			ID:            pkg.ID,
			Label:         pkg.Label,
			QtyInBase:     pkg.QtyInBase,
			GrossWeightKg: pkg.GrossWeightKg,
		})
	}
	return out, nil
}

func tableToken(id *int64) string {
	if id == nil {
		return "list"
	}
	return strconv.FormatInt(*id, 10)
}
