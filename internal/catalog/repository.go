package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the product does not exist or is inactive.
var ErrNotFound = errors.New("product not found")

// Repository reads catalog data.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListPackagings(ctx context.Context, productID int64) ([]Packaging, error)
	GetPrice(ctx context.Context, productID int64, priceTableID *int64) (decimal.Decimal, error)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db querier
}

// NewRepository builds a pgx backed catalog repository.
func NewRepository(db querier) Repository {
	return &repository{db: db}
}

const getProductSQL = `SELECT p.id, p.code, p.name, COALESCE(u.code, ''), p.net_weight_kg::text, p.gross_weight_kg::text,
       COALESCE(p.tax_class, ''), p.price::text, p.is_active
FROM products p
LEFT JOIN units u ON u.id = p.unit_id
WHERE p.id = $1`

func (r *repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var (
		p                   Product
		net, gross, listRaw string
	)
	err := r.db.QueryRow(ctx, getProductSQL, id).Scan(
		&p.ID, &p.Code, &p.Name, &p.UnitCode, &net, &gross, &p.TaxClass, &listRaw, &p.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("catalog: get product %d: %w", id, err)
	}
	if p.NetWeightKg, err = decimal.NewFromString(net); err != nil {
		return Product{}, fmt.Errorf("catalog: product %d net weight: %w", id, err)
	}
	if p.GrossWeightKg, err = decimal.NewFromString(gross); err != nil {
		return Product{}, fmt.Errorf("catalog: product %d gross weight: %w", id, err)
	}
	if p.ListPrice, err = decimal.NewFromString(listRaw); err != nil {
		return Product{}, fmt.Errorf("catalog: product %d price: %w", id, err)
	}
	return p, nil
}

const listPackagingsSQL = `SELECT id, product_id, label, qty_in_base::text, gross_weight_kg::text
FROM product_packagings
WHERE product_id = $1
ORDER BY qty_in_base, id`

func (r *repository) ListPackagings(ctx context.Context, productID int64) ([]Packaging, error) {
	rows, err := r.db.Query(ctx, listPackagingsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list packagings: %w", err)
	}
	defer rows.Close()

	var out []Packaging
	for rows.Next() {
		var (
			pkg   Packaging
			qty   string
			gross *string
		)
		if err := rows.Scan(&pkg.ID, &pkg.ProductID, &pkg.Label, &qty, &gross); err != nil {
			return nil, err
		}
		if pkg.QtyInBase, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("catalog: packaging %d factor: %w", pkg.ID, err)
		}
		if gross != nil {
			g, err := decimal.NewFromString(*gross)
			if err != nil {
				return nil, fmt.Errorf("catalog: packaging %d gross weight: %w", pkg.ID, err)
			}
			pkg.GrossWeightKg = &g
		}
		out = append(out, pkg)
	}
	return out, rows.Err()
}

const getPriceSQL = `SELECT COALESCE(
    (SELECT pti.price FROM price_table_items pti WHERE pti.price_table_id = $2 AND pti.product_id = p.id),
    p.price)::text
FROM products p
WHERE p.id = $1`

func (r *repository) GetPrice(ctx context.Context, productID int64, priceTableID *int64) (decimal.Decimal, error) {
	var raw string
	if err := r.db.QueryRow(ctx, getPriceSQL, productID, priceTableID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("catalog: get price: %w", err)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("catalog: parse price: %w", err)
	}
	return price, nil
}
