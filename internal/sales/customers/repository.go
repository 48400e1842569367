package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound = errors.New("customer not found")
	ErrInactive = errors.New("customer is inactive")
)

type Repository interface {
	Get(ctx context.Context, id int64) (*Customer, error)
}

type querier interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db querier
}

func NewRepository(db querier) Repository {
	return &repository{db: db}
}

const getCustomerSQL = `SELECT id, code, name, company_id, price_table_id, COALESCE(currency, ''), is_active
FROM customers
WHERE id = $1`

func (r *repository) Get(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	err := r.db.QueryRow(ctx, getCustomerSQL, id).Scan(
		&c.ID, &c.Code, &c.Name, &c.CompanyID, &c.PriceTableID, &c.Currency, &c.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("customers: get %d: %w", id, err)
	}
	return &c, nil
}
