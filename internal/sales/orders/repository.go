package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-orders/internal/fiscal"
	"github.com/odyssey-erp/odyssey-orders/internal/platform/db"
)

var (
	ErrNotFound = errors.New("record not found")
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*SalesOrder, error)
	LastForCustomer(ctx context.Context, customerID, excludeID int64) (*SalesOrder, error)
	Create(ctx context.Context, order SalesOrder) (int64, error)
	UpsertLines(ctx context.Context, orderID int64, lines []SalesOrderLine) error
	DeleteLines(ctx context.Context, orderID int64, lineUIDs []uuid.UUID) error
	UpdateTotals(ctx context.Context, id int64, totals HeaderTotals) error
	ApplyFiscalTotals(ctx context.Context, id int64, totals fiscal.Totals) error
	UpdateStatus(ctx context.Context, id int64, status SalesOrderStatus, userID int64) error
	GenerateNumber(ctx context.Context, companyID int64, date time.Time) (string, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Pool is the connection pool the repository runs on.
type Pool interface {
	dbtx
	db.TxBeginner
}

type repository struct {
	db   dbtx
	pool Pool
	now  func() time.Time
}

func NewRepository(pool Pool) Repository {
	return &repository{
		db:   pool,
		pool: pool,
		now:  time.Now,
	}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		repoTx := &repository{
			db:   tx,
			pool: r.pool,
			now:  r.now,
		}
		return fn(ctx, repoTx)
	})
}

const getOrderSQL = `SELECT id, doc_number, company_id, customer_id, price_table_id, order_date, status, currency,
       freight_amount::text, discount_amount::text, subtotal::text, total_amount::text,
       total_weight_kg::text, total_gross_weight_kg::text,
       tax_amount::text, st_amount::text, fiscal_total::text,
       notes, created_by, confirmed_by, confirmed_at, created_at, updated_at
FROM sales_orders
WHERE id = $1`

const getLinesSQL = `SELECT id, line_uid::text, sales_order_id, product_id, description,
       quantity::text, packaging_id, packaging_factor::text, unit_price::text, discount_amount::text,
       line_total::text, qty_base::text, unit_weight_kg::text, gross_weight_kg::text, line_order
FROM sales_order_lines
WHERE sales_order_id = $1
ORDER BY line_order, id`

func (r *repository) Get(ctx context.Context, id int64) (*SalesOrder, error) {
	var (
		o   SalesOrder
		raw [9]string
	)
	err := r.db.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.DocNumber, &o.CompanyID, &o.CustomerID, &o.PriceTableID, &o.OrderDate, &o.Status, &o.Currency,
		&raw[0], &raw[1], &raw[2], &raw[3], &raw[4], &raw[5], &raw[6], &raw[7], &raw[8],
		&o.Notes, &o.CreatedBy, &o.ConfirmedBy, &o.ConfirmedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get sales order %d: %w", id, err)
	}
	if err := parseDecimals(raw[:],
		&o.FreightAmount, &o.DiscountAmount, &o.Subtotal, &o.TotalAmount,
		&o.TotalWeightKg, &o.TotalGrossWeightKg,
		&o.TaxAmount, &o.STAmount, &o.FiscalTotal,
	); err != nil {
		return nil, fmt.Errorf("sales order %d: %w", id, err)
	}

	lines, err := r.lines(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

func (r *repository) lines(ctx context.Context, orderID int64) ([]SalesOrderLine, error) {
	rows, err := r.db.Query(ctx, getLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("list sales order lines: %w", err)
	}
	defer rows.Close()

	lines := []SalesOrderLine{}
	for rows.Next() {
		var (
			l   SalesOrderLine
			uid string
			raw [8]string
		)
		if err := rows.Scan(
			&l.ID, &uid, &l.SalesOrderID, &l.ProductID, &l.Description,
			&raw[0], &l.PackagingID, &raw[1], &raw[2], &raw[3], &raw[4], &raw[5], &raw[6], &raw[7],
			&l.LineOrder,
		); err != nil {
			return nil, err
		}
		if l.LineUID, err = uuid.Parse(uid); err != nil {
			return nil, fmt.Errorf("sales order line %d uid: %w", l.ID, err)
		}
		if err := parseDecimals(raw[:],
			&l.Quantity, &l.PackagingFactor, &l.UnitPrice, &l.DiscountAmount,
			&l.LineTotal, &l.QtyBase, &l.UnitWeightKg, &l.GrossWeightKg,
		); err != nil {
			return nil, fmt.Errorf("sales order line %d: %w", l.ID, err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

const lastForCustomerSQL = `SELECT id FROM sales_orders
WHERE customer_id = $1 AND id <> $2 AND status <> 'CANCELLED'
ORDER BY order_date DESC, id DESC
LIMIT 1`

func (r *repository) LastForCustomer(ctx context.Context, customerID, excludeID int64) (*SalesOrder, error) {
	var id int64
	if err := r.db.QueryRow(ctx, lastForCustomerSQL, customerID, excludeID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("last order for customer %d: %w", customerID, err)
	}
	return r.Get(ctx, id)
}

const createOrderSQL = `INSERT INTO sales_orders (doc_number, company_id, customer_id, price_table_id, order_date, status,
    currency, freight_amount, discount_amount, subtotal, total_amount, total_weight_kg, total_gross_weight_kg,
    notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, 0, 0, 0, 0, $8, $9)
RETURNING id`

func (r *repository) Create(ctx context.Context, o SalesOrder) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, createOrderSQL,
		o.DocNumber, o.CompanyID, o.CustomerID, o.PriceTableID, o.OrderDate, string(o.Status),
		o.Currency, o.Notes, o.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert sales order: %w", err)
	}
	return id, nil
}

const upsertLineSQL = `INSERT INTO sales_order_lines (sales_order_id, line_uid, product_id, description, quantity,
    packaging_id, packaging_factor, unit_price, discount_amount, line_total, qty_base, unit_weight_kg,
    gross_weight_kg, line_order)
VALUES ($1, $2::uuid, $3, $4, $5::numeric, $6, $7::numeric, $8::numeric, $9::numeric, $10::numeric,
    $11::numeric, $12::numeric, $13::numeric, $14)
ON CONFLICT (sales_order_id, line_uid) DO UPDATE SET
    quantity = EXCLUDED.quantity,
    packaging_id = EXCLUDED.packaging_id,
    packaging_factor = EXCLUDED.packaging_factor,
    unit_price = EXCLUDED.unit_price,
    discount_amount = EXCLUDED.discount_amount,
    line_total = EXCLUDED.line_total,
    qty_base = EXCLUDED.qty_base,
    unit_weight_kg = EXCLUDED.unit_weight_kg,
    gross_weight_kg = EXCLUDED.gross_weight_kg,
    line_order = EXCLUDED.line_order,
    updated_at = NOW()`

func (r *repository) UpsertLines(ctx context.Context, orderID int64, lines []SalesOrderLine) error {
	for _, l := range lines {
		_, err := r.db.Exec(ctx, upsertLineSQL,
			orderID, l.LineUID.String(), l.ProductID, l.Description, l.Quantity.String(),
			l.PackagingID, l.PackagingFactor.String(), l.UnitPrice.String(), l.DiscountAmount.String(),
			l.LineTotal.String(), l.QtyBase.String(), l.UnitWeightKg.String(), l.GrossWeightKg.String(),
			l.LineOrder,
		)
		if err != nil {
			return fmt.Errorf("upsert sales order line %s: %w", l.LineUID, err)
		}
	}
	return nil
}

func (r *repository) DeleteLines(ctx context.Context, orderID int64, lineUIDs []uuid.UUID) error {
	if len(lineUIDs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(lineUIDs))
	for _, id := range lineUIDs {
		ids = append(ids, id.String())
	}
	_, err := r.db.Exec(ctx, `DELETE FROM sales_order_lines WHERE sales_order_id = $1 AND line_uid = ANY($2::uuid[])`, orderID, ids)
	if err != nil {
		return fmt.Errorf("delete sales order lines: %w", err)
	}
	return nil
}

const updateTotalsSQL = `UPDATE sales_orders SET
    freight_amount = $2::numeric, discount_amount = $3::numeric, subtotal = $4::numeric,
    total_amount = $5::numeric, total_weight_kg = $6::numeric, total_gross_weight_kg = $7::numeric,
    updated_at = NOW()
WHERE id = $1`

func (r *repository) UpdateTotals(ctx context.Context, id int64, t HeaderTotals) error {
	tag, err := r.db.Exec(ctx, updateTotalsSQL, id,
		t.FreightAmount.String(), t.DiscountAmount.String(), t.Subtotal.String(),
		t.TotalAmount.String(), t.TotalWeightKg.String(), t.TotalGrossWeightKg.String(),
	)
	if err != nil {
		return fmt.Errorf("update sales order totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ApplyFiscalTotals(ctx context.Context, id int64, t fiscal.Totals) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sales_orders SET tax_amount = $2::numeric, st_amount = $3::numeric, fiscal_total = $4::numeric, updated_at = NOW() WHERE id = $1`,
		id, t.TaxAmount.String(), t.STAmount.String(), t.TotalAmount.String(),
	)
	if err != nil {
		return fmt.Errorf("apply fiscal totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status SalesOrderStatus, userID int64) error {
	var (
		confirmedBy *int64
		confirmedAt *time.Time
	)
	if status == SalesOrderStatusConfirmed {
		now := r.now()
		confirmedBy = &userID
		confirmedAt = &now
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE sales_orders SET status = $2, confirmed_by = COALESCE($3, confirmed_by), confirmed_at = COALESCE($4, confirmed_at), updated_at = NOW() WHERE id = $1`,
		id, string(status), confirmedBy, confirmedAt,
	)
	if err != nil {
		return fmt.Errorf("update sales order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) GenerateNumber(ctx context.Context, companyID int64, date time.Time) (string, error) {
	// SO-{YY}{MM}-{SEQ}
	var count int64
	err := r.db.QueryRow(ctx, "SELECT count(*) FROM sales_orders WHERE company_id = $1", companyID).Scan(&count)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SO-%s-%04d", date.Format("0601"), count+1), nil
}

func parseDecimals(raw []string, dst ...*decimal.Decimal) error {
	for i, d := range dst {
		v, err := decimal.NewFromString(raw[i])
		if err != nil {
			return fmt.Errorf("parse numeric %q: %w", raw[i], err)
		}
		*d = v
	}
	return nil
}
