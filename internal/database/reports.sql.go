package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getClinicBalances = `-- name: GetClinicBalances :many
SELECT c.id AS clinic_id, c.name AS clinic_name,
       COUNT(o.id)::bigint AS order_count,
       COALESCE(SUM(o.total_amount) FILTER (WHERE o.status = 'pending'), 0)::numeric AS unpaid_amount,
       COALESCE(SUM(o.total_amount) FILTER (WHERE o.status = 'paid'), 0)::numeric AS paid_amount
FROM clinics c
LEFT JOIN orders o ON o.clinic_id = c.id AND o.created_at >= $1 AND o.created_at < $2
GROUP BY c.id, c.name
ORDER BY c.name, c.id
`

type GetClinicBalancesParams struct {
	CreatedAt   time.Time `json:"created_at"`
	CreatedAt_2 time.Time `json:"created_at_2"`
}

type GetClinicBalancesRow struct {
	ClinicID     uuid.UUID      `json:"clinic_id"`
	ClinicName   string         `json:"clinic_name"`
	OrderCount   int64          `json:"order_count"`
	UnpaidAmount pgtype.Numeric `json:"unpaid_amount"`
	PaidAmount   pgtype.Numeric `json:"paid_amount"`
}

func (q *Queries) GetClinicBalances(ctx context.Context, arg GetClinicBalancesParams) ([]GetClinicBalancesRow, error) {
	rows, err := q.db.Query(ctx, getClinicBalances, arg.CreatedAt, arg.CreatedAt_2)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetClinicBalancesRow{}
	for rows.Next() {
		var i GetClinicBalancesRow
		if err := rows.Scan(
			&i.ClinicID,
			&i.ClinicName,
			&i.OrderCount,
			&i.UnpaidAmount,
			&i.PaidAmount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getOrderSummary = `-- name: GetOrderSummary :one
SELECT COUNT(*)::bigint AS total_orders,
       COUNT(*) FILTER (WHERE status = 'pending')::bigint AS pending_orders,
       COALESCE(SUM(total_amount) FILTER (WHERE status = 'pending'), 0)::numeric AS pending_amount,
       COALESCE(SUM(total_amount) FILTER (WHERE status = 'paid'), 0)::numeric AS paid_amount
FROM orders
WHERE ($1::uuid IS NULL OR clinic_id = $1::uuid)
`

type GetOrderSummaryRow struct {
	TotalOrders   int64          `json:"total_orders"`
	PendingOrders int64          `json:"pending_orders"`
	PendingAmount pgtype.Numeric `json:"pending_amount"`
	PaidAmount    pgtype.Numeric `json:"paid_amount"`
}

func (q *Queries) GetOrderSummary(ctx context.Context, clinicID pgtype.UUID) (GetOrderSummaryRow, error) {
	row := q.db.QueryRow(ctx, getOrderSummary, clinicID)
	var i GetOrderSummaryRow
	err := row.Scan(
		&i.TotalOrders,
		&i.PendingOrders,
		&i.PendingAmount,
		&i.PaidAmount,
	)
	return i, err
}

const getProductSales = `-- name: GetProductSales :many
SELECT p.id AS product_id, p.name AS product_name, p.code AS product_code,
       SUM(oi.quantity)::bigint AS quantity_sold,
       SUM(oi.subtotal)::numeric AS total_revenue
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN products p ON p.id = oi.product_id
WHERE o.status <> 'cancelled'
  AND ($1::uuid IS NULL OR o.clinic_id = $1::uuid)
  AND o.created_at >= $2 AND o.created_at < $3
GROUP BY p.id, p.name, p.code
ORDER BY total_revenue DESC, p.name
LIMIT $4
`

type GetProductSalesParams struct {
	ClinicID    pgtype.UUID `json:"clinic_id"`
	CreatedAt   time.Time   `json:"created_at"`
	CreatedAt_2 time.Time   `json:"created_at_2"`
	Limit       int32       `json:"limit"`
}

type GetProductSalesRow struct {
	ProductID    uuid.UUID      `json:"product_id"`
	ProductName  string         `json:"product_name"`
	ProductCode  pgtype.Text    `json:"product_code"`
	QuantitySold int64          `json:"quantity_sold"`
	TotalRevenue pgtype.Numeric `json:"total_revenue"`
}

func (q *Queries) GetProductSales(ctx context.Context, arg GetProductSalesParams) ([]GetProductSalesRow, error) {
	rows, err := q.db.Query(ctx, getProductSales,
		arg.ClinicID,
		arg.CreatedAt,
		arg.CreatedAt_2,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetProductSalesRow{}
	for rows.Next() {
		var i GetProductSalesRow
		if err := rows.Scan(
			&i.ProductID,
			&i.ProductName,
			&i.ProductCode,
			&i.QuantitySold,
			&i.TotalRevenue,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
