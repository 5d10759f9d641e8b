package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const cancelOrder = `-- name: CancelOrder :one
UPDATE orders SET status = 'cancelled', updated_at = now()
WHERE id = $1 AND status = 'pending'
RETURNING id, order_number, clinic_id, patient_name, total_amount, deadline, status, payment_date, notes, created_at, updated_at
`

func (q *Queries) CancelOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, cancelOrder, id)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.ClinicID,
		&i.PatientName,
		&i.TotalAmount,
		&i.Deadline,
		&i.Status,
		&i.PaymentDate,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (order_number, clinic_id, patient_name, total_amount, deadline, notes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_number, clinic_id, patient_name, total_amount, deadline, status, payment_date, notes, created_at, updated_at
`

type CreateOrderParams struct {
	OrderNumber string         `json:"order_number"`
	ClinicID    uuid.UUID      `json:"clinic_id"`
	PatientName string         `json:"patient_name"`
	TotalAmount pgtype.Numeric `json:"total_amount"`
	Deadline    time.Time      `json:"deadline"`
	Notes       pgtype.Text    `json:"notes"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.ClinicID,
		arg.PatientName,
		arg.TotalAmount,
		arg.Deadline,
		arg.Notes,
	)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.ClinicID,
		&i.PatientName,
		&i.TotalAmount,
		&i.Deadline,
		&i.Status,
		&i.PaymentDate,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, position, product_id, quantity, unit_price, subtotal, color)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, position, product_id, quantity, unit_price, subtotal, color
`

type CreateOrderItemParams struct {
	OrderID   uuid.UUID      `json:"order_id"`
	Position  int32          `json:"position"`
	ProductID uuid.UUID      `json:"product_id"`
	Quantity  int32          `json:"quantity"`
	UnitPrice pgtype.Numeric `json:"unit_price"`
	Subtotal  pgtype.Numeric `json:"subtotal"`
	Color     pgtype.Text    `json:"color"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.Position,
		arg.ProductID,
		arg.Quantity,
		arg.UnitPrice,
		arg.Subtotal,
		arg.Color,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Position,
		&i.ProductID,
		&i.Quantity,
		&i.UnitPrice,
		&i.Subtotal,
		&i.Color,
	)
	return i, err
}

const getLastOrderNumber = `-- name: GetLastOrderNumber :one
SELECT order_number FROM orders
WHERE order_number LIKE $1::text || '%'
ORDER BY order_number DESC
LIMIT 1
`

// GetLastOrderNumber returns the highest order number starting with prefix.
func (q *Queries) GetLastOrderNumber(ctx context.Context, prefix string) (string, error) {
	row := q.db.QueryRow(ctx, getLastOrderNumber, prefix)
	var order_number string
	err := row.Scan(&order_number)
	return order_number, err
}

const getOrder = `-- name: GetOrder :one
SELECT id, order_number, clinic_id, patient_name, total_amount, deadline, status, payment_date, notes, created_at, updated_at FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.ClinicID,
		&i.PatientName,
		&i.TotalAmount,
		&i.Deadline,
		&i.Status,
		&i.PaymentDate,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getOrderWithClinic = `-- name: GetOrderWithClinic :one
SELECT o.id, o.order_number, o.clinic_id, o.patient_name, o.total_amount, o.deadline, o.status, o.payment_date, o.notes, o.created_at, o.updated_at,
       c.name AS clinic_name
FROM orders o
JOIN clinics c ON c.id = o.clinic_id
WHERE o.id = $1
`

type GetOrderWithClinicRow struct {
	Order      Order  `json:"order"`
	ClinicName string `json:"clinic_name"`
}

func (q *Queries) GetOrderWithClinic(ctx context.Context, id uuid.UUID) (GetOrderWithClinicRow, error) {
	row := q.db.QueryRow(ctx, getOrderWithClinic, id)
	var i GetOrderWithClinicRow
	err := row.Scan(
		&i.Order.ID,
		&i.Order.OrderNumber,
		&i.Order.ClinicID,
		&i.Order.PatientName,
		&i.Order.TotalAmount,
		&i.Order.Deadline,
		&i.Order.Status,
		&i.Order.PaymentDate,
		&i.Order.Notes,
		&i.Order.CreatedAt,
		&i.Order.UpdatedAt,
		&i.ClinicName,
	)
	return i, err
}

const listOrderItemsByOrders = `-- name: ListOrderItemsByOrders :many
SELECT oi.id, oi.order_id, oi.position, oi.product_id, oi.quantity, oi.unit_price, oi.subtotal, oi.color,
       p.name AS product_name, p.code AS product_code
FROM order_items oi
JOIN products p ON p.id = oi.product_id
WHERE oi.order_id = ANY($1::uuid[])
ORDER BY oi.order_id, oi.position
`

type ListOrderItemsByOrdersRow struct {
	OrderItem   OrderItem   `json:"order_item"`
	ProductName string      `json:"product_name"`
	ProductCode pgtype.Text `json:"product_code"`
}

func (q *Queries) ListOrderItemsByOrders(ctx context.Context, orderIds []uuid.UUID) ([]ListOrderItemsByOrdersRow, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrders, orderIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListOrderItemsByOrdersRow{}
	for rows.Next() {
		var i ListOrderItemsByOrdersRow
		if err := rows.Scan(
			&i.OrderItem.ID,
			&i.OrderItem.OrderID,
			&i.OrderItem.Position,
			&i.OrderItem.ProductID,
			&i.OrderItem.Quantity,
			&i.OrderItem.UnitPrice,
			&i.OrderItem.Subtotal,
			&i.OrderItem.Color,
			&i.ProductName,
			&i.ProductCode,
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

const listOrders = `-- name: ListOrders :many
SELECT o.id, o.order_number, o.clinic_id, o.patient_name, o.total_amount, o.deadline, o.status, o.payment_date, o.notes, o.created_at, o.updated_at,
       c.name AS clinic_name
FROM orders o
JOIN clinics c ON c.id = o.clinic_id
WHERE ($1::uuid IS NULL OR o.clinic_id = $1::uuid)
  AND ($2::order_status IS NULL OR o.status = $2::order_status)
  AND ($3::text IS NULL OR o.order_number ILIKE '%' || $3::text || '%')
  AND ($4::text IS NULL OR o.patient_name ILIKE '%' || $4::text || '%')
ORDER BY o.created_at DESC, o.order_number DESC
LIMIT $5 OFFSET $6
`

type ListOrdersParams struct {
	ClinicID    pgtype.UUID     `json:"clinic_id"`
	Status      NullOrderStatus `json:"status"`
	OrderNumber pgtype.Text     `json:"order_number"`
	PatientName pgtype.Text     `json:"patient_name"`
	Limit       int32           `json:"limit"`
	Offset      int32           `json:"offset"`
}

type ListOrdersRow struct {
	Order      Order  `json:"order"`
	ClinicName string `json:"clinic_name"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]ListOrdersRow, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.ClinicID,
		arg.Status,
		arg.OrderNumber,
		arg.PatientName,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListOrdersRow{}
	for rows.Next() {
		var i ListOrdersRow
		if err := rows.Scan(
			&i.Order.ID,
			&i.Order.OrderNumber,
			&i.Order.ClinicID,
			&i.Order.PatientName,
			&i.Order.TotalAmount,
			&i.Order.Deadline,
			&i.Order.Status,
			&i.Order.PaymentDate,
			&i.Order.Notes,
			&i.Order.CreatedAt,
			&i.Order.UpdatedAt,
			&i.ClinicName,
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

const markOrderPaid = `-- name: MarkOrderPaid :one
UPDATE orders SET status = 'paid', payment_date = now(), updated_at = now()
WHERE id = $1 AND status = 'pending'
RETURNING id, order_number, clinic_id, patient_name, total_amount, deadline, status, payment_date, notes, created_at, updated_at
`

func (q *Queries) MarkOrderPaid(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, markOrderPaid, id)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.ClinicID,
		&i.PatientName,
		&i.TotalAmount,
		&i.Deadline,
		&i.Status,
		&i.PaymentDate,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
