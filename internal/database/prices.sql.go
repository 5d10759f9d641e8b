package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createPrice = `-- name: CreatePrice :one
INSERT INTO prices (clinic_id, product_id, price)
VALUES ($1, $2, $3)
RETURNING id, clinic_id, product_id, price, created_at, updated_at
`

type CreatePriceParams struct {
	ClinicID  uuid.UUID      `json:"clinic_id"`
	ProductID uuid.UUID      `json:"product_id"`
	Price     pgtype.Numeric `json:"price"`
}

func (q *Queries) CreatePrice(ctx context.Context, arg CreatePriceParams) (Price, error) {
	row := q.db.QueryRow(ctx, createPrice, arg.ClinicID, arg.ProductID, arg.Price)
	var i Price
	err := row.Scan(
		&i.ID,
		&i.ClinicID,
		&i.ProductID,
		&i.Price,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deletePrice = `-- name: DeletePrice :one
DELETE FROM prices
WHERE id = $1
RETURNING id
`

func (q *Queries) DeletePrice(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deletePrice, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}

const getPriceForOrder = `-- name: GetPriceForOrder :one
SELECT price FROM prices
WHERE clinic_id = $1 AND product_id = $2
`

type GetPriceForOrderParams struct {
	ClinicID  uuid.UUID `json:"clinic_id"`
	ProductID uuid.UUID `json:"product_id"`
}

func (q *Queries) GetPriceForOrder(ctx context.Context, arg GetPriceForOrderParams) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, getPriceForOrder, arg.ClinicID, arg.ProductID)
	var price pgtype.Numeric
	err := row.Scan(&price)
	return price, err
}

const listPricesByClinic = `-- name: ListPricesByClinic :many
SELECT pr.id, pr.clinic_id, pr.product_id, pr.price, pr.created_at, pr.updated_at,
       p.name AS product_name, p.code AS product_code
FROM prices pr
JOIN products p ON p.id = pr.product_id
WHERE pr.clinic_id = $1
ORDER BY pr.price ASC, p.name
`

type ListPricesByClinicRow struct {
	Price       Price       `json:"price"`
	ProductName string      `json:"product_name"`
	ProductCode pgtype.Text `json:"product_code"`
}

func (q *Queries) ListPricesByClinic(ctx context.Context, clinicID uuid.UUID) ([]ListPricesByClinicRow, error) {
	rows, err := q.db.Query(ctx, listPricesByClinic, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListPricesByClinicRow{}
	for rows.Next() {
		var i ListPricesByClinicRow
		if err := rows.Scan(
			&i.Price.ID,
			&i.Price.ClinicID,
			&i.Price.ProductID,
			&i.Price.Price,
			&i.Price.CreatedAt,
			&i.Price.UpdatedAt,
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

const updatePrice = `-- name: UpdatePrice :one
UPDATE prices SET price = $2, updated_at = now()
WHERE id = $1
RETURNING id, clinic_id, product_id, price, created_at, updated_at
`

type UpdatePriceParams struct {
	ID    uuid.UUID      `json:"id"`
	Price pgtype.Numeric `json:"price"`
}

func (q *Queries) UpdatePrice(ctx context.Context, arg UpdatePriceParams) (Price, error) {
	row := q.db.QueryRow(ctx, updatePrice, arg.ID, arg.Price)
	var i Price
	err := row.Scan(
		&i.ID,
		&i.ClinicID,
		&i.ProductID,
		&i.Price,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertPrice = `-- name: UpsertPrice :one
INSERT INTO prices (clinic_id, product_id, price)
VALUES ($1, $2, $3)
ON CONFLICT (clinic_id, product_id)
DO UPDATE SET price = EXCLUDED.price, updated_at = now()
RETURNING id, clinic_id, product_id, price, created_at, updated_at
`

type UpsertPriceParams struct {
	ClinicID  uuid.UUID      `json:"clinic_id"`
	ProductID uuid.UUID      `json:"product_id"`
	Price     pgtype.Numeric `json:"price"`
}

func (q *Queries) UpsertPrice(ctx context.Context, arg UpsertPriceParams) (Price, error) {
	row := q.db.QueryRow(ctx, upsertPrice, arg.ClinicID, arg.ProductID, arg.Price)
	var i Price
	err := row.Scan(
		&i.ID,
		&i.ClinicID,
		&i.ProductID,
		&i.Price,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
