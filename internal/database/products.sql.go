package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (name, code, description)
VALUES ($1, $2, $3)
RETURNING id, name, code, description, is_active, created_at, updated_at
`

type CreateProductParams struct {
	Name        string      `json:"name"`
	Code        pgtype.Text `json:"code"`
	Description pgtype.Text `json:"description"`
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct, arg.Name, arg.Code, arg.Description)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Code,
		&i.Description,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listProducts = `-- name: ListProducts :many
SELECT id, name, code, description, is_active, created_at, updated_at FROM products
ORDER BY name, id
`

func (q *Queries) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Product{}
	for rows.Next() {
		var i Product
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Code,
			&i.Description,
			&i.IsActive,
			&i.CreatedAt,
			&i.UpdatedAt,
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

const listActiveProductsWithPrices = `-- name: ListActiveProductsWithPrices :many
SELECT p.id, p.name, p.code, p.description, p.is_active, p.created_at, p.updated_at,
       pr.id AS price_id, pr.price
FROM products p
LEFT JOIN prices pr ON pr.product_id = p.id AND pr.clinic_id = $1
WHERE p.is_active = true
ORDER BY p.name, p.id
`

type ListActiveProductsWithPricesRow struct {
	Product Product        `json:"product"`
	PriceID pgtype.UUID    `json:"price_id"`
	Price   pgtype.Numeric `json:"price"`
}

func (q *Queries) ListActiveProductsWithPrices(ctx context.Context, clinicID uuid.UUID) ([]ListActiveProductsWithPricesRow, error) {
	rows, err := q.db.Query(ctx, listActiveProductsWithPrices, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListActiveProductsWithPricesRow{}
	for rows.Next() {
		var i ListActiveProductsWithPricesRow
		if err := rows.Scan(
			&i.Product.ID,
			&i.Product.Name,
			&i.Product.Code,
			&i.Product.Description,
			&i.Product.IsActive,
			&i.Product.CreatedAt,
			&i.Product.UpdatedAt,
			&i.PriceID,
			&i.Price,
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

const updateProduct = `-- name: UpdateProduct :one
UPDATE products SET
    name = COALESCE($2, name),
    code = COALESCE($3, code),
    description = COALESCE($4, description),
    is_active = COALESCE($5, is_active),
    updated_at = now()
WHERE id = $1
RETURNING id, name, code, description, is_active, created_at, updated_at
`

type UpdateProductParams struct {
	ID          uuid.UUID   `json:"id"`
	Name        pgtype.Text `json:"name"`
	Code        pgtype.Text `json:"code"`
	Description pgtype.Text `json:"description"`
	IsActive    pgtype.Bool `json:"is_active"`
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, updateProduct,
		arg.ID,
		arg.Name,
		arg.Code,
		arg.Description,
		arg.IsActive,
	)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Code,
		&i.Description,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
