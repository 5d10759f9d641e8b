package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createClinic = `-- name: CreateClinic :one
INSERT INTO clinics (name, address, phone, email)
VALUES ($1, $2, $3, $4)
RETURNING id, name, address, phone, email, is_active, created_at, updated_at
`

type CreateClinicParams struct {
	Name    string      `json:"name"`
	Address pgtype.Text `json:"address"`
	Phone   pgtype.Text `json:"phone"`
	Email   pgtype.Text `json:"email"`
}

func (q *Queries) CreateClinic(ctx context.Context, arg CreateClinicParams) (Clinic, error) {
	row := q.db.QueryRow(ctx, createClinic,
		arg.Name,
		arg.Address,
		arg.Phone,
		arg.Email,
	)
	var i Clinic
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Address,
		&i.Phone,
		&i.Email,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getClinic = `-- name: GetClinic :one
SELECT id, name, address, phone, email, is_active, created_at, updated_at FROM clinics
WHERE id = $1
`

func (q *Queries) GetClinic(ctx context.Context, id uuid.UUID) (Clinic, error) {
	row := q.db.QueryRow(ctx, getClinic, id)
	var i Clinic
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Address,
		&i.Phone,
		&i.Email,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listClinics = `-- name: ListClinics :many
SELECT id, name, address, phone, email, is_active, created_at, updated_at FROM clinics
ORDER BY name, id
`

func (q *Queries) ListClinics(ctx context.Context) ([]Clinic, error) {
	rows, err := q.db.Query(ctx, listClinics)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Clinic{}
	for rows.Next() {
		var i Clinic
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Address,
			&i.Phone,
			&i.Email,
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

const updateClinic = `-- name: UpdateClinic :one
UPDATE clinics SET
    name = COALESCE($2, name),
    address = COALESCE($3, address),
    phone = COALESCE($4, phone),
    email = COALESCE($5, email),
    is_active = COALESCE($6, is_active),
    updated_at = now()
WHERE id = $1
RETURNING id, name, address, phone, email, is_active, created_at, updated_at
`

type UpdateClinicParams struct {
	ID       uuid.UUID   `json:"id"`
	Name     pgtype.Text `json:"name"`
	Address  pgtype.Text `json:"address"`
	Phone    pgtype.Text `json:"phone"`
	Email    pgtype.Text `json:"email"`
	IsActive pgtype.Bool `json:"is_active"`
}

func (q *Queries) UpdateClinic(ctx context.Context, arg UpdateClinicParams) (Clinic, error) {
	row := q.db.QueryRow(ctx, updateClinic,
		arg.ID,
		arg.Name,
		arg.Address,
		arg.Phone,
		arg.Email,
		arg.IsActive,
	)
	var i Clinic
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Address,
		&i.Phone,
		&i.Email,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
