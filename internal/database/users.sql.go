package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createUser = `-- name: CreateUser :one
INSERT INTO users (username, hashed_password, role, clinic_id)
VALUES ($1, $2, $3, $4)
RETURNING id, username, hashed_password, role, clinic_id, created_at, updated_at
`

type CreateUserParams struct {
	Username       string      `json:"username"`
	HashedPassword string      `json:"hashed_password"`
	Role           UserRole    `json:"role"`
	ClinicID       pgtype.UUID `json:"clinic_id"`
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.Username,
		arg.HashedPassword,
		arg.Role,
		arg.ClinicID,
	)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.HashedPassword,
		&i.Role,
		&i.ClinicID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserByID = `-- name: GetUserByID :one
SELECT id, username, hashed_password, role, clinic_id, created_at, updated_at FROM users
WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUserByID, id)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.HashedPassword,
		&i.Role,
		&i.ClinicID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserByUsername = `-- name: GetUserByUsername :one
SELECT id, username, hashed_password, role, clinic_id, created_at, updated_at FROM users
WHERE username = $1
`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByUsername, username)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.HashedPassword,
		&i.Role,
		&i.ClinicID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getClinicUser = `-- name: GetClinicUser :one
SELECT id, username, hashed_password, role, clinic_id, created_at, updated_at FROM users
WHERE clinic_id = $1 AND role = 'clinic'
`

func (q *Queries) GetClinicUser(ctx context.Context, clinicID pgtype.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getClinicUser, clinicID)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.HashedPassword,
		&i.Role,
		&i.ClinicID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateUserCredentials = `-- name: UpdateUserCredentials :one
UPDATE users SET
    username = COALESCE($2, username),
    hashed_password = COALESCE($3, hashed_password),
    updated_at = now()
WHERE id = $1
RETURNING id, username, hashed_password, role, clinic_id, created_at, updated_at
`

type UpdateUserCredentialsParams struct {
	ID             uuid.UUID   `json:"id"`
	Username       pgtype.Text `json:"username"`
	HashedPassword pgtype.Text `json:"hashed_password"`
}

func (q *Queries) UpdateUserCredentials(ctx context.Context, arg UpdateUserCredentialsParams) (User, error) {
	row := q.db.QueryRow(ctx, updateUserCredentials, arg.ID, arg.Username, arg.HashedPassword)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.HashedPassword,
		&i.Role,
		&i.ClinicID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
