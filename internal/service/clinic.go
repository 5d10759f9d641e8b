package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dentlab/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

// ClinicStore defines the DB methods needed to onboard clinics and their logins.
// Satisfied by *database.Queries (and its WithTx variant).
type ClinicStore interface {
	CreateClinic(ctx context.Context, arg database.CreateClinicParams) (database.Clinic, error)
	GetClinic(ctx context.Context, id uuid.UUID) (database.Clinic, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	GetClinicUser(ctx context.Context, clinicID pgtype.UUID) (database.User, error)
	UpdateUserCredentials(ctx context.Context, arg database.UpdateUserCredentialsParams) (database.User, error)
}

// NewClinicStore creates a ClinicStore from a DBTX (pool or tx).
type NewClinicStore func(db database.DBTX) ClinicStore

type CreateClinicRequest struct {
	Name    string
	Address string
	Phone   string
	Email   string

	// Optional login; both must be set to create one.
	Username string
	Password string
}

type ClinicService struct {
	pool     TxBeginner
	newStore NewClinicStore
	hashCost int
}

func NewClinicService(pool TxBeginner, newStore NewClinicStore) *ClinicService {
	return &ClinicService{pool: pool, newStore: newStore, hashCost: bcrypt.DefaultCost}
}

// CreateClinic stores the clinic and, when credentials are given, its login in one transaction.
func (s *ClinicService) CreateClinic(ctx context.Context, req CreateClinicRequest) (database.Clinic, *database.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return database.Clinic{}, nil, ErrClinicNameRequired
	}
	username := strings.TrimSpace(req.Username)
	if (username == "") != (req.Password == "") {
		return database.Clinic{}, nil, ErrCredentialsRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Clinic{}, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	clinic, err := store.CreateClinic(ctx, database.CreateClinicParams{
		Name:    name,
		Address: optionalText(strings.TrimSpace(req.Address)),
		Phone:   optionalText(strings.TrimSpace(req.Phone)),
		Email:   optionalText(strings.TrimSpace(req.Email)),
	})
	if err != nil {
		return database.Clinic{}, nil, fmt.Errorf("create clinic: %w", err)
	}

	var login *database.User
	if username != "" {
		user, err := s.createLogin(ctx, store, clinic.ID, username, req.Password)
		if err != nil {
			return database.Clinic{}, nil, err
		}
		login = &user
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Clinic{}, nil, fmt.Errorf("commit tx: %w", err)
	}
	return clinic, login, nil
}

// SetClinicLogin creates the clinic's login or changes its username and/or password.
func (s *ClinicService) SetClinicLogin(ctx context.Context, clinicID uuid.UUID, username, password string) (database.User, error) {
	username = strings.TrimSpace(username)
	if username == "" && password == "" {
		return database.User{}, ErrCredentialsRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.User{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetClinic(ctx, clinicID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.User{}, ErrClinicNotFound
		}
		return database.User{}, fmt.Errorf("get clinic: %w", err)
	}

	var user database.User
	existing, err := store.GetClinicUser(ctx, pgtype.UUID{Bytes: clinicID, Valid: true})
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if username == "" || password == "" {
			return database.User{}, ErrCredentialsRequired
		}
		if user, err = s.createLogin(ctx, store, clinicID, username, password); err != nil {
			return database.User{}, err
		}
	case err != nil:
		return database.User{}, fmt.Errorf("get clinic user: %w", err)
	default:
		params := database.UpdateUserCredentialsParams{ID: existing.ID, Username: optionalText(username)}
		if password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
			if err != nil {
				return database.User{}, fmt.Errorf("hash password: %w", err)
			}
			params.HashedPassword = pgtype.Text{String: string(hash), Valid: true}
		}
		if user, err = store.UpdateUserCredentials(ctx, params); err != nil {
			if isUniqueViolation(err, usernameConstraint) {
				return database.User{}, ErrUsernameTaken
			}
			return database.User{}, fmt.Errorf("update user credentials: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.User{}, fmt.Errorf("commit tx: %w", err)
	}
	return user, nil
}

func (s *ClinicService) createLogin(ctx context.Context, store ClinicStore, clinicID uuid.UUID, username, password string) (database.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return database.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := store.CreateUser(ctx, database.CreateUserParams{
		Username:       username,
		HashedPassword: string(hash),
		Role:           database.UserRoleClinic,
		ClinicID:       pgtype.UUID{Bytes: clinicID, Valid: true},
	})
	if err != nil {
		if isUniqueViolation(err, usernameConstraint) {
			return database.User{}, ErrUsernameTaken
		}
		return database.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
