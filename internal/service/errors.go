package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Order assembly validation errors, checked in this order.
var (
	ErrEmptyOrder      = errors.New("order must contain at least one item")
	ErrMissingPatient  = errors.New("patient name is required")
	ErrMissingDeadline = errors.New("deadline is required")
	ErrInvalidItem     = errors.New("item requires a valid product_id and quantity >= 1")
	ErrUnpricedProduct = errors.New("product has no price for this clinic")
)

// Lifecycle and access errors.
var (
	ErrAccessDenied      = errors.New("access denied")
	ErrOrderNotFound     = errors.New("order not found")
	ErrAlreadyPaid       = errors.New("order is already paid")
	ErrCannotCancelPaid  = errors.New("paid orders cannot be cancelled")
	ErrInvalidTransition = errors.New("order status does not allow this transition")

	// ErrOrderNumberConflict is transient: every attempt collided with a concurrent insert.
	ErrOrderNumberConflict = errors.New("could not allocate a unique order number, retry")
)

// Catalog errors.
var (
	ErrPriceNotFound   = errors.New("price not found")
	ErrPriceExists     = errors.New("price already exists for this clinic and product")
	ErrNegativePrice   = errors.New("price must be >= 0")
	ErrInvalidPrice    = errors.New("invalid price")
	ErrProductNotFound = errors.New("product not found")
	ErrClinicNotFound  = errors.New("clinic not found")
	ErrClinicRequired  = errors.New("clinic_id is required")
)

// Query errors.
var (
	ErrSearchTermRequired = errors.New("search term is required")
	ErrInvalidStatus      = errors.New("invalid status")
)

// Clinic administration errors.
var (
	ErrClinicNameRequired  = errors.New("clinic name is required")
	ErrCredentialsRequired = errors.New("username and password are required")
	ErrUsernameTaken       = errors.New("username already exists")
)

// UnpricedProductError names the product that blocked order creation.
type UnpricedProductError struct {
	ProductID uuid.UUID
}

func (e *UnpricedProductError) Error() string {
	return fmt.Sprintf("product %s has no price for this clinic", e.ProductID)
}

func (e *UnpricedProductError) Is(target error) bool {
	return target == ErrUnpricedProduct
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	orderNumberConstraint = "orders_order_number_key"
	priceConstraint       = "prices_clinic_id_product_id_key"
	usernameConstraint    = "users_username_key"
)

func pgErrorCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isUniqueViolation(err error, constraint string) bool {
	code, name := pgErrorCode(err)
	return code == pgUniqueViolation && name == constraint
}

func isForeignKeyViolation(err error) bool {
	code, _ := pgErrorCode(err)
	return code == pgForeignKeyViolation
}

// foreignKeyError maps a violated foreign key on a clinic_id or product_id
// column to the matching not-found error.
func foreignKeyError(err error) error {
	_, name := pgErrorCode(err)
	switch {
	case strings.Contains(name, "clinic_id"):
		return ErrClinicNotFound
	case strings.Contains(name, "product_id"):
		return ErrProductNotFound
	}
	return err
}
