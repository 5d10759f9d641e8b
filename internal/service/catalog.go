package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dentlab/api/internal/database"
	"github.com/dentlab/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// PriceReader resolves one clinic's price for one product.
// Satisfied by *database.Queries and by OrderStore inside a transaction.
type PriceReader interface {
	GetPriceForOrder(ctx context.Context, arg database.GetPriceForOrderParams) (pgtype.Numeric, error)
}

// CatalogStore defines the DB methods needed to manage per-clinic prices.
// Satisfied by *database.Queries.
type CatalogStore interface {
	PriceReader
	ListPricesByClinic(ctx context.Context, clinicID uuid.UUID) ([]database.ListPricesByClinicRow, error)
	ListActiveProductsWithPrices(ctx context.Context, clinicID uuid.UUID) ([]database.ListActiveProductsWithPricesRow, error)
	CreatePrice(ctx context.Context, arg database.CreatePriceParams) (database.Price, error)
	UpdatePrice(ctx context.Context, arg database.UpdatePriceParams) (database.Price, error)
	UpsertPrice(ctx context.Context, arg database.UpsertPriceParams) (database.Price, error)
	DeletePrice(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// PriceCatalog owns the clinic-specific price lists.
type PriceCatalog struct {
	store CatalogStore
}

func NewPriceCatalog(store CatalogStore) *PriceCatalog {
	return &PriceCatalog{store: store}
}

// ResolvePrice returns the unit price a clinic pays for a product.
func (c *PriceCatalog) ResolvePrice(ctx context.Context, clinicID, productID uuid.UUID) (decimal.Decimal, error) {
	return resolvePrice(ctx, c.store, clinicID, productID)
}

func resolvePrice(ctx context.Context, r PriceReader, clinicID, productID uuid.UUID) (decimal.Decimal, error) {
	n, err := r.GetPriceForOrder(ctx, database.GetPriceForOrderParams{
		ClinicID:  clinicID,
		ProductID: productID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrPriceNotFound
		}
		return decimal.Zero, fmt.Errorf("get price: %w", err)
	}
	return money.FromNumeric(n), nil
}

// SetPrice creates the price for a clinic/product pair that has none yet.
func (c *PriceCatalog) SetPrice(ctx context.Context, clinicID, productID uuid.UUID, price decimal.Decimal) (database.Price, error) {
	if price.IsNegative() {
		return database.Price{}, ErrNegativePrice
	}
	p, err := c.store.CreatePrice(ctx, database.CreatePriceParams{
		ClinicID:  clinicID,
		ProductID: productID,
		Price:     money.ToNumeric(price),
	})
	if err != nil {
		return database.Price{}, classifyPriceWrite(err, "create price")
	}
	return p, nil
}

// UpdatePrice changes an existing price by its ID.
func (c *PriceCatalog) UpdatePrice(ctx context.Context, priceID uuid.UUID, price decimal.Decimal) (database.Price, error) {
	if price.IsNegative() {
		return database.Price{}, ErrNegativePrice
	}
	p, err := c.store.UpdatePrice(ctx, database.UpdatePriceParams{
		ID:    priceID,
		Price: money.ToNumeric(price),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Price{}, ErrPriceNotFound
		}
		return database.Price{}, fmt.Errorf("update price: %w", err)
	}
	return p, nil
}

// UpsertPrice creates or replaces the price for a clinic/product pair.
func (c *PriceCatalog) UpsertPrice(ctx context.Context, clinicID, productID uuid.UUID, price decimal.Decimal) (database.Price, error) {
	if price.IsNegative() {
		return database.Price{}, ErrNegativePrice
	}
	p, err := c.store.UpsertPrice(ctx, database.UpsertPriceParams{
		ClinicID:  clinicID,
		ProductID: productID,
		Price:     money.ToNumeric(price),
	})
	if err != nil {
		return database.Price{}, classifyPriceWrite(err, "upsert price")
	}
	return p, nil
}

func (c *PriceCatalog) DeletePrice(ctx context.Context, priceID uuid.UUID) error {
	if _, err := c.store.DeletePrice(ctx, priceID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPriceNotFound
		}
		return fmt.Errorf("delete price: %w", err)
	}
	return nil
}

// ListPrices returns one clinic's price list, cheapest first.
// The scope must name a single clinic.
func (c *PriceCatalog) ListPrices(ctx context.Context, scope Scope) ([]database.ListPricesByClinicRow, error) {
	clinicID, ok := scope.Clinic()
	if !ok {
		return nil, ErrClinicRequired
	}
	rows, err := c.store.ListPricesByClinic(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	return rows, nil
}

// ListProductsWithPrices returns active products with the clinic's price, or
// an invalid numeric where the clinic has none.
func (c *PriceCatalog) ListProductsWithPrices(ctx context.Context, scope Scope) ([]database.ListActiveProductsWithPricesRow, error) {
	clinicID, ok := scope.Clinic()
	if !ok {
		return nil, ErrClinicRequired
	}
	rows, err := c.store.ListActiveProductsWithPrices(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("list products with prices: %w", err)
	}
	return rows, nil
}

func classifyPriceWrite(err error, op string) error {
	switch {
	case isUniqueViolation(err, priceConstraint):
		return ErrPriceExists
	case isForeignKeyViolation(err):
		return foreignKeyError(err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
