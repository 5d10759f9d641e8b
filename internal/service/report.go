package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dentlab/api/internal/database"
	"github.com/dentlab/api/internal/money"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ReportStore defines the DB methods needed by dashboard reports.
// Satisfied by *database.Queries.
type ReportStore interface {
	OrderReader
	GetOrderSummary(ctx context.Context, clinicID pgtype.UUID) (database.GetOrderSummaryRow, error)
	GetClinicBalances(ctx context.Context, arg database.GetClinicBalancesParams) ([]database.GetClinicBalancesRow, error)
	GetProductSales(ctx context.Context, arg database.GetProductSalesParams) ([]database.GetProductSalesRow, error)
}

// Summary is the dashboard headline for a scope.
type Summary struct {
	TotalOrders   int64
	PendingOrders int64
	PendingAmount decimal.Decimal
	PaidAmount    decimal.Decimal
	Recent        []OrderView
}

type Reports struct {
	store   ReportStore
	queries *OrderQueries
}

func NewReports(store ReportStore) *Reports {
	return &Reports{store: store, queries: NewOrderQueries(store)}
}

func (r *Reports) Summary(ctx context.Context, scope Scope) (*Summary, error) {
	row, err := r.store.GetOrderSummary(ctx, scope.filter())
	if err != nil {
		return nil, fmt.Errorf("get order summary: %w", err)
	}
	recent, err := r.queries.Recent(ctx, scope)
	if err != nil {
		return nil, err
	}
	return &Summary{
		TotalOrders:   row.TotalOrders,
		PendingOrders: row.PendingOrders,
		PendingAmount: money.FromNumeric(row.PendingAmount),
		PaidAmount:    money.FromNumeric(row.PaidAmount),
		Recent:        recent,
	}, nil
}

// ClinicBalances reports per clinic totals for orders created in [start, end). Admin only.
func (r *Reports) ClinicBalances(ctx context.Context, p Principal, start, end time.Time) ([]database.GetClinicBalancesRow, error) {
	if !p.IsAdmin() {
		return nil, ErrAccessDenied
	}
	rows, err := r.store.GetClinicBalances(ctx, database.GetClinicBalancesParams{
		CreatedAt:   start,
		CreatedAt_2: end,
	})
	if err != nil {
		return nil, fmt.Errorf("get clinic balances: %w", err)
	}
	return rows, nil
}

// ProductSales ranks products by revenue from non-cancelled orders in [start, end).
func (r *Reports) ProductSales(ctx context.Context, scope Scope, start, end time.Time, limit int) ([]database.GetProductSalesRow, error) {
	n, _ := page(limit, 0)
	rows, err := r.store.GetProductSales(ctx, database.GetProductSalesParams{
		ClinicID:    scope.filter(),
		CreatedAt:   start,
		CreatedAt_2: end,
		Limit:       n,
	})
	if err != nil {
		return nil, fmt.Errorf("get product sales: %w", err)
	}
	return rows, nil
}
