package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dentlab/api/internal/database"
	"github.com/dentlab/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	recentOrderLimit = 5
)

// OrderReader defines the DB methods needed to read orders.
// Satisfied by *database.Queries.
type OrderReader interface {
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.ListOrdersRow, error)
	GetOrderWithClinic(ctx context.Context, id uuid.UUID) (database.GetOrderWithClinicRow, error)
	ListOrderItemsByOrders(ctx context.Context, orderIds []uuid.UUID) ([]database.ListOrderItemsByOrdersRow, error)
}

// OrderView is an order enriched with its clinic name and product details.
type OrderView struct {
	Order      database.Order
	ClinicName string
	Items      []database.ListOrderItemsByOrdersRow
}

// ListFilter narrows an order listing. Zero values mean no filter and default paging.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

// OrderQueries answers scoped order projections.
type OrderQueries struct {
	store OrderReader
}

func NewOrderQueries(store OrderReader) *OrderQueries {
	return &OrderQueries{store: store}
}

// List returns orders in scope, newest first.
func (q *OrderQueries) List(ctx context.Context, scope Scope, f ListFilter) ([]OrderView, error) {
	params := database.ListOrdersParams{ClinicID: scope.filter()}
	if f.Status != "" {
		if !enum.ValidOrderStatus(f.Status) {
			return nil, ErrInvalidStatus
		}
		params.Status = database.NullOrderStatus{OrderStatus: database.OrderStatus(f.Status), Valid: true}
	}
	params.Limit, params.Offset = page(f.Limit, f.Offset)
	return q.list(ctx, params)
}

// ListUnpaid returns pending orders in scope.
func (q *OrderQueries) ListUnpaid(ctx context.Context, scope Scope, limit, offset int) ([]OrderView, error) {
	return q.List(ctx, scope, ListFilter{Status: enum.OrderStatusPending, Limit: limit, Offset: offset})
}

// SearchByOrderNumber matches a case-insensitive substring of the order number.
func (q *OrderQueries) SearchByOrderNumber(ctx context.Context, scope Scope, term string, limit, offset int) ([]OrderView, error) {
	pattern, err := searchPattern(term)
	if err != nil {
		return nil, err
	}
	params := database.ListOrdersParams{ClinicID: scope.filter(), OrderNumber: pattern}
	params.Limit, params.Offset = page(limit, offset)
	return q.list(ctx, params)
}

// SearchByPatient matches a case-insensitive substring of the patient name.
func (q *OrderQueries) SearchByPatient(ctx context.Context, scope Scope, name string, limit, offset int) ([]OrderView, error) {
	pattern, err := searchPattern(name)
	if err != nil {
		return nil, err
	}
	params := database.ListOrdersParams{ClinicID: scope.filter(), PatientName: pattern}
	params.Limit, params.Offset = page(limit, offset)
	return q.list(ctx, params)
}

// Get returns one order if the principal may see it.
func (q *OrderQueries) Get(ctx context.Context, p Principal, id uuid.UUID) (*OrderView, error) {
	row, err := q.store.GetOrderWithClinic(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !p.Scope().Allows(row.Order.ClinicID) {
		return nil, ErrAccessDenied
	}

	items, err := q.store.ListOrderItemsByOrders(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return &OrderView{Order: row.Order, ClinicName: row.ClinicName, Items: items}, nil
}

// Recent returns the newest orders in scope.
func (q *OrderQueries) Recent(ctx context.Context, scope Scope) ([]OrderView, error) {
	return q.list(ctx, database.ListOrdersParams{ClinicID: scope.filter(), Limit: recentOrderLimit})
}

func (q *OrderQueries) list(ctx context.Context, params database.ListOrdersParams) ([]OrderView, error) {
	rows, err := q.store.ListOrders(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if len(rows) == 0 {
		return []OrderView{}, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.Order.ID
	}
	items, err := q.store.ListOrderItemsByOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	byOrder := make(map[uuid.UUID][]database.ListOrderItemsByOrdersRow, len(rows))
	for _, item := range items {
		byOrder[item.OrderItem.OrderID] = append(byOrder[item.OrderItem.OrderID], item)
	}

	views := make([]OrderView, len(rows))
	for i, row := range rows {
		lines := byOrder[row.Order.ID]
		if lines == nil {
			lines = []database.ListOrderItemsByOrdersRow{}
		}
		views[i] = OrderView{Order: row.Order, ClinicName: row.ClinicName, Items: lines}
	}
	return views, nil
}

func page(limit, offset int) (int32, int32) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return int32(limit), int32(offset)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchPattern escapes LIKE wildcards so the term matches literally.
func searchPattern(term string) (pgtype.Text, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return pgtype.Text{}, ErrSearchTermRequired
	}
	return pgtype.Text{String: likeEscaper.Replace(term), Valid: true}, nil
}
