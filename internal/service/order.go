package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/dentlab/api/internal/database"
	"github.com/dentlab/api/internal/events"
	"github.com/dentlab/api/internal/money"
	"github.com/dentlab/api/internal/ordernumber"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const defaultOrderNumberRetries = 5

// publishTimeout bounds event delivery once the order is committed.
const publishTimeout = 5 * time.Second

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	PriceReader
	GetLastOrderNumber(ctx context.Context, prefix string) (string, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// LifecycleStore defines the DB methods needed for status transitions.
// Satisfied by *database.Queries.
type LifecycleStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	MarkOrderPaid(ctx context.Context, id uuid.UUID) (database.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
}

// CreateOrderRequest is the input for creating an order on behalf of a clinic.
type CreateOrderRequest struct {
	ClinicID    uuid.UUID
	PatientName string
	Deadline    string // YYYY-MM-DD or RFC3339
	Notes       string
	Items       []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line in the order.
type CreateOrderItemRequest struct {
	ProductID string
	// Quantity is the JSON literal as received; it must be a positive integer.
	Quantity json.Number
	Color    string
}

// CreateOrderResult is the created order with its lines in request order.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService handles order creation and status transitions.
type OrderService struct {
	pool       TxBeginner
	newStore   NewOrderStore
	lifecycle  LifecycleStore
	numbers    *ordernumber.Generator
	publisher  events.Publisher
	maxRetries int
	now        func() time.Time
}

// OrderOption customizes an OrderService.
type OrderOption func(*OrderService)

// WithNumberGenerator sets the order number source. Defaults to the server's local date.
func WithNumberGenerator(g *ordernumber.Generator) OrderOption {
	return func(s *OrderService) { s.numbers = g }
}

// WithPublisher sets where lifecycle events go after commit.
func WithPublisher(p events.Publisher) OrderOption {
	return func(s *OrderService) { s.publisher = p }
}

// WithMaxRetries bounds creation attempts on order number collisions.
func WithMaxRetries(n int) OrderOption {
	return func(s *OrderService) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, lifecycle LifecycleStore, opts ...OrderOption) *OrderService {
	s := &OrderService{
		pool:       pool,
		newStore:   newStore,
		lifecycle:  lifecycle,
		numbers:    ordernumber.NewGenerator(nil),
		publisher:  events.Nop{},
		maxRetries: defaultOrderNumberRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validatedItem is a request line that passed shape validation.
type validatedItem struct {
	productID uuid.UUID
	quantity  int32
	color     string
}

// CreateOrder validates, prices and stores an order atomically.
// Retries up to maxRetries times on order_number unique constraint
// violations (concurrent transactions reading the same last number).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	patient := strings.TrimSpace(req.PatientName)
	if patient == "" {
		return nil, ErrMissingPatient
	}
	deadline, err := parseDeadline(req.Deadline, s.numbers.Location())
	if err != nil {
		return nil, err
	}
	items, err := validateItems(req.Items)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req.ClinicID, patient, deadline, strings.TrimSpace(req.Notes), items)
		if err == nil {
			s.publish(ctx, events.OrderCreated, result.Order)
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: %d attempts: %v", ErrOrderNumberConflict, s.maxRetries, lastErr)
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	return isUniqueViolation(err, orderNumberConstraint)
}

// createOrderTx runs one creation attempt in its own transaction.
func (s *OrderService) createOrderTx(ctx context.Context, clinicID uuid.UUID, patient string, deadline time.Time, notes string, items []validatedItem) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Snapshot prices and compute totals ---
	total := decimal.Zero
	lines := make([]database.CreateOrderItemParams, len(items))
	for i, item := range items {
		unitPrice, err := resolvePrice(ctx, store, clinicID, item.productID)
		if err != nil {
			if errors.Is(err, ErrPriceNotFound) {
				return nil, fmt.Errorf("item[%d]: %w", i, &UnpricedProductError{ProductID: item.productID})
			}
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		subtotal := unitPrice.Mul(decimal.NewFromInt32(item.quantity))
		total = total.Add(subtotal)

		lines[i] = database.CreateOrderItemParams{
			Position:  int32(i),
			ProductID: item.productID,
			Quantity:  item.quantity,
			UnitPrice: money.ToNumeric(unitPrice),
			Subtotal:  money.ToNumeric(subtotal),
			Color:     optionalText(item.color),
		}
	}

	// --- Allocate order number ---
	number, err := s.numbers.Next(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("allocate order number: %w", err)
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber: number,
		ClinicID:    clinicID,
		PatientName: patient,
		TotalAmount: money.ToNumeric(total),
		Deadline:    deadline,
		Notes:       optionalText(notes),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	created := make([]database.OrderItem, len(lines))
	for i, line := range lines {
		line.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, line)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: create order item: %w", i, err)
		}
		created[i] = item
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: created}, nil
}

// publish notifies subscribers. Failures are logged and never fail the request.
// The change is already committed, so delivery outlives the request context.
func (s *OrderService) publish(ctx context.Context, typ events.Type, o database.Order) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	e := events.Event{
		Type:        typ,
		ClinicID:    o.ClinicID,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		TotalAmount: money.FromNumeric(o.TotalAmount).StringFixed(2),
		OccurredAt:  s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		log.Printf("WARN: publish %s for order %s: %v", typ, o.OrderNumber, err)
	}
}

// --- Helpers ---

func validateItems(reqs []CreateOrderItemRequest) ([]validatedItem, error) {
	items := make([]validatedItem, len(reqs))
	for i, item := range reqs {
		productID, err := uuid.Parse(strings.TrimSpace(item.ProductID))
		if err != nil {
			return nil, fmt.Errorf("item[%d]: invalid product_id: %w", i, ErrInvalidItem)
		}
		quantity, err := parseQuantity(item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %v: %w", i, err, ErrInvalidItem)
		}
		items[i] = validatedItem{
			productID: productID,
			quantity:  quantity,
			color:     strings.TrimSpace(item.Color),
		}
	}
	return items, nil
}

// parseQuantity accepts integral JSON numbers in [1, MaxInt32], including forms like 2.0.
func parseQuantity(raw json.Number) (int32, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, errors.New("quantity is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("quantity %s is not a number", s)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("quantity %s is not a whole number", s)
	}
	if d.LessThan(decimal.NewFromInt(1)) || d.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return 0, fmt.Errorf("quantity %s is out of range", s)
	}
	return int32(d.IntPart()), nil
}

// parseDeadline accepts a calendar date in loc or a full RFC3339 timestamp.
func parseDeadline(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingDeadline
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", ErrMissingDeadline, s)
}

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
