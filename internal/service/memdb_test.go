package service

import (
	"context"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dentlab/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// memDB is an in-memory stand-in for Postgres with read-committed visibility
// and a unique order_number checked at insert and again at commit.
type memDB struct {
	mu       sync.Mutex
	clinics  map[uuid.UUID]string
	products map[uuid.UUID]string
	prices   map[[2]uuid.UUID]pgtype.Numeric
	orders   []database.Order
	items    []database.OrderItem
	clock    time.Time
}

func newMemDB() *memDB {
	return &memDB{
		clinics:  map[uuid.UUID]string{},
		products: map[uuid.UUID]string{},
		prices:   map[[2]uuid.UUID]pgtype.Numeric{},
		clock:    testNow,
	}
}

func (db *memDB) addClinic(name string) uuid.UUID {
	id := uuid.New()
	db.clinics[id] = name
	return id
}

func (db *memDB) addProduct(name string) uuid.UUID {
	id := uuid.New()
	db.products[id] = name
	return id
}

func (db *memDB) setPrice(clinicID, productID uuid.UUID, price string) {
	db.prices[[2]uuid.UUID{clinicID, productID}] = makeNumeric(price)
}

func (db *memDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{db: db}, nil
}

func (db *memDB) numberTaken(number string) bool {
	for _, o := range db.orders {
		if o.OrderNumber == number {
			return true
		}
	}
	return false
}

// --- pool-level reads (OrderReader, LifecycleStore) ---

func (db *memDB) ListOrders(_ context.Context, arg database.ListOrdersParams) ([]database.ListOrdersRow, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	unescape := strings.NewReplacer(`\%`, `%`, `\_`, `_`, `\\`, `\`)
	contains := func(s string, pattern pgtype.Text) bool {
		return !pattern.Valid || strings.Contains(strings.ToLower(s), strings.ToLower(unescape.Replace(pattern.String)))
	}

	var rows []database.ListOrdersRow
	for i := len(db.orders) - 1; i >= 0; i-- {
		o := db.orders[i]
		if arg.ClinicID.Valid && o.ClinicID != uuid.UUID(arg.ClinicID.Bytes) {
			continue
		}
		if arg.Status.Valid && o.Status != arg.Status.OrderStatus {
			continue
		}
		if !contains(o.OrderNumber, arg.OrderNumber) || !contains(o.PatientName, arg.PatientName) {
			continue
		}
		rows = append(rows, database.ListOrdersRow{Order: o, ClinicName: db.clinics[o.ClinicID]})
	}
	start := min(int(arg.Offset), len(rows))
	end := min(start+int(arg.Limit), len(rows))
	return rows[start:end], nil
}

func (db *memDB) GetOrderWithClinic(_ context.Context, id uuid.UUID) (database.GetOrderWithClinicRow, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, o := range db.orders {
		if o.ID == id {
			return database.GetOrderWithClinicRow{Order: o, ClinicName: db.clinics[o.ClinicID]}, nil
		}
	}
	return database.GetOrderWithClinicRow{}, pgx.ErrNoRows
}

func (db *memDB) ListOrderItemsByOrders(_ context.Context, orderIds []uuid.UUID) ([]database.ListOrderItemsByOrdersRow, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range orderIds {
		want[id] = true
	}
	var rows []database.ListOrderItemsByOrdersRow
	for _, it := range db.items {
		if want[it.OrderID] {
			rows = append(rows, database.ListOrderItemsByOrdersRow{OrderItem: it, ProductName: db.products[it.ProductID]})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].OrderItem.Position < rows[j].OrderItem.Position })
	return rows, nil
}

func (db *memDB) GetOrder(_ context.Context, id uuid.UUID) (database.Order, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, o := range db.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (db *memDB) transition(id uuid.UUID, to database.OrderStatus) (database.Order, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i, o := range db.orders {
		if o.ID == id && o.Status == database.OrderStatusPending {
			db.orders[i].Status = to
			if to == database.OrderStatusPaid {
				db.orders[i].PaymentDate = pgtype.Timestamptz{Time: db.clock, Valid: true}
			}
			return db.orders[i], nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (db *memDB) MarkOrderPaid(_ context.Context, id uuid.UUID) (database.Order, error) {
	return db.transition(id, database.OrderStatusPaid)
}

func (db *memDB) CancelOrder(_ context.Context, id uuid.UUID) (database.Order, error) {
	return db.transition(id, database.OrderStatusCancelled)
}

// memTx buffers writes until Commit. Only the pgx.Tx methods the service
// uses are overridden; the embedded mockTx panics on the rest.
type memTx struct {
	mockTx
	db     *memDB
	orders []database.Order
	items  []database.OrderItem
}

func (tx *memTx) GetPriceForOrder(_ context.Context, arg database.GetPriceForOrderParams) (pgtype.Numeric, error) {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	p, ok := tx.db.prices[[2]uuid.UUID{arg.ClinicID, arg.ProductID}]
	if !ok {
		return pgtype.Numeric{}, pgx.ErrNoRows
	}
	return p, nil
}

func (tx *memTx) GetLastOrderNumber(_ context.Context, prefix string) (string, error) {
	tx.db.mu.Lock()
	var last string
	for _, o := range tx.db.orders {
		if strings.HasPrefix(o.OrderNumber, prefix) && o.OrderNumber > last {
			last = o.OrderNumber
		}
	}
	tx.db.mu.Unlock()

	// Widen the window between read and insert so concurrent creators collide.
	runtime.Gosched()

	if last == "" {
		return "", pgx.ErrNoRows
	}
	return last, nil
}

func (tx *memTx) CreateOrder(_ context.Context, arg database.CreateOrderParams) (database.Order, error) {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.db.numberTaken(arg.OrderNumber) {
		return database.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
	}
	o := database.Order{
		ID:          uuid.New(),
		OrderNumber: arg.OrderNumber,
		ClinicID:    arg.ClinicID,
		PatientName: arg.PatientName,
		TotalAmount: arg.TotalAmount,
		Deadline:    arg.Deadline,
		Status:      database.OrderStatusPending,
		Notes:       arg.Notes,
		CreatedAt:   tx.db.clock,
		UpdatedAt:   tx.db.clock,
	}
	tx.orders = append(tx.orders, o)
	return o, nil
}

func (tx *memTx) CreateOrderItem(_ context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	it := database.OrderItem{
		ID:        uuid.New(),
		OrderID:   arg.OrderID,
		Position:  arg.Position,
		ProductID: arg.ProductID,
		Quantity:  arg.Quantity,
		UnitPrice: arg.UnitPrice,
		Subtotal:  arg.Subtotal,
		Color:     arg.Color,
	}
	tx.items = append(tx.items, it)
	return it, nil
}

func (tx *memTx) Commit(_ context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	for _, o := range tx.orders {
		if tx.db.numberTaken(o.OrderNumber) {
			tx.orders, tx.items = nil, nil
			return &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
		}
	}
	tx.db.orders = append(tx.db.orders, tx.orders...)
	tx.db.items = append(tx.db.items, tx.items...)
	tx.orders, tx.items = nil, nil
	return nil
}

func (tx *memTx) Rollback(_ context.Context) error {
	tx.orders, tx.items = nil, nil
	return nil
}

func memOrderStore(db database.DBTX) OrderStore {
	return db.(*memTx)
}
