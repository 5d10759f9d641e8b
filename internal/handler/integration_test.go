//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/dentlab/api/internal/config"
	"github.com/dentlab/api/internal/database"
	"github.com/dentlab/api/internal/events"
	"github.com/dentlab/api/internal/router"
	"github.com/dentlab/api/internal/ws"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

var orderNumberPattern = regexp.MustCompile(`^\d{10}$`)

// TestIntegrationFlow exercises the order lifecycle against a real PostgreSQL database
// with every handler wired through the router.
func TestIntegrationFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Port:                  "8081",
		DatabaseURL:           connStr,
		JWTSecret:             "integration-test-secret",
		OrderLocation:         time.UTC,
		OrderNumberMaxRetries: 5,
	}
	hub := ws.NewHub()
	go hub.Run(ctx)

	recorder := events.NewRecorder(16)
	r := router.New(cfg, database.New(pool), pool, hub, events.Multi{hub, recorder})

	server := httptest.NewServer(r)
	defer server.Close()

	// --- 1. Bootstrap admin (no endpoint creates admins) ---
	createAdminUser(t, ctx, pool, "admin", "password123")
	adminTok := login(t, server, "admin", "password123")

	// --- 2. Onboard a clinic together with its login ---
	clinic := httpPostJSON(t, server, "/clinics", map[string]interface{}{
		"name":     "Smile Dental",
		"phone":    "08123456789",
		"username": "smile",
		"password": "clinic123",
	}, adminTok)
	clinicID := clinic["id"].(string)
	if _, ok := clinic["user"].(map[string]interface{}); !ok {
		t.Fatalf("clinic response missing user: %+v", clinic)
	}

	// --- 3. Catalog: one priced product, one without a price ---
	crown := httpPostJSON(t, server, "/products", map[string]interface{}{
		"name": "Zirconia Crown",
		"code": "ZRC",
	}, adminTok)
	crownID := crown["id"].(string)

	guard := httpPostJSON(t, server, "/products", map[string]interface{}{
		"name": "Night Guard",
		"code": "NGD",
	}, adminTok)
	guardID := guard["id"].(string)

	price := httpPostJSON(t, server, "/prices", map[string]interface{}{
		"clinic_id":  clinicID,
		"product_id": crownID,
		"price":      850000,
	}, adminTok)
	priceID := price["id"].(string)

	status, body := httpDo(t, server, http.MethodPost, "/prices", map[string]interface{}{
		"clinic_id":  clinicID,
		"product_id": crownID,
		"price":      1,
	}, adminTok)
	assertErrorCode(t, status, body, http.StatusConflict, "PRICE_EXISTS")

	// --- 4. Clinic places an order ---
	clinicTok := login(t, server, "smile", "clinic123")

	status, body = httpDo(t, server, http.MethodPost, "/orders", map[string]interface{}{
		"patient_name": "Budi",
		"deadline":     "2026-12-01",
		"items": []map[string]interface{}{
			{"product_id": crownID, "quantity": 1},
			{"product_id": guardID, "quantity": 1},
		},
	}, clinicTok)
	assertErrorCode(t, status, body, http.StatusBadRequest, "UNPRICED_PRODUCT")
	if body["product_id"] != guardID {
		t.Fatalf("unpriced product_id: got %v, want %s", body["product_id"], guardID)
	}

	first := createOrder(t, server, crownID, 2, clinicTok)
	firstID := first["id"].(string)
	firstNumber := first["order_number"].(string)
	if !orderNumberPattern.MatchString(firstNumber) {
		t.Fatalf("order_number %q does not match YYMMDD####", firstNumber)
	}
	if got := first["total_amount"].(string); got != "1700000.00" {
		t.Fatalf("total_amount: got %s, want 1700000.00", got)
	}
	if got := first["status"].(string); got != "pending" {
		t.Fatalf("status: got %s, want pending", got)
	}
	if got := first["clinic_id"].(string); got != clinicID {
		t.Fatalf("clinic_id: got %s, want %s", got, clinicID)
	}

	// --- 5. Repricing leaves the placed order untouched ---
	httpDoOK(t, server, http.MethodPut, "/prices/"+priceID, map[string]interface{}{"price": "900000"}, adminTok)

	view := httpGetJSON(t, server, "/orders/"+firstID, clinicTok)
	items := view["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items: got %d, want 1", len(items))
	}
	item := items[0].(map[string]interface{})
	if item["unit_price"] != "850000.00" || item["subtotal"] != "1700000.00" {
		t.Fatalf("captured price changed: %+v", item)
	}

	second := createOrder(t, server, crownID, 1, clinicTok)
	secondID := second["id"].(string)
	if second["order_number"] == firstNumber {
		t.Fatalf("order numbers must be unique, both %s", firstNumber)
	}
	if got := second["total_amount"].(string); got != "900000.00" {
		t.Fatalf("second order total: got %s, want 900000.00", got)
	}

	// --- 6. Lifecycle ---
	status, body = httpDo(t, server, http.MethodPost, "/orders/"+firstID+"/pay", nil, clinicTok)
	assertErrorCode(t, status, body, http.StatusForbidden, "ACCESS_DENIED")

	paid := httpPostJSON(t, server, "/orders/"+firstID+"/pay", nil, adminTok)
	if paid["status"] != "paid" || paid["payment_date"] == nil {
		t.Fatalf("pay: got %+v", paid)
	}

	status, body = httpDo(t, server, http.MethodPost, "/orders/"+firstID+"/pay", nil, adminTok)
	assertErrorCode(t, status, body, http.StatusConflict, "ALREADY_PAID")

	status, body = httpDo(t, server, http.MethodPost, "/orders/"+firstID+"/cancel", nil, clinicTok)
	assertErrorCode(t, status, body, http.StatusConflict, "CANNOT_CANCEL_PAID")

	cancelled := httpPostJSON(t, server, "/orders/"+secondID+"/cancel", nil, clinicTok)
	if cancelled["status"] != "cancelled" {
		t.Fatalf("cancel: got %+v", cancelled)
	}

	status, body = httpDo(t, server, http.MethodPost, "/orders/"+secondID+"/pay", nil, adminTok)
	assertErrorCode(t, status, body, http.StatusConflict, "INVALID_TRANSITION")

	// --- 7. Queries ---
	var unpaid []map[string]interface{}
	httpGetInto(t, server, "/orders/unpaid", clinicTok, &unpaid)
	if len(unpaid) != 0 {
		t.Fatalf("unpaid: got %d orders, want 0", len(unpaid))
	}

	var found []map[string]interface{}
	httpGetInto(t, server, "/orders/search?term="+firstNumber, adminTok, &found)
	if len(found) != 1 || found[0]["id"] != firstID {
		t.Fatalf("search by number: got %+v", found)
	}

	httpGetInto(t, server, "/orders/search/patient?name=bud", clinicTok, &found)
	if len(found) != 2 {
		t.Fatalf("search by patient: got %d orders, want 2", len(found))
	}

	// --- 8. Reports ---
	summary := httpGetJSON(t, server, "/reports/summary", adminTok)
	if summary["total_orders"].(float64) != 2 || summary["pending_orders"].(float64) != 0 {
		t.Fatalf("summary counts: %+v", summary)
	}
	if summary["paid_amount"] != "1700000.00" || summary["pending_amount"] != "0.00" {
		t.Fatalf("summary amounts: %+v", summary)
	}

	var balances []map[string]interface{}
	httpGetInto(t, server, "/reports/clinic-balances", adminTok, &balances)
	if len(balances) != 1 || balances[0]["paid_amount"] != "1700000.00" {
		t.Fatalf("clinic balances: %+v", balances)
	}

	var sales []map[string]interface{}
	httpGetInto(t, server, "/reports/product-sales", clinicTok, &sales)
	if len(sales) != 1 || sales[0]["quantity_sold"].(float64) != 2 {
		t.Fatalf("product sales: %+v", sales)
	}

	// --- 9. Events were published after each commit ---
	var types []events.Type
	for _, e := range recorder.Events() {
		types = append(types, e.Type)
	}
	want := []events.Type{events.OrderCreated, events.OrderCreated, events.OrderPaid, events.OrderCancelled}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Fatalf("events: got %v, want %v", types, want)
	}

	t.Logf("Integration flow passed: clinic=%s first=%s second=%s", clinicID, firstNumber, second["order_number"])
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("dentlab_test"),
		tcpostgres.WithUsername("dentlab"),
		tcpostgres.WithPassword("dentlab"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	// migrate speaks database/sql
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Relative to internal/handler, where go test runs.
	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createAdminUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, username, password string) uuid.UUID {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO users (username, hashed_password, role)
		 VALUES ($1, $2, 'admin')
		 RETURNING id`,
		username, string(hashed),
	).Scan(&id)
	if err != nil {
		t.Fatalf("create admin user: %v", err)
	}
	return id
}

// --- API call helpers ---

func login(t *testing.T, server *httptest.Server, username, password string) string {
	t.Helper()
	resp := httpPostJSON(t, server, "/auth/login", map[string]interface{}{
		"username": username,
		"password": password,
	}, "")
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login failed: no access_token in response: %+v", resp)
	}
	return token
}

func createOrder(t *testing.T, server *httptest.Server, productID string, quantity int, token string) map[string]interface{} {
	t.Helper()
	return httpPostJSON(t, server, "/orders", map[string]interface{}{
		"patient_name": "Budi Santoso",
		"deadline":     "2026-12-01",
		"notes":        "shade A2",
		"items": []map[string]interface{}{
			{"product_id": productID, "quantity": quantity, "color": "A2"},
		},
	}, token)
}

func assertErrorCode(t *testing.T, status int, body map[string]interface{}, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus || body["code"] != wantCode {
		t.Fatalf("got %d %v, want %d %s", status, body, wantStatus, wantCode)
	}
}

// --- HTTP helpers ---

func httpRequest(t *testing.T, server *httptest.Server, method, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

// httpDo returns the status and decoded object body without asserting success.
func httpDo(t *testing.T, server *httptest.Server, method, path string, body interface{}, token string) (int, map[string]interface{}) {
	t.Helper()
	resp := httpRequest(t, server, method, path, body, token)
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return resp.StatusCode, result
}

func httpDoOK(t *testing.T, server *httptest.Server, method, path string, body interface{}, token string) map[string]interface{} {
	t.Helper()
	status, result := httpDo(t, server, method, path, body, token)
	if status < 200 || status >= 300 {
		t.Fatalf("%s %s: status %d, body: %v", method, path, status, result)
	}
	return result
}

func httpPostJSON(t *testing.T, server *httptest.Server, path string, body interface{}, token string) map[string]interface{} {
	t.Helper()
	return httpDoOK(t, server, http.MethodPost, path, body, token)
}

func httpGetJSON(t *testing.T, server *httptest.Server, path string, token string) map[string]interface{} {
	t.Helper()
	return httpDoOK(t, server, http.MethodGet, path, nil, token)
}

func httpGetInto(t *testing.T, server *httptest.Server, path string, token string, dst interface{}) {
	t.Helper()
	resp := httpRequest(t, server, http.MethodGet, path, nil, token)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
}
