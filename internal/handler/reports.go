package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dentlab/api/internal/database"
	"github.com/dentlab/api/internal/enum"
	"github.com/dentlab/api/internal/middleware"
	"github.com/dentlab/api/internal/money"
	"github.com/dentlab/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Reporter defines the report methods needed by report handlers.
// Satisfied by *service.Reports; narrow interface for testability.
type Reporter interface {
	Summary(ctx context.Context, scope service.Scope) (*service.Summary, error)
	ClinicBalances(ctx context.Context, p service.Principal, start, end time.Time) ([]database.GetClinicBalancesRow, error)
	ProductSales(ctx context.Context, scope service.Scope, start, end time.Time, limit int) ([]database.GetProductSalesRow, error)
}

// ReportsHandler handles dashboard report endpoints.
type ReportsHandler struct {
	reports Reporter
	loc     *time.Location
	now     func() time.Time
}

// NewReportsHandler creates a new ReportsHandler. Date ranges are read as
// calendar days in loc.
func NewReportsHandler(reports Reporter, loc *time.Location) *ReportsHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ReportsHandler{reports: reports, loc: loc, now: time.Now}
}

// RegisterRoutes registers report endpoints. Expected to be mounted at /reports
// behind Authenticate.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/summary", h.Summary)
	r.Get("/product-sales", h.ProductSales)
	r.With(middleware.RequireRole(enum.RoleAdmin)).Get("/clinic-balances", h.ClinicBalances)
}

// --- Response types ---

type summaryResponse struct {
	TotalOrders   int64           `json:"total_orders"`
	PendingOrders int64           `json:"pending_orders"`
	PendingAmount string          `json:"pending_amount"`
	PaidAmount    string          `json:"paid_amount"`
	RecentOrders  []orderResponse `json:"recent_orders"`
}

type productSalesResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	ProductCode  *string   `json:"product_code"`
	QuantitySold int64     `json:"quantity_sold"`
	TotalRevenue string    `json:"total_revenue"`
}

type clinicBalanceResponse struct {
	ClinicID     uuid.UUID `json:"clinic_id"`
	ClinicName   string    `json:"clinic_name"`
	OrderCount   int64     `json:"order_count"`
	UnpaidAmount string    `json:"unpaid_amount"`
	PaidAmount   string    `json:"paid_amount"`
}

// --- Handlers ---

// Summary returns order counts, pending and paid totals, and the newest orders.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "not authenticated")
		return
	}
	scope, err := requestScope(r, p)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid clinic_id")
		return
	}

	s, err := h.reports.Summary(r.Context(), scope)
	if err != nil {
		writeServiceError(w, "get summary", err)
		return
	}

	resp := summaryResponse{
		TotalOrders:   s.TotalOrders,
		PendingOrders: s.PendingOrders,
		PendingAmount: s.PendingAmount.StringFixed(2),
		PaidAmount:    s.PaidAmount.StringFixed(2),
		RecentOrders:  make([]orderResponse, len(s.Recent)),
	}
	for i, v := range s.Recent {
		resp.RecentOrders[i] = toOrderViewResponse(v)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ProductSales returns top selling products by revenue.
func (h *ReportsHandler) ProductSales(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "not authenticated")
		return
	}
	scope, err := requestScope(r, p)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid clinic_id")
		return
	}

	startDate, endDate, err := h.parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			limit = v
		}
	}

	rows, err := h.reports.ProductSales(r.Context(), scope, startDate, endDate, limit)
	if err != nil {
		writeServiceError(w, "get product sales", err)
		return
	}

	resp := make([]productSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = productSalesResponse{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			ProductCode:  textPtr(row.ProductCode),
			QuantitySold: row.QuantitySold,
			TotalRevenue: money.String(row.TotalRevenue),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClinicBalances returns per clinic order counts with unpaid and paid totals.
func (h *ReportsHandler) ClinicBalances(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "not authenticated")
		return
	}

	startDate, endDate, err := h.parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	rows, err := h.reports.ClinicBalances(r.Context(), p, startDate, endDate)
	if err != nil {
		writeServiceError(w, "get clinic balances", err)
		return
	}

	resp := make([]clinicBalanceResponse, len(rows))
	for i, row := range rows {
		resp[i] = clinicBalanceResponse{
			ClinicID:     row.ClinicID,
			ClinicName:   row.ClinicName,
			OrderCount:   row.OrderCount,
			UnpaidAmount: money.String(row.UnpaidAmount),
			PaidAmount:   money.String(row.PaidAmount),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// parseDateRange parses start_date and end_date (YYYY-MM-DD) in the handler's location.
// Defaults to the last 30 days. endDate is exclusive (midnight after end_date).
func (h *ReportsHandler) parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	now := h.now().In(h.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	startDate := today.AddDate(0, 0, -30)
	endDate := today.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, h.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		startDate = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, h.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		endDate = t.AddDate(0, 0, 1)
	}

	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}

	return startDate, endDate, nil
}
