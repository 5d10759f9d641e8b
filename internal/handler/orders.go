package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dentlab/api/internal/database"
	"github.com/dentlab/api/internal/enum"
	"github.com/dentlab/api/internal/middleware"
	"github.com/dentlab/api/internal/money"
	"github.com/dentlab/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// OrderServicer defines the service methods needed by order write handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	MarkPaid(ctx context.Context, p service.Principal, orderID uuid.UUID) (database.Order, error)
	Cancel(ctx context.Context, p service.Principal, orderID uuid.UUID) (database.Order, error)
}

// OrderQuerier defines the read methods needed by order handlers.
// Satisfied by *service.OrderQueries.
type OrderQuerier interface {
	List(ctx context.Context, scope service.Scope, f service.ListFilter) ([]service.OrderView, error)
	ListUnpaid(ctx context.Context, scope service.Scope, limit, offset int) ([]service.OrderView, error)
	SearchByOrderNumber(ctx context.Context, scope service.Scope, term string, limit, offset int) ([]service.OrderView, error)
	SearchByPatient(ctx context.Context, scope service.Scope, name string, limit, offset int) ([]service.OrderView, error)
	Get(ctx context.Context, p service.Principal, id uuid.UUID) (*service.OrderView, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc     OrderServicer
	queries OrderQuerier
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, queries OrderQuerier) *OrderHandler {
	return &OrderHandler{svc: svc, queries: queries}
}

// RegisterRoutes registers order endpoints. Expected to be mounted at /orders
// behind Authenticate.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.With(middleware.RequireRole(enum.RoleClinic)).Post("/", h.Create)
	r.Get("/unpaid", h.ListUnpaid)
	r.Get("/search", h.SearchByOrderNumber)
	r.Get("/search/patient", h.SearchByPatient)
	r.Get("/{id}", h.Get)
	r.With(middleware.RequireRole(enum.RoleAdmin)).Post("/{id}/pay", h.MarkPaid)
	r.Post("/{id}/cancel", h.Cancel)
}

// --- Request / Response types ---

type createOrderRequest struct {
	PatientName string                   `json:"patient_name"`
	Deadline    string                   `json:"deadline"`
	Notes       string                   `json:"notes"`
	Items       []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  json.RawMessage `json:"quantity"`
	Color     string          `json:"color"`
}

type orderResponse struct {
	ID          uuid.UUID           `json:"id"`
	OrderNumber string              `json:"order_number"`
	ClinicID    uuid.UUID           `json:"clinic_id"`
	ClinicName  string              `json:"clinic_name,omitempty"`
	PatientName string              `json:"patient_name"`
	TotalAmount string              `json:"total_amount"`
	Deadline    time.Time           `json:"deadline"`
	Status      string              `json:"status"`
	PaymentDate *time.Time          `json:"payment_date"`
	Notes       *string             `json:"notes"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Items       []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Position    int32     `json:"position"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	ProductCode *string   `json:"product_code,omitempty"`
	Quantity    int32     `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	Subtotal    string    `json:"subtotal"`
	Color       *string   `json:"color"`
}

// --- Handlers ---

// Create handles POST /orders. The order belongs to the caller's clinic.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "not authenticated")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	svcItems := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		svcItems[i] = service.CreateOrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  json.Number(item.Quantity),
			Color:     item.Color,
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		ClinicID:    p.ClinicID,
		PatientName: req.PatientName,
		Deadline:    req.Deadline,
		Notes:       req.Notes,
		Items:       svcItems,
	})
	if err != nil {
		writeServiceError(w, "create order", err)
		return
	}

	resp := toOrderResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, item := range result.Items {
		resp.Items[i] = toOrderItemResponse(item)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /orders with optional status, clinic_id, limit and offset.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, "list orders", func(ctx context.Context, scope service.Scope, limit, offset int) ([]service.OrderView, error) {
		return h.queries.List(ctx, scope, service.ListFilter{
			Status: r.URL.Query().Get("status"),
			Limit:  limit,
			Offset: offset,
		})
	})
}

// ListUnpaid handles GET /orders/unpaid.
func (h *OrderHandler) ListUnpaid(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, "list unpaid orders", h.queries.ListUnpaid)
}

// SearchByOrderNumber handles GET /orders/search?term=.
func (h *OrderHandler) SearchByOrderNumber(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	h.listWith(w, r, "search orders", func(ctx context.Context, scope service.Scope, limit, offset int) ([]service.OrderView, error) {
		return h.queries.SearchByOrderNumber(ctx, scope, term, limit, offset)
	})
}

// SearchByPatient handles GET /orders/search/patient?name=.
func (h *OrderHandler) SearchByPatient(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	h.listWith(w, r, "search orders by patient", func(ctx context.Context, scope service.Scope, limit, offset int) ([]service.OrderView, error) {
		return h.queries.SearchByPatient(ctx, scope, name, limit, offset)
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "not authenticated")
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid order ID")
		return
	}

	view, err := h.queries.Get(r.Context(), p, orderID)
	if err != nil {
		writeServiceError(w, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderViewResponse(*view))
}

// MarkPaid handles POST /orders/{id}/pay.
func (h *OrderHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "mark order paid", h.svc.MarkPaid)
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel order", h.svc.Cancel)
}

// --- Helpers ---

type listFunc func(ctx context.Context, scope service.Scope, limit, offset int) ([]service.OrderView, error)

func (h *OrderHandler) listWith(w http.ResponseWriter, r *http.Request, op string, list listFunc) {
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
	limit, offset := parsePaging(r)

	views, err := list(r.Context(), scope, limit, offset)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	resp := make([]orderResponse, len(views))
	for i, v := range views {
		resp[i] = toOrderViewResponse(v)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, service.Principal, uuid.UUID) (database.Order, error)) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "not authenticated")
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid order ID")
		return
	}

	order, err := fn(r.Context(), p, orderID)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		ClinicID:    o.ClinicID,
		PatientName: o.PatientName,
		TotalAmount: money.String(o.TotalAmount),
		Deadline:    o.Deadline,
		Status:      string(o.Status),
		Notes:       textPtr(o.Notes),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if o.PaymentDate.Valid {
		t := o.PaymentDate.Time
		resp.PaymentDate = &t
	}
	return resp
}

func toOrderViewResponse(v service.OrderView) orderResponse {
	resp := toOrderResponse(v.Order)
	resp.ClinicName = v.ClinicName
	resp.Items = make([]orderItemResponse, len(v.Items))
	for i, item := range v.Items {
		resp.Items[i] = toOrderItemResponse(item.OrderItem)
		resp.Items[i].ProductName = item.ProductName
		resp.Items[i].ProductCode = textPtr(item.ProductCode)
	}
	return resp
}

func toOrderItemResponse(item database.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:        item.ID,
		Position:  item.Position,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UnitPrice: money.String(item.UnitPrice),
		Subtotal:  money.String(item.Subtotal),
		Color:     textPtr(item.Color),
	}
}
