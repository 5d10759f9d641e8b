package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dentlab/api/internal/database"
	"github.com/dentlab/api/internal/enum"
	"github.com/dentlab/api/internal/middleware"
	"github.com/dentlab/api/internal/money"
	"github.com/dentlab/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceCatalog defines the catalog methods needed by price handlers.
// Satisfied by *service.PriceCatalog; narrow interface for testability.
type PriceCatalog interface {
	ListPrices(ctx context.Context, scope service.Scope) ([]database.ListPricesByClinicRow, error)
	SetPrice(ctx context.Context, clinicID, productID uuid.UUID, price decimal.Decimal) (database.Price, error)
	UpdatePrice(ctx context.Context, priceID uuid.UUID, price decimal.Decimal) (database.Price, error)
	DeletePrice(ctx context.Context, priceID uuid.UUID) error
}

// PriceHandler handles per-clinic price list endpoints.
type PriceHandler struct {
	catalog PriceCatalog
}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler(catalog PriceCatalog) *PriceHandler {
	return &PriceHandler{catalog: catalog}
}

// RegisterRoutes registers price endpoints. Expected to be mounted at /prices
// behind Authenticate.
func (h *PriceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)

	admin := r.With(middleware.RequireRole(enum.RoleAdmin))
	admin.Post("/", h.Create)
	admin.Put("/{id}", h.Update)
	admin.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createPriceRequest struct {
	ClinicID  string      `json:"clinic_id"`
	ProductID string      `json:"product_id"`
	Price     json.Number `json:"price"`
}

type updatePriceRequest struct {
	Price json.Number `json:"price"`
}

type priceResponse struct {
	ID          uuid.UUID `json:"id"`
	ClinicID    uuid.UUID `json:"clinic_id"`
	ProductID   uuid.UUID `json:"product_id"`
	Price       string    `json:"price"`
	ProductName string    `json:"product_name,omitempty"`
	ProductCode *string   `json:"product_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toPriceResponse(p database.Price) priceResponse {
	return priceResponse{
		ID:        p.ID,
		ClinicID:  p.ClinicID,
		ProductID: p.ProductID,
		Price:     money.String(p.Price),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// --- Handlers ---

// List handles GET /prices, cheapest first. Admins must pass clinic_id.
func (h *PriceHandler) List(w http.ResponseWriter, r *http.Request) {
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

	rows, err := h.catalog.ListPrices(r.Context(), scope)
	if err != nil {
		writeServiceError(w, "list prices", err)
		return
	}

	resp := make([]priceResponse, len(rows))
	for i, row := range rows {
		resp[i] = toPriceResponse(row.Price)
		resp[i].ProductName = row.ProductName
		resp[i].ProductCode = textPtr(row.ProductCode)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /prices. The clinic/product pair must not have a price yet.
func (h *PriceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	clinicID, productID, err := parsePricePair(req.ClinicID, req.ProductID)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		writeServiceError(w, "create price", err)
		return
	}

	p, err := h.catalog.SetPrice(r.Context(), clinicID, productID, price)
	if err != nil {
		writeServiceError(w, "create price", err)
		return
	}

	writeJSON(w, http.StatusCreated, toPriceResponse(p))
}

// Update handles PUT /prices/{id}.
func (h *PriceHandler) Update(w http.ResponseWriter, r *http.Request) {
	priceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid price ID")
		return
	}

	var req updatePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		writeServiceError(w, "update price", err)
		return
	}

	p, err := h.catalog.UpdatePrice(r.Context(), priceID, price)
	if err != nil {
		writeServiceError(w, "update price", err)
		return
	}

	writeJSON(w, http.StatusOK, toPriceResponse(p))
}

// Delete handles DELETE /prices/{id}.
func (h *PriceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	priceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid price ID")
		return
	}

	if err := h.catalog.DeletePrice(r.Context(), priceID); err != nil {
		writeServiceError(w, "delete price", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// parsePrice accepts a JSON number or numeric string.
func parsePrice(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, service.ErrInvalidPrice
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, service.ErrInvalidPrice
	}
	return d, nil
}

func parsePricePair(clinic, product string) (uuid.UUID, uuid.UUID, error) {
	clinicID, err := uuid.Parse(clinic)
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("invalid clinic_id")
	}
	productID, err := uuid.Parse(product)
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("invalid product_id")
	}
	return clinicID, productID, nil
}
