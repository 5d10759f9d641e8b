package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dentlab/api/internal/database"
	"github.com/dentlab/api/internal/enum"
	"github.com/dentlab/api/internal/middleware"
	"github.com/dentlab/api/internal/money"
	"github.com/dentlab/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
}

// ProductCatalog defines the catalog methods needed by product handlers.
// Satisfied by *service.PriceCatalog.
type ProductCatalog interface {
	ListProductsWithPrices(ctx context.Context, scope service.Scope) ([]database.ListActiveProductsWithPricesRow, error)
	UpsertPrice(ctx context.Context, clinicID, productID uuid.UUID, price decimal.Decimal) (database.Price, error)
}

// ProductHandler handles product endpoints.
type ProductHandler struct {
	store   ProductStore
	catalog ProductCatalog
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore, catalog ProductCatalog) *ProductHandler {
	return &ProductHandler{store: store, catalog: catalog}
}

// RegisterRoutes registers product endpoints. Expected to be mounted at /products
// behind Authenticate.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ListWithPrices)

	admin := r.With(middleware.RequireRole(enum.RoleAdmin))
	admin.Get("/all", h.ListAll)
	admin.Post("/", h.Create)
	admin.Post("/price", h.SetPrice)
	admin.Put("/{id}", h.Update)
}

// --- Request / Response types ---

type createProductRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

type updateProductRequest struct {
	Name        *string `json:"name"`
	Code        *string `json:"code"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

type productPriceRequest struct {
	ClinicID  string      `json:"clinic_id"`
	ProductID string      `json:"product_id"`
	Price     json.Number `json:"price"`
}

type productResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Code        *string   `json:"code"`
	Description *string   `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// productWithPriceResponse is a product as one clinic sees it. Price is null
// when the clinic has no price for the product.
type productWithPriceResponse struct {
	productResponse
	PriceID *uuid.UUID `json:"price_id"`
	Price   *string    `json:"price"`
}

func toProductResponse(p database.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Code:        textPtr(p.Code),
		Description: textPtr(p.Description),
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// --- Handlers ---

// ListWithPrices handles GET /products. Admins pass clinic_id to pick the price list.
func (h *ProductHandler) ListWithPrices(w http.ResponseWriter, r *http.Request) {
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

	rows, err := h.catalog.ListProductsWithPrices(r.Context(), scope)
	if err != nil {
		writeServiceError(w, "list products with prices", err)
		return
	}

	resp := make([]productWithPriceResponse, len(rows))
	for i, row := range rows {
		resp[i] = productWithPriceResponse{productResponse: toProductResponse(row.Product)}
		if row.PriceID.Valid {
			id := uuid.UUID(row.PriceID.Bytes)
			price := money.String(row.Price)
			resp[i].PriceID = &id
			resp[i].Price = &price
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListAll handles GET /products/all, including inactive products.
func (h *ProductHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context())
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "name is required")
		return
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		Name:        name,
		Code:        optionalText(req.Code),
		Description: optionalText(req.Description),
	})
	if err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// Update handles PUT /products/{id}. Omitted fields are left unchanged.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid product ID")
		return
	}

	var req updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	params := database.UpdateProductParams{
		ID:          productID,
		Code:        optionalTextPtr(req.Code),
		Description: optionalTextPtr(req.Description),
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "name cannot be empty")
			return
		}
		params.Name = pgtype.Text{String: name, Valid: true}
	}
	if req.IsActive != nil {
		params.IsActive = pgtype.Bool{Bool: *req.IsActive, Valid: true}
	}

	product, err := h.store.UpdateProduct(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "product not found")
			return
		}
		log.Printf("ERROR: update product: %v", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// SetPrice handles POST /products/price, creating or replacing a clinic's price.
func (h *ProductHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req productPriceRequest
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
		writeServiceError(w, "upsert price", err)
		return
	}

	p, err := h.catalog.UpsertPrice(r.Context(), clinicID, productID, price)
	if err != nil {
		writeServiceError(w, "upsert price", err)
		return
	}

	writeJSON(w, http.StatusOK, toPriceResponse(p))
}

// optionalText maps a blank string to NULL.
func optionalText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
