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
	"github.com/dentlab/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ClinicServicer defines the service methods needed by clinic handlers.
// Satisfied by *service.ClinicService; narrow interface for testability.
type ClinicServicer interface {
	CreateClinic(ctx context.Context, req service.CreateClinicRequest) (database.Clinic, *database.User, error)
	SetClinicLogin(ctx context.Context, clinicID uuid.UUID, username, password string) (database.User, error)
}

// ClinicStore defines the database methods needed by clinic read/update handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ClinicStore interface {
	ListClinics(ctx context.Context) ([]database.Clinic, error)
	GetClinic(ctx context.Context, id uuid.UUID) (database.Clinic, error)
	UpdateClinic(ctx context.Context, arg database.UpdateClinicParams) (database.Clinic, error)
}

// ClinicHandler handles clinic administration endpoints.
type ClinicHandler struct {
	svc   ClinicServicer
	store ClinicStore
}

// NewClinicHandler creates a new ClinicHandler.
func NewClinicHandler(svc ClinicServicer, store ClinicStore) *ClinicHandler {
	return &ClinicHandler{svc: svc, store: store}
}

// RegisterRoutes registers clinic endpoints. Expected to be mounted at /clinics
// behind Authenticate.
func (h *ClinicHandler) RegisterRoutes(r chi.Router) {
	admin := r.With(middleware.RequireRole(enum.RoleAdmin))
	admin.Get("/", h.List)
	admin.Post("/", h.Create)
	r.With(middleware.RequireClinicAccess).Get("/{cid}", h.Get)
	admin.Put("/{cid}", h.Update)
	admin.Post("/{cid}/user", h.SetLogin)
}

// --- Request / Response types ---

type createClinicRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type updateClinicRequest struct {
	Name     *string `json:"name"`
	Address  *string `json:"address"`
	Phone    *string `json:"phone"`
	Email    *string `json:"email"`
	IsActive *bool   `json:"is_active"`
}

type setLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type clinicResponse struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Address   *string       `json:"address"`
	Phone     *string       `json:"phone"`
	Email     *string       `json:"email"`
	IsActive  bool          `json:"is_active"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	User      *userResponse `json:"user,omitempty"`
}

func toClinicResponse(c database.Clinic) clinicResponse {
	return clinicResponse{
		ID:        c.ID,
		Name:      c.Name,
		Address:   textPtr(c.Address),
		Phone:     textPtr(c.Phone),
		Email:     textPtr(c.Email),
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// --- Handlers ---

// List handles GET /clinics.
func (h *ClinicHandler) List(w http.ResponseWriter, r *http.Request) {
	clinics, err := h.store.ListClinics(r.Context())
	if err != nil {
		log.Printf("ERROR: list clinics: %v", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
		return
	}

	resp := make([]clinicResponse, len(clinics))
	for i, c := range clinics {
		resp[i] = toClinicResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /clinics/{cid}.
func (h *ClinicHandler) Get(w http.ResponseWriter, r *http.Request) {
	clinicID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid clinic ID")
		return
	}

	clinic, err := h.store.GetClinic(r.Context(), clinicID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "clinic not found")
			return
		}
		log.Printf("ERROR: get clinic: %v", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toClinicResponse(clinic))
}

// Create handles POST /clinics. A username and password also create the clinic login.
func (h *ClinicHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClinicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	clinic, user, err := h.svc.CreateClinic(r.Context(), service.CreateClinicRequest{
		Name:     req.Name,
		Address:  req.Address,
		Phone:    req.Phone,
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, "create clinic", err)
		return
	}

	resp := toClinicResponse(clinic)
	if user != nil {
		u := toUserResponse(*user)
		resp.User = &u
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Update handles PUT /clinics/{cid}. Omitted fields are left unchanged.
func (h *ClinicHandler) Update(w http.ResponseWriter, r *http.Request) {
	clinicID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid clinic ID")
		return
	}

	var req updateClinicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	params := database.UpdateClinicParams{
		ID:      clinicID,
		Address: optionalTextPtr(req.Address),
		Phone:   optionalTextPtr(req.Phone),
		Email:   optionalTextPtr(req.Email),
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeServiceError(w, "update clinic", service.ErrClinicNameRequired)
			return
		}
		params.Name = pgtype.Text{String: name, Valid: true}
	}
	if req.IsActive != nil {
		params.IsActive = pgtype.Bool{Bool: *req.IsActive, Valid: true}
	}

	clinic, err := h.store.UpdateClinic(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "clinic not found")
			return
		}
		log.Printf("ERROR: update clinic: %v", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toClinicResponse(clinic))
}

// SetLogin handles POST /clinics/{cid}/user.
func (h *ClinicHandler) SetLogin(w http.ResponseWriter, r *http.Request) {
	clinicID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid clinic ID")
		return
	}

	var req setLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	user, err := h.svc.SetClinicLogin(r.Context(), clinicID, req.Username, req.Password)
	if err != nil {
		writeServiceError(w, "set clinic login", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// --- Helpers ---

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

// optionalTextPtr maps an omitted field to NULL so COALESCE keeps the stored value.
func optionalTextPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: strings.TrimSpace(*s), Valid: true}
}
