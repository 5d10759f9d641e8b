package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/dentlab/api/internal/middleware"
	"github.com/dentlab/api/internal/service"
	"github.com/google/uuid"
)

// Error codes returned in the "code" field of every error body.
const (
	codeInvalidRequest = "INVALID_REQUEST"
	codeUnauthorized   = "UNAUTHORIZED"
	codeAccessDenied   = "ACCESS_DENIED"
	codeNotFound       = "NOT_FOUND"
	codeInternal       = "INTERNAL_ERROR"
)

type errorResponse struct {
	Error     string     `json:"error"`
	Code      string     `json:"code"`
	ProductID *uuid.UUID `json:"product_id,omitempty"`
}

// serviceErrors maps domain errors to a status and a stable client code.
// Checked in order with errors.Is.
var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrEmptyOrder, http.StatusBadRequest, "EMPTY_ORDER"},
	{service.ErrMissingPatient, http.StatusBadRequest, "MISSING_PATIENT"},
	{service.ErrMissingDeadline, http.StatusBadRequest, "MISSING_DEADLINE"},
	{service.ErrInvalidItem, http.StatusBadRequest, "INVALID_ITEM"},
	{service.ErrUnpricedProduct, http.StatusBadRequest, "UNPRICED_PRODUCT"},
	{service.ErrNegativePrice, http.StatusBadRequest, "INVALID_PRICE"},
	{service.ErrInvalidPrice, http.StatusBadRequest, "INVALID_PRICE"},
	{service.ErrClinicRequired, http.StatusBadRequest, "CLINIC_REQUIRED"},
	{service.ErrSearchTermRequired, http.StatusBadRequest, "SEARCH_TERM_REQUIRED"},
	{service.ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS"},
	{service.ErrClinicNameRequired, http.StatusBadRequest, "CLINIC_NAME_REQUIRED"},
	{service.ErrCredentialsRequired, http.StatusBadRequest, "CREDENTIALS_REQUIRED"},

	{service.ErrAccessDenied, http.StatusForbidden, codeAccessDenied},

	{service.ErrOrderNotFound, http.StatusNotFound, codeNotFound},
	{service.ErrPriceNotFound, http.StatusNotFound, codeNotFound},
	{service.ErrProductNotFound, http.StatusNotFound, codeNotFound},
	{service.ErrClinicNotFound, http.StatusNotFound, codeNotFound},

	{service.ErrAlreadyPaid, http.StatusConflict, "ALREADY_PAID"},
	{service.ErrCannotCancelPaid, http.StatusConflict, "CANNOT_CANCEL_PAID"},
	{service.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{service.ErrPriceExists, http.StatusConflict, "PRICE_EXISTS"},
	{service.ErrUsernameTaken, http.StatusConflict, "USERNAME_TAKEN"},

	{service.ErrOrderNumberConflict, http.StatusServiceUnavailable, "ORDER_NUMBER_CONFLICT"},
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeServiceError renders a service error. Unknown errors are logged under op
// and surfaced as an opaque 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	for _, e := range serviceErrors {
		if !errors.Is(err, e.err) {
			continue
		}
		resp := errorResponse{Error: err.Error(), Code: e.code}
		var unpriced *service.UnpricedProductError
		if errors.As(err, &unpriced) {
			resp.ProductID = &unpriced.ProductID
		}
		if e.status == http.StatusServiceUnavailable {
			// The wrapped cause carries SQL details.
			log.Printf("WARN: %s: %v", op, err)
			resp.Error = e.err.Error()
		}
		writeJSON(w, e.status, resp)
		return
	}

	log.Printf("ERROR: %s: %v", op, err)
	writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
}

// principalFrom builds the service principal from the authenticated claims.
func principalFrom(r *http.Request) (service.Principal, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return service.Principal{}, false
	}
	return service.Principal{
		UserID:   claims.UserID,
		Role:     claims.Role,
		ClinicID: claims.ClinicID,
	}, true
}

// requestScope applies the optional clinic_id query filter to the caller's scope.
func requestScope(r *http.Request, p service.Principal) (service.Scope, error) {
	s := r.URL.Query().Get("clinic_id")
	if s == "" {
		return p.Scope(), nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return service.Scope{}, err
	}
	return p.Narrow(&id), nil
}

// parsePaging reads limit and offset. Invalid values fall back to the service defaults.
func parsePaging(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		offset = v
	}
	return limit, offset
}
