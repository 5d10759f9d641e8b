package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dentlab/api/internal/auth"
	"github.com/dentlab/api/internal/middleware"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func mustNotCall(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	userID := uuid.New()
	clinicID := uuid.New()
	token, _ := auth.GenerateToken(testSecret, userID, clinicID, "clinic")

	handler := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			t.Fatal("expected claims in context")
		}
		if claims.UserID != userID {
			t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
		}
		if claims.ClinicID != clinicID {
			t.Errorf("clinic ID: got %v, want %v", claims.ClinicID, clinicID)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	handler := middleware.Authenticate(testSecret)(mustNotCall(t))

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "UNAUTHORIZED" {
		t.Errorf("code: got %q, want UNAUTHORIZED", body["code"])
	}
}

func TestAuthMiddleware_WrongScheme(t *testing.T) {
	token, _ := auth.GenerateToken(testSecret, uuid.New(), uuid.Nil, "admin")
	handler := middleware.Authenticate(testSecret)(mustNotCall(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Basic "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	handler := middleware.Authenticate(testSecret)(mustNotCall(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRequireClinicAccess_MatchingClinic(t *testing.T) {
	clinicID := uuid.New()
	token, _ := auth.GenerateToken(testSecret, uuid.New(), clinicID, "clinic")

	handler := middleware.Authenticate(testSecret)(middleware.RequireClinicAccess(okHandler()))

	req := httptest.NewRequest("GET", "/clinics/"+clinicID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetPathValue("cid", clinicID.String())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRequireClinicAccess_OtherClinic(t *testing.T) {
	clinicID := uuid.New()
	otherClinicID := uuid.New()
	token, _ := auth.GenerateToken(testSecret, uuid.New(), clinicID, "clinic")

	handler := middleware.Authenticate(testSecret)(middleware.RequireClinicAccess(mustNotCall(t)))

	req := httptest.NewRequest("GET", "/clinics/"+otherClinicID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetPathValue("cid", otherClinicID.String())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestRequireClinicAccess_InvalidClinicID(t *testing.T) {
	token, _ := auth.GenerateToken(testSecret, uuid.New(), uuid.New(), "clinic")

	handler := middleware.Authenticate(testSecret)(middleware.RequireClinicAccess(mustNotCall(t)))

	req := httptest.NewRequest("GET", "/clinics/nope", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetPathValue("cid", "nope")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRequireClinicAccess_AdminBypassesCheck(t *testing.T) {
	otherClinicID := uuid.New()
	token, _ := auth.GenerateToken(testSecret, uuid.New(), uuid.Nil, "admin")

	handler := middleware.Authenticate(testSecret)(middleware.RequireClinicAccess(okHandler()))

	req := httptest.NewRequest("GET", "/clinics/"+otherClinicID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetPathValue("cid", otherClinicID.String())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d (admin should bypass clinic check)", rr.Code, http.StatusOK)
	}
}

func TestRequireRole(t *testing.T) {
	token, _ := auth.GenerateToken(testSecret, uuid.New(), uuid.New(), "clinic")

	// clinic login trying to reach an admin-only endpoint
	handler := middleware.Authenticate(testSecret)(middleware.RequireRole("admin")(mustNotCall(t)))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestRequireRole_Allowed(t *testing.T) {
	token, _ := auth.GenerateToken(testSecret, uuid.New(), uuid.Nil, "admin")

	handler := middleware.Authenticate(testSecret)(middleware.RequireRole("admin")(okHandler()))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRequireRole_NoClaims(t *testing.T) {
	handler := middleware.RequireRole("admin")(mustNotCall(t))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
