package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()

	run := func(t *testing.T, authHeader string) (*httptest.ResponseRecorder, bool, interface{}) {
		var sawPrincipal bool
		var principal interface{}
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r.Context())
			sawPrincipal = ok
			principal = p
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/purchases", nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		rec := httptest.NewRecorder()
		AuthMiddleware(testSecret)(next).ServeHTTP(rec, req)
		return rec, sawPrincipal, principal
	}

	t.Run("valid token places principal in context", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{"sub": userID.String(), "role": "admin"})
		rec, sawPrincipal, _ := run(t, "Bearer "+token)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !sawPrincipal {
			t.Fatal("expected principal in context")
		}
	})

	t.Run("missing role defaults to buyer", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{"sub": userID.String()})
		req := httptest.NewRequest(http.MethodGet, "/purchases", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		AuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r.Context())
			if !ok || p.Role != "buyer" || p.UserID != userID {
				t.Errorf("unexpected principal: %+v ok=%t", p, ok)
			}
		})).ServeHTTP(rec, req)
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		rec, sawPrincipal, _ := run(t, "")
		if rec.Code != http.StatusUnauthorized || sawPrincipal {
			t.Fatalf("expected 401 without principal, got %d", rec.Code)
		}
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		token := signToken(t, "other-secret", jwt.MapClaims{"sub": userID.String()})
		rec, _, _ := run(t, "Bearer "+token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("non-uuid subject is rejected", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{"sub": "user_42"})
		rec, _, _ := run(t, "Bearer "+token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("malformed header is rejected", func(t *testing.T) {
		rec, _, _ := run(t, "Token abc")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}
