package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func TestAuthenticate(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	valid := signedToken(t, testSecret, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	wrongKey := signedToken(t, "other-secret", jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	expired := signedToken(t, testSecret, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantUserID int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, 42},
		{"missing header", "", http.StatusUnauthorized, 0},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, 0},
		{"wrong signing key", "Bearer " + wrongKey, http.StatusUnauthorized, 0},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUserID int
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, err := GetUserIDFromContext(r.Context())
				if err != nil {
					t.Errorf("GetUserIDFromContext after Authenticate: %v", err)
				}
				gotUserID = id
			})

			req := httptest.NewRequest(http.MethodGet, "/events", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			auth.Authenticate(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && gotUserID != tt.wantUserID {
				t.Errorf("user id = %d, want %d", gotUserID, tt.wantUserID)
			}
		})
	}
}

func TestOptionalLetsAnonymousThrough(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, err := GetUserIDFromContext(r.Context()); err == nil {
			t.Error("anonymous request should carry no identity")
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := httptest.NewRecorder()
	auth.Optional(next).ServeHTTP(rec, req)

	if !called {
		t.Fatal("Optional blocked an anonymous request")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestGetUserIDFromContextRejectsBadClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
	}{
		{"missing user_id", jwt.MapClaims{"name": "Marta"}},
		{"non-numeric user_id", jwt.MapClaims{"user_id": "42"}},
		{"fractional user_id", jwt.MapClaims{"user_id": 4.5}},
		{"zero user_id", jwt.MapClaims{"user_id": float64(0)}},
		{"negative user_id", jwt.MapClaims{"user_id": float64(-3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := withClaims(httptest.NewRequest(http.MethodGet, "/", nil).Context(), tt.claims)
			if _, err := GetUserIDFromContext(ctx); err == nil {
				t.Error("expected an error for invalid claims")
			}
		})
	}
}
