package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInternalKeyMiddleware(t *testing.T) {
	var reached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name          string
		configuredKey string
		providedKey   string
		wantStatus    int
		wantReached   bool
	}{
		{name: "matching key", configuredKey: "secret", providedKey: "secret", wantStatus: http.StatusOK, wantReached: true},
		{name: "wrong key", configuredKey: "secret", providedKey: "guess", wantStatus: http.StatusUnauthorized},
		{name: "missing header", configuredKey: "secret", wantStatus: http.StatusUnauthorized},
		{name: "empty configured key rejects everything", providedKey: "", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			handler := InternalKeyMiddleware(tt.configuredKey)(next)

			req := httptest.NewRequest(http.MethodPost, "/wallets/internal/sync", nil)
			if tt.providedKey != "" {
				req.Header.Set("X-Internal-Api-Key", tt.providedKey)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if reached != tt.wantReached {
				t.Fatalf("handler reached = %t, want %t", reached, tt.wantReached)
			}
		})
	}
}

func TestGetAuthSubject(t *testing.T) {
	ctx := context.WithValue(context.Background(), authSubjectKey, "user_abc123")
	subject, ok := GetAuthSubject(ctx)
	if !ok || subject != "user_abc123" {
		t.Fatalf("GetAuthSubject = (%q, %t), want (user_abc123, true)", subject, ok)
	}

	if _, ok := GetAuthSubject(context.Background()); ok {
		t.Fatal("expected missing subject on a bare context")
	}
}

func TestAuthMiddleware_RejectsMissingAndMalformedHeaders(t *testing.T) {
	handler := AuthMiddleware("http://unused.invalid/jwks")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached without a valid token")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "not a bearer token", header: "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/wallets", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestParseRSAPublicKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	n := base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes())

	parsed, err := parseRSAPublicKey(n, e)
	if err != nil {
		t.Fatalf("parseRSAPublicKey returned error: %v", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		t.Fatalf("expected *rsa.PublicKey, got %T", parsed)
	}
	if pub.N.Cmp(key.PublicKey.N) != 0 || pub.E != key.PublicKey.E {
		t.Fatal("parsed key does not match the original")
	}

	if _, err := parseRSAPublicKey("!!!", e); err == nil {
		t.Fatal("expected error for invalid modulus encoding")
	}
}
