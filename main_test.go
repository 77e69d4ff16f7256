package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"tshirt-studio/compositor"
	"tshirt-studio/middleware"
	"tshirt-studio/stores/memory"
	"tshirt-studio/stores/sqlite"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "router-secret"

func bearer(t *testing.T, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() failed: %v", err)
	}
	return "Bearer " + token
}

func TestSetupRouter_RequiresAuth(t *testing.T) {
	middleware.SetSecret(testSecret)
	defer middleware.SetSecret("")
	r := setupRouter(memory.NewStore(), nil, compositor.New(compositor.NewLoader(nil), nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v2/designs", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v2/designs", nil)
	req.Header.Set("Authorization", bearer(t, "user-1"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestSetupRouter_RevisionRoutes(t *testing.T) {
	middleware.SetSecret(testSecret)
	defer middleware.SetSecret("")
	comp := compositor.New(compositor.NewLoader(nil), nil)
	const designID = "6f1c1a4e-2d7b-4c53-9a6e-1b2f3c4d5e6f"

	// memory store keeps no history
	r := setupRouter(memory.NewStore(), nil, comp)
	req := httptest.NewRequest(http.MethodGet, "/api/v2/designs/"+designID+"/revisions", nil)
	req.Header.Set("Authorization", bearer(t, "user-1"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("memory store revisions status mismatch: got %d, want %d", rec.Code, http.StatusNotFound)
	}

	store := sqlite.NewStore(filepath.Join(t.TempDir(), "designs.db"), 3)
	defer store.Close()
	r = setupRouter(store, nil, comp)

	body := []byte(`{"name":"Tee","canvasDocument":{"width":800,"height":600,"background":"black","objects":[]}}`)
	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPut, "/api/v2/designs/"+designID, bytes.NewReader(body))
		req.Header.Set("Authorization", bearer(t, "user-1"))
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated && rec.Code != http.StatusOK {
			t.Fatalf("PUT status mismatch: got %d (%s)", rec.Code, rec.Body.String())
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v2/designs/"+designID+"/revisions", nil)
	req.Header.Set("Authorization", bearer(t, "user-1"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("sqlite store revisions status mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAllowOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", false},
		{"http://localhost:3000", true},
		{"https://127.0.0.1", true},
		{"http://[::1]:5173", true},
		{"https://shop.example.com", false},
		{"::not a url", false},
	}
	for _, tt := range tests {
		if got := allowOrigin(nil, tt.origin); got != tt.want {
			t.Errorf("allowOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
