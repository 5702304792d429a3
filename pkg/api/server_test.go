package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/ingresso/pkg/middleware"
	"github.com/platinummonkey/ingresso/pkg/observability"
)

func TestMethodNotAllowed(t *testing.T) {
	srv := setupServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/login", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nonesuch", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metadata", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request ID on the response")
	}
}

func TestACS_OversizedBody(t *testing.T) {
	srv := setupServer(t)

	body := bytes.Repeat([]byte("a"), maxAssertionBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/assertionConsumerService", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := middleware.NewRateLimiter(client, &middleware.RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    middleware.LoginRateLimitConfig().WindowDuration,
	}, "test_login")

	gw := &fakeGateway{}
	saml := &fakeSAML{loginURL: "https://idp.example/sso"}
	logger := observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
	srv := NewServer(gw, saml, &fakeSessionAdmin{}, limiter, logger, nil)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/login?entityID=poste", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusFound {
			t.Fatalf("request %d: expected 302, got %d", i, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/login?entityID=poste", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
}
