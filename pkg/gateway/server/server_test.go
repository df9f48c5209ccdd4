package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hirewire/interview-gateway/pkg/gateway/config"
	"github.com/hirewire/interview-gateway/pkg/interview/media"
	"github.com/hirewire/interview-gateway/pkg/interview/store/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cfg := config.Config{
		AuthMode:     config.AuthModeRequired,
		AdminAPIKeys: map[string]struct{}{"adm_test": {}},

		CORSAllowedOrigins: map[string]struct{}{},
		IntelTimeout:       time.Second,
		MaxUploadBytes:     1 << 20,
	}
	local, err := media.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	s := New(cfg, logger, Deps{
		Store: memory.New(),
		Media: local,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Dispatcher().Shutdown(ctx)
	})
	return s
}

func TestServerUnknownRouteReturnsJSON404(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
	if !strings.Contains(rr.Body.String(), `"type":"not_found_error"`) {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID header")
	}
}

func TestServerHealthz(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestServerAdminSubtreeRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/codes", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated admin request: status=%d body=%q", rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/codes", nil)
	req.Header.Set("Authorization", "Bearer adm_test")
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("authenticated admin request: status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestServerCandidateRoutesAreOpen(t *testing.T) {
	s := newTestServer(t)

	// No bearer token: candidate routes answer with domain errors, not 401s.
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/interview/session/tok-missing", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "session_not_found") {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
}
