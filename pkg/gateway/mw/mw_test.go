package mw

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hirewire/interview-gateway/pkg/gateway/auth"
	"github.com/hirewire/interview-gateway/pkg/gateway/config"
)

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFrom(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if rr.Header().Get("X-Request-ID") != seen {
		t.Fatalf("header %q != context %q", rr.Header().Get("X-Request-ID"), seen)
	}
}

func TestRequestIDHonorsInbound(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req_upstream")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "req_upstream" {
		t.Fatalf("request id = %q, want req_upstream", seen)
	}
}

func adminCfg() config.Config {
	return config.Config{
		AuthMode:     config.AuthModeRequired,
		AdminAPIKeys: map[string]struct{}{"adm_test": {}},
	}
}

func TestAdminAuthRejectsMissingBearer(t *testing.T) {
	h := AdminAuth(adminCfg(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/codes", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d body = %q", rr.Code, rr.Body.String())
	}
	var resp struct {
		Error struct {
			Type  string `json:"type"`
			Param string `json:"param"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error.Type != "authentication_error" || resp.Error.Param != "Authorization" {
		t.Fatalf("error envelope = %+v", resp.Error)
	}
}

func TestAdminAuthRejectsUnknownKey(t *testing.T) {
	h := AdminAuth(adminCfg(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/codes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAdminAuthAcceptsConfiguredKey(t *testing.T) {
	var principal *auth.Principal
	h := AdminAuth(adminCfg(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = auth.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/codes", nil)
	req.Header.Set("Authorization", "Bearer adm_test")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d body = %q", rr.Code, rr.Body.String())
	}
	if principal == nil || principal.APIKey != "adm_test" {
		t.Fatalf("principal = %+v", principal)
	}
}

func TestAdminAuthDisabledPassesThrough(t *testing.T) {
	h := AdminAuth(config.Config{AuthMode: config.AuthModeDisabled}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/codes", nil))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRecoverTurnsPanicInto500(t *testing.T) {
	h := Recover(nil, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/interview/validate-code", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAccessLogRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := AccessLog(logger, false, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h = RequestID(h)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/codes", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, buf.String())
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Fatalf("status = %v", entry["status"])
	}
	if entry["path"] != "/api/admin/codes" {
		t.Fatalf("path = %v", entry["path"])
	}
	if id, _ := entry["request_id"].(string); !strings.HasPrefix(id, "req_") {
		t.Fatalf("request_id = %v", entry["request_id"])
	}
	// Forwarded headers are ignored when the proxy is not trusted;
	// httptest requests come from 192.0.2.1.
	if entry["client_ip"] != "192.0.2.1" {
		t.Fatalf("client_ip = %v", entry["client_ip"])
	}
}

func TestAccessLogTrustsForwardedHeader(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := AccessLog(logger, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, buf.String())
	}
	if entry["client_ip"] != "203.0.113.9" {
		t.Fatalf("client_ip = %v", entry["client_ip"])
	}
}

func TestCORSAllowlistedOrigin(t *testing.T) {
	cfg := config.Config{CORSAllowedOrigins: map[string]struct{}{"https://app.example.com": {}}}
	h := CORS(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/interview/validate-code", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("Allow-Origin = %q", got)
	}
}

func TestCORSUnknownOriginGetsNoHeaders(t *testing.T) {
	cfg := config.Config{CORSAllowedOrigins: map[string]struct{}{"https://app.example.com": {}}}
	h := CORS(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/interview/validate-code", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("Allow-Origin = %q for unknown origin", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := config.Config{CORSAllowedOrigins: map[string]struct{}{"https://app.example.com": {}}}
	h := CORS(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("preflight reached the inner handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/interview/validate-code", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), "POST") {
		t.Fatalf("Allow-Methods = %q", rr.Header().Get("Access-Control-Allow-Methods"))
	}

	// Unknown origins are denied outright.
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("preflight for unknown origin status = %d", rr.Code)
	}
}
