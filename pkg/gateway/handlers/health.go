package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/hirewire/interview-gateway/pkg/gateway/config"
	"github.com/hirewire/interview-gateway/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK        bool     `json:"ok"`
		AuthMode  string   `json:"auth_mode"`
		Store     string   `json:"store"`
		AIEnabled bool     `json:"ai_enabled"`
		S3Enabled bool     `json:"s3_enabled"`
		Issues    []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	if h.Lifecycle != nil && h.Lifecycle.IsDraining() {
		issues = append(issues, "draining")
	}

	switch h.Config.AuthMode {
	case config.AuthModeRequired, config.AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}
	if h.Config.AuthMode == config.AuthModeRequired && len(h.Config.AdminAPIKeys) == 0 {
		issues = append(issues, "auth_mode=required but no admin api keys configured")
	}
	if h.Config.MaxBodyBytes <= 0 || h.Config.MaxUploadBytes <= 0 {
		issues = append(issues, "body limits must be > 0")
	}
	if h.Config.ReadHeaderTimeout <= 0 || h.Config.ReadTimeout <= 0 {
		issues = append(issues, "timeouts must be > 0")
	}
	if h.Config.WSPingInterval <= 0 || h.Config.WSWriteTimeout <= 0 {
		issues = append(issues, "websocket intervals must be > 0")
	}

	storeKind := "memory"
	if h.Config.DatabaseURL != "" {
		storeKind = "postgres"
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:        ok,
		AuthMode:  string(h.Config.AuthMode),
		Store:     storeKind,
		AIEnabled: h.Config.GeminiAPIKey != "",
		S3Enabled: h.Config.S3Enabled(),
		Issues:    issues,
	})
}
