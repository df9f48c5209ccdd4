package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeDisabled AuthMode = "disabled"
)

type Config struct {
	Addr string

	// Admin endpoints require one of these bearer keys unless AuthMode is
	// disabled (dev only).
	AuthMode     AuthMode
	AdminAPIKeys map[string]struct{}

	// If true, client identity may be derived from proxy headers like X-Forwarded-For.
	// This should only be enabled when the gateway is deployed behind a trusted proxy/LB.
	TrustProxyHeaders bool

	// Persistence. Empty DatabaseURL selects the in-memory store.
	DatabaseURL string

	// AI backend. Empty GeminiAPIKey disables generation; fallback messages
	// are served instead.
	GeminiAPIKey string
	GeminiModel  string
	IntelTimeout time.Duration

	// Recording storage. S3 is used when all S3 settings are present,
	// local disk otherwise.
	RecordingsDir  string
	S3Bucket       string
	S3Region       string
	AWSAccessKey   string
	AWSSecretKey   string
	DownloadURLTTL time.Duration

	MaxBodyBytes   int64
	MaxUploadBytes int64

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Live WebSocket mode (/ws).
	WSMaxMessageBytes    int64
	WSMaxAudioChunkBytes int
	WSPingInterval       time.Duration
	WSWriteTimeout       time.Duration
	WSReadTimeout        time.Duration
	WSSendQueueSize      int

	// Background AI task supervision.
	DispatchDrainTimeout time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                 envOr("INTERVIEW_ADDR", ":8080"),
		AuthMode:             AuthMode(envOr("INTERVIEW_AUTH_MODE", string(AuthModeRequired))),
		AdminAPIKeys:         make(map[string]struct{}),
		TrustProxyHeaders:    envBoolOr("INTERVIEW_TRUST_PROXY_HEADERS", false),
		DatabaseURL:          strings.TrimSpace(os.Getenv("INTERVIEW_DATABASE_URL")),
		GeminiAPIKey:         strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:          envOr("INTERVIEW_GEMINI_MODEL", "gemini-1.5-flash"),
		IntelTimeout:         envDurationOr("INTERVIEW_INTEL_TIMEOUT", 30*time.Second),
		RecordingsDir:        envOr("INTERVIEW_RECORDINGS_DIR", "recordings"),
		S3Bucket:             strings.TrimSpace(os.Getenv("AWS_S3_BUCKET_NAME")),
		S3Region:             envOr("AWS_REGION", "us-east-1"),
		AWSAccessKey:         strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID")),
		AWSSecretKey:         strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY")),
		DownloadURLTTL:       envDurationOr("INTERVIEW_DOWNLOAD_URL_TTL", time.Hour),
		MaxBodyBytes:         envInt64Or("INTERVIEW_MAX_BODY_BYTES", 1<<20),     // 1 MiB
		MaxUploadBytes:       envInt64Or("INTERVIEW_MAX_UPLOAD_BYTES", 256<<20), // 256 MiB
		CORSAllowedOrigins:   make(map[string]struct{}),
		WSMaxMessageBytes:    envInt64Or("INTERVIEW_WS_MAX_MESSAGE_BYTES", 1<<20),
		WSMaxAudioChunkBytes: envIntOr("INTERVIEW_WS_MAX_AUDIO_CHUNK_BYTES", 512<<10),
		WSPingInterval:       envDurationOr("INTERVIEW_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:       envDurationOr("INTERVIEW_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadTimeout:        envDurationOr("INTERVIEW_WS_READ_TIMEOUT", 0),
		WSSendQueueSize:      envIntOr("INTERVIEW_WS_SEND_QUEUE_SIZE", 32),
		DispatchDrainTimeout: envDurationOr("INTERVIEW_DISPATCH_DRAIN_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout:    envDurationOr("INTERVIEW_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:          envDurationOr("INTERVIEW_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:  envDurationOr("INTERVIEW_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("INTERVIEW_AUTH_MODE must be one of required|disabled")
	}

	for _, key := range splitCSV(os.Getenv("INTERVIEW_ADMIN_API_KEYS")) {
		cfg.AdminAPIKeys[key] = struct{}{}
	}

	for _, origin := range splitCSV(os.Getenv("INTERVIEW_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.IntelTimeout <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_INTEL_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(cfg.RecordingsDir) == "" {
		return Config{}, fmt.Errorf("INTERVIEW_RECORDINGS_DIR must not be empty")
	}
	if cfg.DownloadURLTTL <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_DOWNLOAD_URL_TTL must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_MAX_BODY_BYTES must be > 0")
	}
	if cfg.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.WSMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_WS_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.WSMaxAudioChunkBytes <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_WS_MAX_AUDIO_CHUNK_BYTES must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSReadTimeout < 0 {
		return Config{}, fmt.Errorf("INTERVIEW_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.WSSendQueueSize <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_WS_SEND_QUEUE_SIZE must be > 0")
	}
	if cfg.DispatchDrainTimeout <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_DISPATCH_DRAIN_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	if cfg.S3Bucket != "" && (cfg.AWSAccessKey == "" || cfg.AWSSecretKey == "") {
		return Config{}, fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set when AWS_S3_BUCKET_NAME is set")
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.AdminAPIKeys) == 0 {
		return Config{}, fmt.Errorf("INTERVIEW_ADMIN_API_KEYS must be set when INTERVIEW_AUTH_MODE=required")
	}

	return cfg, nil
}

// S3Enabled reports whether recordings go to S3 rather than local disk.
func (c Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
