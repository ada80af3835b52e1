// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, LLM credentials, abuse
// thresholds, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "lumo-assistant")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LLMConfig holds the settings for the upstream chat-completion provider.
// The API is OpenAI-compatible; BaseURL may point at any conforming endpoint.
type LLMConfig struct {
	APIKey      string  // LLM_API_KEY (empty → demo mode, no upstream calls)
	BaseURL     string  // LLM_API_URL
	Model       string  // LLM_MODEL
	MaxTokens   int     // LLM_MAX_TOKENS
	Temperature float64 // LLM_TEMPERATURE
	TopP        float64 // LLM_TOP_P
	Timeout     time.Duration
}

// DeliveryConfig holds the settings for the outbound message transport
// (the messaging gateway that actually delivers replies to users).
type DeliveryConfig struct {
	SendURL string // SEND_URL
	AuthKey string // SEND_AUTH_KEY (shared secret, also guards admin routes)
	AdminID string // ADMIN_ID (identity that receives operator notifications)
}

// AbuseConfig holds spam and injection-attempt thresholds. The original
// deployment variants disagreed on exact values, so all of them are
// configurable rather than fixed.
type AbuseConfig struct {
	SpamMaxPerWindow int           // SPAM_MAX (messages per window before auto-block)
	SpamWindow       time.Duration // SPAM_WINDOW
	InjectionMax     int           // INJECTION_MAX (attempts before auto-block)
	InjectionWindow  time.Duration // INJECTION_WINDOW
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath        string // SQLite path
	MaxMessageLen int    // max chars accepted per user message (after trim)
	HistoryLimit  int    // retained messages per user
	ContextLimit  int    // recent messages fed to the model
	FlaggedLimit  int    // flagged messages merged into context
	CancelWindow  time.Duration

	// Chat endpoint rate limiting (per IP)
	RateWindow time.Duration
	RateMax    int

	// Abuse thresholds (webhook path)
	Abuse AbuseConfig

	// Upstream / outbound
	LLM      LLMConfig
	Delivery DeliveryConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath:        getenv("DB_PATH", "app.db"),
		MaxMessageLen: getint("MAX_MESSAGE_LEN", 1000),
		HistoryLimit:  getint("HISTORY_LIMIT", 50),
		ContextLimit:  getint("CONTEXT_LIMIT", 15),
		FlaggedLimit:  getint("FLAGGED_LIMIT", 10),
		CancelWindow:  getdur("CANCEL_WINDOW", 3*time.Hour),

		// Chat endpoint rate limiting
		RateWindow: getdur("RATE_WINDOW", 15*time.Second),
		RateMax:    getint("RATE_MAX", 5),

		// Abuse thresholds
		Abuse: AbuseConfig{
			SpamMaxPerWindow: getint("SPAM_MAX", 20),
			SpamWindow:       getdur("SPAM_WINDOW", time.Minute),
			InjectionMax:     getint("INJECTION_MAX", 3),
			InjectionWindow:  getdur("INJECTION_WINDOW", time.Hour),
		},

		// Upstream LLM
		LLM: LLMConfig{
			APIKey:      getenv("LLM_API_KEY", ""),
			BaseURL:     getenv("LLM_API_URL", "https://api.cerebras.ai/v1"),
			Model:       getenv("LLM_MODEL", "llama3.1-8b"),
			MaxTokens:   getint("LLM_MAX_TOKENS", 1000),
			Temperature: getfloat("LLM_TEMPERATURE", 0.7),
			TopP:        getfloat("LLM_TOP_P", 0.9),
			Timeout:     getdur("LLM_TIMEOUT", 30*time.Second),
		},

		// Outbound delivery
		Delivery: DeliveryConfig{
			SendURL: getenv("SEND_URL", "http://localhost:5000/send"),
			AuthKey: getenv("SEND_AUTH_KEY", ""),
			AdminID: getenv("ADMIN_ID", ""),
		},

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "lumo-assistant"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.LLM.BaseURL), "/")

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.MaxMessageLen < 1 {
		return cfg, errors.New("MAX_MESSAGE_LEN must be >= 1")
	}
	if cfg.HistoryLimit < 1 || cfg.ContextLimit < 1 || cfg.FlaggedLimit < 0 {
		return cfg, errors.New("history/context limits must be positive (FLAGGED_LIMIT may be 0)")
	}
	if cfg.ContextLimit > cfg.HistoryLimit {
		return cfg, errors.New("CONTEXT_LIMIT must not exceed HISTORY_LIMIT")
	}
	if cfg.CancelWindow <= 0 {
		return cfg, errors.New("CANCEL_WINDOW must be > 0")
	}
	if cfg.RateWindow <= 0 || cfg.RateMax < 1 {
		return cfg, errors.New("RATE_WINDOW must be > 0 and RATE_MAX >= 1")
	}
	if cfg.Abuse.SpamMaxPerWindow < 1 || cfg.Abuse.SpamWindow <= 0 {
		return cfg, errors.New("SPAM_MAX must be >= 1 and SPAM_WINDOW > 0")
	}
	if cfg.Abuse.InjectionMax < 1 || cfg.Abuse.InjectionWindow <= 0 {
		return cfg, errors.New("INJECTION_MAX must be >= 1 and INJECTION_WINDOW > 0")
	}
	if cfg.LLM.MaxTokens < 1 {
		return cfg, errors.New("LLM_MAX_TOKENS must be >= 1")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return cfg, errors.New("LLM_TEMPERATURE must be in [0,2]")
	}
	if cfg.LLM.TopP < 0 || cfg.LLM.TopP > 1 {
		return cfg, errors.New("LLM_TOP_P must be in [0,1]")
	}
	if cfg.LLM.Timeout <= 0 {
		return cfg, errors.New("LLM_TIMEOUT must be > 0")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
