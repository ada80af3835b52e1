package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable the loader reads so defaults apply.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
		"MAX_HEADER_BYTES", "GIN_MODE", "LOG_LEVEL", "LOG_PRETTY",
		"DB_PATH", "MAX_MESSAGE_LEN", "HISTORY_LIMIT", "CONTEXT_LIMIT", "FLAGGED_LIMIT",
		"CANCEL_WINDOW", "RATE_WINDOW", "RATE_MAX",
		"SPAM_MAX", "SPAM_WINDOW", "INJECTION_MAX", "INJECTION_WINDOW",
		"LLM_API_KEY", "LLM_API_URL", "LLM_MODEL", "LLM_MAX_TOKENS",
		"LLM_TEMPERATURE", "LLM_TOP_P", "LLM_TIMEOUT",
		"SEND_URL", "SEND_AUTH_KEY", "ADMIN_ID",
		"CORS_ALLOWED_ORIGINS", "ENABLE_HSTS", "HSTS_MAX_AGE",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_SERVICE_NAME", "OTEL_TRACES_SAMPLER_ARG",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with defaults: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.MaxMessageLen != 1000 {
		t.Errorf("MaxMessageLen = %d, want 1000", cfg.MaxMessageLen)
	}
	if cfg.HistoryLimit != 50 || cfg.ContextLimit != 15 || cfg.FlaggedLimit != 10 {
		t.Errorf("limits = %d/%d/%d, want 50/15/10", cfg.HistoryLimit, cfg.ContextLimit, cfg.FlaggedLimit)
	}
	if cfg.CancelWindow != 3*time.Hour {
		t.Errorf("CancelWindow = %v, want 3h", cfg.CancelWindow)
	}
	if cfg.RateWindow != 15*time.Second || cfg.RateMax != 5 {
		t.Errorf("rate limit = %v/%d, want 15s/5", cfg.RateWindow, cfg.RateMax)
	}
	if cfg.Abuse.SpamMaxPerWindow != 20 || cfg.Abuse.SpamWindow != time.Minute {
		t.Errorf("spam = %d/%v, want 20/1m", cfg.Abuse.SpamMaxPerWindow, cfg.Abuse.SpamWindow)
	}
	if cfg.Abuse.InjectionMax != 3 || cfg.Abuse.InjectionWindow != time.Hour {
		t.Errorf("injection = %d/%v, want 3/1h", cfg.Abuse.InjectionMax, cfg.Abuse.InjectionWindow)
	}
	if cfg.LLM.APIKey != "" {
		t.Errorf("LLM.APIKey should default to empty (demo mode)")
	}
	if cfg.LLM.Temperature != 0.7 || cfg.LLM.TopP != 0.9 || cfg.LLM.MaxTokens != 1000 {
		t.Errorf("LLM params = %v/%v/%d", cfg.LLM.Temperature, cfg.LLM.TopP, cfg.LLM.MaxTokens)
	}
}

func TestLoad_EnvOverridesAndNormalization(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "WARNING") // normalized to warn
	t.Setenv("GIN_MODE", "bogus")    // normalized to release
	t.Setenv("LLM_API_URL", "https://api.example.com/v1/") // trailing slash stripped
	t.Setenv("SPAM_MAX", "7")
	t.Setenv("INJECTION_WINDOW", "30m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q, want release", cfg.GinMode)
	}
	if strings.HasSuffix(cfg.LLM.BaseURL, "/") {
		t.Errorf("BaseURL not trimmed: %q", cfg.LLM.BaseURL)
	}
	if cfg.Abuse.SpamMaxPerWindow != 7 {
		t.Errorf("SpamMaxPerWindow = %d", cfg.Abuse.SpamMaxPerWindow)
	}
	if cfg.Abuse.InjectionWindow != 30*time.Minute {
		t.Errorf("InjectionWindow = %v", cfg.Abuse.InjectionWindow)
	}
	if got := len(cfg.CORS.AllowedOrigins); got != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"zero max message len", "MAX_MESSAGE_LEN", "0"},
		{"context exceeds history", "CONTEXT_LIMIT", "100"},
		{"zero rate max", "RATE_MAX", "0"},
		{"zero spam max", "SPAM_MAX", "0"},
		{"zero injection max", "INJECTION_MAX", "0"},
		{"temperature out of range", "LLM_TEMPERATURE", "3.5"},
		{"top_p out of range", "LLM_TOP_P", "1.5"},
		{"bad sample ratio", "OTEL_TRACES_SAMPLER_ARG", "2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error for %s=%s", tc.key, tc.val)
			}
		})
	}
}

func TestMustLoad_PanicsOnInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	_ = MustLoad()
}
