// Package config handles environment-based configuration loading.
package config

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"golang.org/x/net/http/httpguts"

	"github.com/Resinat/Inlay/internal/block"
	"github.com/Resinat/Inlay/internal/engine"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "INLAY_"

// Gateway modes.
const (
	GatewayModeHTTP    = "http"
	GatewayModeFixture = "fixture"
)

// EnvConfig holds all environment-variable-driven settings.
type EnvConfig struct {
	// Directories
	StateDir string `env:"STATE_DIR" envDefault:"/var/lib/inlay"`

	// Network
	ListenAddress   string `env:"LISTEN_ADDRESS" envDefault:"0.0.0.0"`
	Port            int    `env:"PORT" envDefault:"2270"`
	APIMaxBodyBytes int    `env:"API_MAX_BODY_BYTES" envDefault:"1048576"`

	// Auth (must be defined; an empty admin token disables API auth)
	AdminToken   string `env:"ADMIN_TOKEN,required"`
	ProjectToken string `env:"PROJECT_TOKEN,required"`

	// Gateway
	GatewayMode        string        `env:"GATEWAY_MODE" envDefault:"http"`
	GatewayBaseURL     string        `env:"GATEWAY_BASE_URL" envDefault:"https://api.exponea.com"`
	GatewayAuthHeader  string        `env:"GATEWAY_AUTH_HEADER" envDefault:"Authorization"`
	GatewayAuthValue   string        `env:"GATEWAY_AUTH_VALUE"`
	GatewayFixturePath string        `env:"GATEWAY_FIXTURE_PATH"`
	FetchTimeout       time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	FetchAttempts      int           `env:"FETCH_ATTEMPTS" envDefault:"2"`

	// Selection
	AwaitTimeout          time.Duration `env:"AWAIT_TIMEOUT" envDefault:"10s"`
	AwaitMode             string        `env:"AWAIT_MODE" envDefault:"BOUNDED"`
	SupportedContentTypes []string      `env:"SUPPORTED_CONTENT_TYPES" envDefault:"html" envSeparator:","`
	AutoLoadPlaceholders  []string      `env:"AUTO_LOAD_PLACEHOLDERS" envSeparator:","`
	NoticeDedupWindow     time.Duration `env:"NOTICE_DEDUP_WINDOW" envDefault:"1m"`

	// Background work
	ReloadSchedule  string        `env:"RELOAD_SCHEDULE" envDefault:"*/30 * * * *"`
	WarmMinInterval time.Duration `env:"WARM_MIN_INTERVAL" envDefault:"13s"`
	WarmJitter      time.Duration `env:"WARM_JITTER" envDefault:"4s"`

	// Display state persistence
	DisplayStateFlushThreshold int           `env:"DISPLAY_STATE_FLUSH_THRESHOLD" envDefault:"64"`
	DisplayStateFlushInterval  time.Duration `env:"DISPLAY_STATE_FLUSH_INTERVAL" envDefault:"30s"`

	// Metrics
	MetricSampleInterval    time.Duration `env:"METRIC_SAMPLE_INTERVAL" envDefault:"5s"`
	MetricRealtimeCapacity  int           `env:"METRIC_REALTIME_CAPACITY" envDefault:"720"`
	MetricLatencyBinWidthMS int           `env:"METRIC_LATENCY_BIN_WIDTH_MS" envDefault:"50"`
	MetricLatencyOverflowMS int           `env:"METRIC_LATENCY_OVERFLOW_MS" envDefault:"5000"`

	// Derived during validation.
	ParsedAwaitMode   engine.AwaitMode
	ParsedContentType []block.ContentType
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Every problem found is reported in one error.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		errs = append(errs, err.Error())
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	cfg.GatewayMode = strings.ToLower(strings.TrimSpace(cfg.GatewayMode))
	cfg.GatewayAuthHeader = http.CanonicalHeaderKey(strings.TrimSpace(cfg.GatewayAuthHeader))
	cfg.AutoLoadPlaceholders = trimNonEmpty(cfg.AutoLoadPlaceholders)

	// --- Validation ---
	if cfg.ListenAddress == "" {
		errs = append(errs, "INLAY_LISTEN_ADDRESS must not be empty")
	}
	validatePort("INLAY_PORT", cfg.Port, &errs)
	validatePositive("INLAY_API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)

	switch cfg.GatewayMode {
	case GatewayModeHTTP:
		if cfg.ProjectToken == "" {
			errs = append(errs, "INLAY_PROJECT_TOKEN must not be empty in http gateway mode")
		}
		if err := validateBaseURL(cfg.GatewayBaseURL); err != nil {
			errs = append(errs, fmt.Sprintf("INLAY_GATEWAY_BASE_URL: %v", err))
		}
	case GatewayModeFixture:
		if strings.TrimSpace(cfg.GatewayFixturePath) == "" {
			errs = append(errs, "INLAY_GATEWAY_FIXTURE_PATH is required in fixture gateway mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("INLAY_GATEWAY_MODE: invalid value %q (allowed: %s, %s)",
			cfg.GatewayMode, GatewayModeHTTP, GatewayModeFixture))
	}
	if !httpguts.ValidHeaderFieldName(cfg.GatewayAuthHeader) {
		errs = append(errs, fmt.Sprintf("INLAY_GATEWAY_AUTH_HEADER: invalid header name %q", cfg.GatewayAuthHeader))
	}
	if !httpguts.ValidHeaderFieldValue(cfg.GatewayAuthValue) {
		errs = append(errs, "INLAY_GATEWAY_AUTH_VALUE: contains invalid header characters")
	}
	validatePositiveDuration("INLAY_FETCH_TIMEOUT", cfg.FetchTimeout, &errs)
	validatePositive("INLAY_FETCH_ATTEMPTS", cfg.FetchAttempts, &errs)

	validatePositiveDuration("INLAY_AWAIT_TIMEOUT", cfg.AwaitTimeout, &errs)
	if mode, err := engine.ParseAwaitMode(cfg.AwaitMode); err != nil {
		errs = append(errs, fmt.Sprintf("INLAY_AWAIT_MODE: %v", err))
	} else {
		cfg.ParsedAwaitMode = mode
	}
	cfg.ParsedContentType = nil
	for _, raw := range trimNonEmpty(cfg.SupportedContentTypes) {
		ct := block.NormalizeContentType(raw)
		if ct != block.ContentTypeHTML && ct != block.ContentTypeNative {
			errs = append(errs, fmt.Sprintf("INLAY_SUPPORTED_CONTENT_TYPES: unsupported content type %q (allowed: html, native)", raw))
			continue
		}
		cfg.ParsedContentType = append(cfg.ParsedContentType, ct)
	}
	if len(cfg.ParsedContentType) == 0 {
		errs = append(errs, "INLAY_SUPPORTED_CONTENT_TYPES must name at least one content type")
	}
	if cfg.NoticeDedupWindow < 0 {
		errs = append(errs, "INLAY_NOTICE_DEDUP_WINDOW must not be negative")
	}

	if _, err := cron.ParseStandard(cfg.ReloadSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("INLAY_RELOAD_SCHEDULE: invalid cron expression %q: %v", cfg.ReloadSchedule, err))
	}
	validatePositiveDuration("INLAY_WARM_MIN_INTERVAL", cfg.WarmMinInterval, &errs)
	if cfg.WarmJitter < 0 {
		errs = append(errs, "INLAY_WARM_JITTER must not be negative")
	}

	validatePositive("INLAY_DISPLAY_STATE_FLUSH_THRESHOLD", cfg.DisplayStateFlushThreshold, &errs)
	validatePositiveDuration("INLAY_DISPLAY_STATE_FLUSH_INTERVAL", cfg.DisplayStateFlushInterval, &errs)

	validatePositiveDuration("INLAY_METRIC_SAMPLE_INTERVAL", cfg.MetricSampleInterval, &errs)
	validatePositive("INLAY_METRIC_REALTIME_CAPACITY", cfg.MetricRealtimeCapacity, &errs)
	validatePositive("INLAY_METRIC_LATENCY_BIN_WIDTH_MS", cfg.MetricLatencyBinWidthMS, &errs)
	validatePositive("INLAY_METRIC_LATENCY_OVERFLOW_MS", cfg.MetricLatencyOverflowMS, &errs)
	if cfg.MetricLatencyOverflowMS > 0 && cfg.MetricLatencyBinWidthMS > cfg.MetricLatencyOverflowMS {
		errs = append(errs, "INLAY_METRIC_LATENCY_BIN_WIDTH_MS must not exceed INLAY_METRIC_LATENCY_OVERFLOW_MS")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// --- helpers ---

func trimNonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}

func validatePositiveDuration(name string, value time.Duration, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be positive", name))
	}
}
