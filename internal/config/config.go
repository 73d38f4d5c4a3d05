// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server settings,
// logging, the cache freshness policy, the configured store list, adapter
// endpoints, and observability switches.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings. An empty
// allowlist means any origin (the aggregation API is public read-only).
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
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// CacheConfig is the cache-hit policy. A cached result is served only when
// every row is younger than MaxAge, at least MinRows rows exist, and at
// least MinAvailable of them carry a positive price. Any violation forces a
// full live re-fetch; there is no partial merge with stale data.
type CacheConfig struct {
	MaxAge       time.Duration // CACHE_MAX_AGE
	MinAvailable int           // CACHE_MIN_AVAILABLE
	MinRows      int           // CACHE_MIN_ROWS
}

// AdapterConfig holds per-source endpoint overrides, mostly used by tests
// and self-hosted mirrors. Empty values mean the public endpoints.
type AdapterConfig struct {
	SteamBaseURL      string
	GOGBaseURL        string
	CheapSharkBaseURL string
	NuuvemBaseURL     string
	RatesBaseURL      string
	HTTPTimeout       time.Duration
}

// EstimateConfig controls the heuristic estimation adapter. The adapter
// fabricates competitor prices as a fixed fraction of the authoritative
// price; it can be switched off without touching any other component.
type EstimateConfig struct {
	Enabled bool    // ESTIMATE_ENABLED
	Factor  float64 // ESTIMATE_FACTOR, fraction of the authoritative price
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// API
	APIBasePath string

	// App
	DBPath          string            // SQLite path
	Stores          []string          // ordered configured store list
	DisplayCurrency string            // currency every response is expressed in
	TitleOverrides  map[string]string // gameID -> title, bypasses the name resolver

	Cache    CacheConfig
	Adapters AdapterConfig
	Estimate EstimateConfig

	// Rate limiting
	RateRPS   float64
	RateBurst int

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

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// API
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:          getenv("DB_PATH", "prices.db"),
		Stores:          splitCSV(getenv("STORES", "Steam,GOG,Nuuvem")),
		DisplayCurrency: strings.ToUpper(getenv("DISPLAY_CURRENCY", "BRL")),
		TitleOverrides:  parsePairs(getenv("TITLE_OVERRIDES", "")),

		Cache: CacheConfig{
			MaxAge:       getdur("CACHE_MAX_AGE", 60*time.Minute),
			MinAvailable: getint("CACHE_MIN_AVAILABLE", 2),
			MinRows:      getint("CACHE_MIN_ROWS", 2),
		},

		Adapters: AdapterConfig{
			SteamBaseURL:      getenv("STEAM_BASE_URL", "https://store.steampowered.com"),
			GOGBaseURL:        getenv("GOG_BASE_URL", "https://embed.gog.com"),
			CheapSharkBaseURL: getenv("CHEAPSHARK_BASE_URL", "https://www.cheapshark.com"),
			NuuvemBaseURL:     getenv("NUUVEM_BASE_URL", "https://www.nuuvem.com"),
			RatesBaseURL:      getenv("RATES_BASE_URL", "https://economia.awesomeapi.com.br"),
			HTTPTimeout:       getdur("ADAPTER_HTTP_TIMEOUT", 10*time.Second),
		},

		Estimate: EstimateConfig{
			Enabled: getbool("ESTIMATE_ENABLED", false),
			Factor:  getfloat("ESTIMATE_FACTOR", 0.93),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 10.0),
		RateBurst: getint("RATE_BURST", 20),

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
			ServiceName: getenv("OTEL_SERVICE_NAME", "price-backend"),
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
	if len(cfg.Stores) == 0 {
		return cfg, errors.New("STORES must name at least one store")
	}
	if cfg.Cache.MaxAge <= 0 {
		return cfg, errors.New("CACHE_MAX_AGE must be > 0")
	}
	if cfg.Cache.MinAvailable < 0 || cfg.Cache.MinRows < 0 {
		return cfg, errors.New("cache thresholds must be >= 0")
	}
	if cfg.Estimate.Factor <= 0 || cfg.Estimate.Factor > 1 {
		return cfg, errors.New("ESTIMATE_FACTOR must be in (0,1]")
	}
	if cfg.Adapters.HTTPTimeout <= 0 {
		return cfg, errors.New("ADAPTER_HTTP_TIMEOUT must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
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

// parsePairs parses "id:title;id:title" into a map. Used for the title
// override table that works around unreliable fuzzy search for a handful
// of games.
func parsePairs(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, ":")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if ok && k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
