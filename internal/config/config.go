// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. When empty the server runs with an in-memory place store,
	// which is only useful for local development and demos.
	DatabaseURL string `koanf:"database_url"`

	// Redis. When empty rate limiting falls back to per-instance in-memory
	// counters and the Redis health probe is skipped.
	RedisURL string `koanf:"redis_url"`

	// JWT authentication
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// CORS
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Rate limiting (requests per window)
	RateLimitGlobalRequests int `koanf:"rate_limit_global_requests"`
	RateLimitGlobalWindowS  int `koanf:"rate_limit_global_window_s"`
	RateLimitSearchRequests int `koanf:"rate_limit_search_requests"`
	RateLimitSearchWindowS  int `koanf:"rate_limit_search_window_s"`

	// Repository timeout for geospatial queries, in seconds.
	QueryTimeoutS int `koanf:"query_timeout_s"`

	// Tracing
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingEndpoint   string  `koanf:"tracing_endpoint"`
	TracingProtocol   string  `koanf:"tracing_protocol"` // "otlp-http" or "otlp-grpc"
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
}

// Configuration validation errors.
var (
	ErrMissingJWTSecret      = errors.New("JWT_SECRET is required")
	ErrInvalidPort           = errors.New("PORT must be a valid integer")
	ErrInvalidRateLimit      = errors.New("rate limit values must be positive")
	ErrInvalidQueryTimeout   = errors.New("query timeout must be positive")
	ErrInvalidSampleRate     = errors.New("tracing sample rate must be between 0 and 1")
	ErrInvalidTracingBackend = errors.New("tracing protocol must be otlp-http or otlp-grpc")
)

// Default values for non-secret configuration.
const (
	DefaultPort                    = 8080
	DefaultEnv                     = "development"
	DefaultRateLimitGlobalRequests = 100
	DefaultRateLimitGlobalWindowS  = 60
	DefaultRateLimitSearchRequests = 30
	DefaultRateLimitSearchWindowS  = 60
	DefaultQueryTimeoutS           = 5
	DefaultTracingProtocol         = "otlp-http"
	DefaultTracingSampleRate       = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// File values carry lower precedence than env vars.
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefaultMulti([]string{"KARIB_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	globalRequests, err := getEnvIntOrDefault("KARIB_RATE_LIMIT_GLOBAL_REQUESTS", k.Int("rate_limit_global_requests"), DefaultRateLimitGlobalRequests)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	globalWindow, err := getEnvIntOrDefault("KARIB_RATE_LIMIT_GLOBAL_WINDOW_S", k.Int("rate_limit_global_window_s"), DefaultRateLimitGlobalWindowS)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	searchRequests, err := getEnvIntOrDefault("KARIB_RATE_LIMIT_SEARCH_REQUESTS", k.Int("rate_limit_search_requests"), DefaultRateLimitSearchRequests)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	searchWindow, err := getEnvIntOrDefault("KARIB_RATE_LIMIT_SEARCH_WINDOW_S", k.Int("rate_limit_search_window_s"), DefaultRateLimitSearchWindowS)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	queryTimeout, err := getEnvIntOrDefault("KARIB_QUERY_TIMEOUT_S", k.Int("query_timeout_s"), DefaultQueryTimeoutS)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	sampleRate, err := getEnvFloatOrDefault("KARIB_TRACING_SAMPLE_RATE", k.Float64("tracing_sample_rate"), DefaultTracingSampleRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	tracingEnabled := k.Bool("tracing_enabled")
	if val := os.Getenv("KARIB_TRACING_ENABLED"); val != "" {
		tracingEnabled = parseBool(val, tracingEnabled)
	}

	cfg := &Config{
		Port:                    port,
		Env:                     getEnvOrDefaultMulti([]string{"KARIB_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:             getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:                getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:               getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:       getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		CORSAllowedOrigins:      getEnvListOrKoanf("KARIB_CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		RateLimitGlobalRequests: globalRequests,
		RateLimitGlobalWindowS:  globalWindow,
		RateLimitSearchRequests: searchRequests,
		RateLimitSearchWindowS:  searchWindow,
		QueryTimeoutS:           queryTimeout,
		TracingEnabled:          tracingEnabled,
		TracingEndpoint:         getEnvOrKoanf("KARIB_TRACING_ENDPOINT", k, "tracing_endpoint"),
		TracingProtocol:         getEnvOrDefault("KARIB_TRACING_PROTOCOL", k.String("tracing_protocol"), DefaultTracingProtocol),
		TracingSampleRate:       sampleRate,
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// QueryTimeout returns the repository timeout as a duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutS) * time.Second
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvListOrKoanf returns a comma-separated env var as a list if set,
// otherwise the koanf list value.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer", envKey)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

func parseBool(val string, fallback bool) bool {
	switch strings.ToLower(val) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return fallback
}

// Validate checks that all required configuration values are present and
// within range. Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.RateLimitGlobalRequests <= 0 || c.RateLimitGlobalWindowS <= 0 ||
		c.RateLimitSearchRequests <= 0 || c.RateLimitSearchWindowS <= 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}
	if c.QueryTimeoutS <= 0 {
		errs = append(errs, ErrInvalidQueryTimeout)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}
	if c.TracingEnabled && c.TracingProtocol != "otlp-http" && c.TracingProtocol != "otlp-grpc" {
		errs = append(errs, ErrInvalidTracingBackend)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                 fmt.Sprintf("%d", c.Port),
		"env":                  c.Env,
		"database_url":         maskDatabaseURL(c.DatabaseURL),
		"redis_url":            maskDatabaseURL(c.RedisURL),
		"jwt_secret":           maskSecret(c.JWTSecret),
		"cors_allowed_origins": strings.Join(c.CORSAllowedOrigins, ","),
		"rate_limit_global":    fmt.Sprintf("%d/%ds", c.RateLimitGlobalRequests, c.RateLimitGlobalWindowS),
		"rate_limit_search":    fmt.Sprintf("%d/%ds", c.RateLimitSearchRequests, c.RateLimitSearchWindowS),
		"query_timeout_s":      fmt.Sprintf("%d", c.QueryTimeoutS),
		"tracing_enabled":      fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_endpoint":     c.TracingEndpoint,
		"tracing_protocol":     c.TracingProtocol,
	}
}

// maskSecret masks a secret value, showing only the first 4 characters.
// Secrets shorter than 8 characters are fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // no credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // username only
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
