package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dirgate/dirgate/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Directory (LDAP backend) configuration
	Directory DirectoryConfig

	// Authentication configuration
	Auth AuthConfig

	// Authorization configuration
	Authz AuthzConfig

	// Plugin configuration
	Plugins PluginConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// Audit trail configuration
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DirectoryConfig holds the LDAP backend connection settings.
type DirectoryConfig struct {
	// URL is an ldap:// or ldaps:// URL. Empty selects the in-memory
	// backend, which only makes sense in tests and demos.
	URL          string
	BindDN       string
	BindPassword string

	// DefaultTopDN is the entry served by the organisation-top hook
	// when no single authorized branch exists for the caller. Empty
	// falls back to the authorization anchor.
	DefaultTopDN string
}

// AuthConfig holds authentication strategy settings. Strategies lists
// the enabled strategy names in the order they are tried.
type AuthConfig struct {
	Strategies []string

	// Static bearer tokens, "secret[:name]" entries.
	Tokens []string

	// TOTP identities, "base32secret:name[:digits]" entries.
	TOTPIdentities []string
	TOTPStep       time.Duration
	TOTPWindow     int

	// HMAC signing services, "id:secret[:name]" entries.
	HMACServices []string
	HMACWindow   time.Duration

	// LLNG delegation header.
	LLNGHeader string

	// OIDC delegation.
	OIDCIssuer   string
	OIDCClientID string
}

// AuthzConfig holds authorization engine settings.
type AuthzConfig struct {
	// Mode selects the permission resolver: "static" (permission table
	// file) or "attribute" (organisation-link attribute derivation).
	Mode string

	// TablePath is the YAML permission table for static mode.
	TablePath string
	// WatchTable reloads the table when the file changes.
	WatchTable bool

	// TopAnchor is the DN of the tree root the gateway serves.
	TopAnchor string
	// OrgLinkAttr names the attribute linking an entry to its
	// organisation branch.
	OrgLinkAttr string
	// OrgClass is the objectClass of organisation entries, used by
	// attribute mode.
	OrgClass string

	// FailOpen skips authorization when no principal was resolved.
	// Off by default; the engine denies what it cannot attribute.
	FailOpen bool

	GroupCacheTTL     time.Duration
	AttributeCacheTTL time.Duration
}

// PluginConfig holds the plugin descriptor list. Descriptors use the
// "name:alias:jsonOverrides" form and are separated by semicolons,
// since the JSON override block may itself contain commas.
type PluginConfig struct {
	Descriptors []string
}

// RateLimitConfig holds Redis-backed rate limiter settings.
type RateLimitConfig struct {
	Enabled           bool
	RedisURL          string
	RedisPassword     string
	RequestsPerMinute int
}

// AuditConfig holds the audit trail settings.
type AuditConfig struct {
	Enabled bool
	// SQLitePath is the audit database file. Empty keeps the trail
	// in memory only.
	SQLitePath string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Directory:     loadDirectoryConfig(),
		Auth:          loadAuthConfig(),
		Authz:         loadAuthzConfig(),
		Plugins:       loadPluginConfig(),
		RateLimit:     loadRateLimitConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("DIRGATE_HOST", "0.0.0.0"),
		Port:            getEnv("DIRGATE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("DIRGATE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("DIRGATE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("DIRGATE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("DIRGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("DIRGATE_HEALTH_PORT", "9090"),
	}
}

func loadDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{
		URL:          getEnv("DIRGATE_LDAP_URL", ""),
		BindDN:       getEnv("DIRGATE_LDAP_BIND_DN", ""),
		BindPassword: getEnv("DIRGATE_LDAP_BIND_PASSWORD", ""),
		DefaultTopDN: getEnv("DIRGATE_DEFAULT_TOP_DN", ""),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		Strategies:     getEnvList("DIRGATE_AUTH_STRATEGIES", ","),
		Tokens:         getEnvList("DIRGATE_AUTH_TOKENS", ","),
		TOTPIdentities: getEnvList("DIRGATE_AUTH_TOTP_IDENTITIES", ","),
		TOTPStep:       getEnvDuration("DIRGATE_AUTH_TOTP_STEP", 30*time.Second),
		TOTPWindow:     getEnvInt("DIRGATE_AUTH_TOTP_WINDOW", 1),
		HMACServices:   getEnvList("DIRGATE_AUTH_HMAC_SERVICES", ","),
		HMACWindow:     getEnvDuration("DIRGATE_AUTH_HMAC_WINDOW", 120*time.Second),
		LLNGHeader:     getEnv("DIRGATE_AUTH_LLNG_HEADER", "Auth-User"),
		OIDCIssuer:     getEnv("DIRGATE_AUTH_OIDC_ISSUER", ""),
		OIDCClientID:   getEnv("DIRGATE_AUTH_OIDC_CLIENT_ID", ""),
	}
}

func loadAuthzConfig() AuthzConfig {
	return AuthzConfig{
		Mode:              getEnv("DIRGATE_AUTHZ_MODE", "static"),
		TablePath:         getEnv("DIRGATE_AUTHZ_TABLE", ""),
		WatchTable:        getEnvBool("DIRGATE_AUTHZ_TABLE_WATCH", false),
		TopAnchor:         getEnv("DIRGATE_TREE_ANCHOR", ""),
		OrgLinkAttr:       getEnv("DIRGATE_ORG_LINK_ATTR", "o"),
		OrgClass:          getEnv("DIRGATE_ORG_CLASS", "organization"),
		FailOpen:          getEnvBool("DIRGATE_AUTHZ_FAIL_OPEN", false),
		GroupCacheTTL:     getEnvDuration("DIRGATE_GROUP_CACHE_TTL", time.Minute),
		AttributeCacheTTL: getEnvDuration("DIRGATE_ATTRIBUTE_CACHE_TTL", 5*time.Minute),
	}
}

func loadPluginConfig() PluginConfig {
	return PluginConfig{
		Descriptors: getEnvList("DIRGATE_PLUGINS", ";"),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           getEnvBool("DIRGATE_RATE_LIMIT_ENABLED", false),
		RedisURL:          getEnv("DIRGATE_REDIS_URL", ""),
		RedisPassword:     getEnv("DIRGATE_REDIS_PASSWORD", ""),
		RequestsPerMinute: getEnvInt("DIRGATE_RATE_LIMIT_PER_MINUTE", 300),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:    getEnvBool("DIRGATE_AUDIT_ENABLED", true),
		SQLitePath: getEnv("DIRGATE_AUDIT_SQLITE_PATH", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("DIRGATE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("DIRGATE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("DIRGATE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("DIRGATE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("DIRGATE_OTEL_SERVICE_NAME", "dirgate"),
		OTelServiceVersion: getEnv("DIRGATE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("DIRGATE_OTEL_INSECURE", true),
	}
}

var knownStrategies = map[string]bool{
	"token": true,
	"totp":  true,
	"hmac":  true,
	"llng":  true,
	"oidc":  true,
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate authentication config
	if len(c.Auth.Strategies) == 0 {
		return fmt.Errorf("at least one authentication strategy is required")
	}
	for _, s := range c.Auth.Strategies {
		if !knownStrategies[s] {
			return fmt.Errorf("unknown authentication strategy: %s", s)
		}
	}
	if contains(c.Auth.Strategies, "token") && len(c.Auth.Tokens) == 0 {
		return fmt.Errorf("token strategy enabled but DIRGATE_AUTH_TOKENS is empty")
	}
	if contains(c.Auth.Strategies, "totp") && len(c.Auth.TOTPIdentities) == 0 {
		return fmt.Errorf("totp strategy enabled but DIRGATE_AUTH_TOTP_IDENTITIES is empty")
	}
	if contains(c.Auth.Strategies, "hmac") && len(c.Auth.HMACServices) == 0 {
		return fmt.Errorf("hmac strategy enabled but DIRGATE_AUTH_HMAC_SERVICES is empty")
	}
	if contains(c.Auth.Strategies, "oidc") && c.Auth.OIDCIssuer == "" {
		return fmt.Errorf("oidc strategy enabled but DIRGATE_AUTH_OIDC_ISSUER is empty")
	}
	if c.Auth.TOTPWindow < 0 {
		return fmt.Errorf("TOTP window must not be negative")
	}
	if c.Auth.HMACWindow <= 0 {
		return fmt.Errorf("HMAC window must be positive")
	}

	// Validate authorization config
	switch c.Authz.Mode {
	case "static":
		if c.Authz.TablePath == "" {
			return fmt.Errorf("permission table path is required for static authorization")
		}
	case "attribute":
		if c.Authz.OrgLinkAttr == "" {
			return fmt.Errorf("organisation link attribute is required for attribute authorization")
		}
	default:
		return fmt.Errorf("invalid authorization mode: %s (must be static or attribute)", c.Authz.Mode)
	}
	if c.Authz.TopAnchor == "" {
		return fmt.Errorf("tree anchor DN is required")
	}

	// Validate rate limiter config
	if c.RateLimit.Enabled {
		if c.RateLimit.RedisURL == "" {
			return fmt.Errorf("redis URL is required when rate limiting is enabled")
		}
		if c.RateLimit.RequestsPerMinute <= 0 {
			return fmt.Errorf("rate limit must be positive")
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
// Accepts Go duration strings ("90s", "2m") and bare millisecond counts.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

// getEnvList splits an environment variable on sep, trimming whitespace
// and dropping empty items. Returns nil when the variable is unset.
func getEnvList(key, sep string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, sep) {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
