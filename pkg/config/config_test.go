package config

import (
	"strings"
	"testing"
	"time"

	"github.com/dirgate/dirgate/pkg/observability"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       "8080",
			HealthPort: "9090",
		},
		Auth: AuthConfig{
			Strategies: []string{"token"},
			Tokens:     []string{"s3cret:ci"},
			TOTPWindow: 1,
			HMACWindow: 120 * time.Second,
		},
		Authz: AuthzConfig{
			Mode:      "static",
			TablePath: "/etc/dirgate/permissions.yaml",
			TopAnchor: "dc=example,dc=org",
		},
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DIRGATE_AUTH_STRATEGIES", "token")
	t.Setenv("DIRGATE_AUTH_TOKENS", "s3cret:ci")
	t.Setenv("DIRGATE_AUTHZ_TABLE", "/etc/dirgate/permissions.yaml")
	t.Setenv("DIRGATE_TREE_ANCHOR", "dc=example,dc=org")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("Expected default health port 9090, got %s", cfg.Server.HealthPort)
	}
	if cfg.Auth.TOTPStep != 30*time.Second {
		t.Errorf("Expected default TOTP step 30s, got %v", cfg.Auth.TOTPStep)
	}
	if cfg.Auth.TOTPWindow != 1 {
		t.Errorf("Expected default TOTP window 1, got %d", cfg.Auth.TOTPWindow)
	}
	if cfg.Auth.HMACWindow != 120*time.Second {
		t.Errorf("Expected default HMAC window 120s, got %v", cfg.Auth.HMACWindow)
	}
	if cfg.Authz.Mode != "static" {
		t.Errorf("Expected default authz mode static, got %s", cfg.Authz.Mode)
	}
	if cfg.Authz.GroupCacheTTL != time.Minute {
		t.Errorf("Expected default group cache TTL 1m, got %v", cfg.Authz.GroupCacheTTL)
	}
	if cfg.Authz.AttributeCacheTTL != 5*time.Minute {
		t.Errorf("Expected default attribute cache TTL 5m, got %v", cfg.Authz.AttributeCacheTTL)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("Expected default log level info, got %v", cfg.Observability.LogLevel)
	}
	if !cfg.Audit.Enabled {
		t.Error("Expected audit enabled by default")
	}
	if cfg.RateLimit.Enabled {
		t.Error("Expected rate limiting disabled by default")
	}
}

func TestLoadConfig_PluginDescriptors(t *testing.T) {
	t.Setenv("DIRGATE_AUTH_STRATEGIES", "token")
	t.Setenv("DIRGATE_AUTH_TOKENS", "s3cret")
	t.Setenv("DIRGATE_AUTHZ_TABLE", "/etc/dirgate/permissions.yaml")
	t.Setenv("DIRGATE_TREE_ANCHOR", "dc=example,dc=org")
	// The JSON override block contains commas, so the list separator
	// is a semicolon.
	t.Setenv("DIRGATE_PLUGINS", `authz::; audit:trail:{"sink":"sqlite","path":"/tmp/a.db"}`)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	want := []string{"authz::", `audit:trail:{"sink":"sqlite","path":"/tmp/a.db"}`}
	if len(cfg.Plugins.Descriptors) != len(want) {
		t.Fatalf("Expected %d descriptors, got %d", len(want), len(cfg.Plugins.Descriptors))
	}
	for i, d := range want {
		if cfg.Plugins.Descriptors[i] != d {
			t.Errorf("Descriptor %d = %q, want %q", i, cfg.Plugins.Descriptors[i], d)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port",
		},
		{
			name:    "port clash",
			mutate:  func(c *Config) { c.Server.HealthPort = c.Server.Port },
			wantErr: "must be different",
		},
		{
			name:    "no strategies",
			mutate:  func(c *Config) { c.Auth.Strategies = nil },
			wantErr: "at least one authentication strategy",
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *Config) { c.Auth.Strategies = []string{"kerberos"} },
			wantErr: "unknown authentication strategy",
		},
		{
			name: "token strategy without tokens",
			mutate: func(c *Config) {
				c.Auth.Strategies = []string{"token"}
				c.Auth.Tokens = nil
			},
			wantErr: "DIRGATE_AUTH_TOKENS is empty",
		},
		{
			name: "totp strategy without identities",
			mutate: func(c *Config) {
				c.Auth.Strategies = []string{"totp"}
			},
			wantErr: "DIRGATE_AUTH_TOTP_IDENTITIES is empty",
		},
		{
			name: "hmac strategy without services",
			mutate: func(c *Config) {
				c.Auth.Strategies = []string{"hmac"}
			},
			wantErr: "DIRGATE_AUTH_HMAC_SERVICES is empty",
		},
		{
			name: "oidc strategy without issuer",
			mutate: func(c *Config) {
				c.Auth.Strategies = []string{"oidc"}
			},
			wantErr: "DIRGATE_AUTH_OIDC_ISSUER is empty",
		},
		{
			name:    "negative totp window",
			mutate:  func(c *Config) { c.Auth.TOTPWindow = -1 },
			wantErr: "TOTP window",
		},
		{
			name:    "zero hmac window",
			mutate:  func(c *Config) { c.Auth.HMACWindow = 0 },
			wantErr: "HMAC window",
		},
		{
			name:    "static mode without table",
			mutate:  func(c *Config) { c.Authz.TablePath = "" },
			wantErr: "permission table path",
		},
		{
			name: "attribute mode without link attribute",
			mutate: func(c *Config) {
				c.Authz.Mode = "attribute"
				c.Authz.OrgLinkAttr = ""
			},
			wantErr: "organisation link attribute",
		},
		{
			name:    "invalid authz mode",
			mutate:  func(c *Config) { c.Authz.Mode = "rbac" },
			wantErr: "invalid authorization mode",
		},
		{
			name:    "missing tree anchor",
			mutate:  func(c *Config) { c.Authz.TopAnchor = "" },
			wantErr: "tree anchor",
		},
		{
			name: "rate limiting without redis",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.RequestsPerMinute = 100
			},
			wantErr: "redis URL is required",
		},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelServiceName = "dirgate"
			},
			wantErr: "OpenTelemetry endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  observability.LogLevel
	}{
		{"debug", observability.DebugLevel},
		{"DEBUG", observability.DebugLevel},
		{"info", observability.InfoLevel},
		{"warn", observability.WarnLevel},
		{"warning", observability.WarnLevel},
		{"error", observability.ErrorLevel},
		{"bogus", observability.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Run("duration string", func(t *testing.T) {
		t.Setenv("DIRGATE_TEST_DURATION", "90s")
		if got := getEnvDuration("DIRGATE_TEST_DURATION", time.Second); got != 90*time.Second {
			t.Errorf("Expected 90s, got %v", got)
		}
	})

	t.Run("bare milliseconds", func(t *testing.T) {
		t.Setenv("DIRGATE_TEST_DURATION", "1500")
		if got := getEnvDuration("DIRGATE_TEST_DURATION", time.Second); got != 1500*time.Millisecond {
			t.Errorf("Expected 1.5s, got %v", got)
		}
	})

	t.Run("unset uses default", func(t *testing.T) {
		if got := getEnvDuration("DIRGATE_TEST_UNSET", 42*time.Second); got != 42*time.Second {
			t.Errorf("Expected default, got %v", got)
		}
	})

	t.Run("garbage uses default", func(t *testing.T) {
		t.Setenv("DIRGATE_TEST_DURATION", "soon")
		if got := getEnvDuration("DIRGATE_TEST_DURATION", 42*time.Second); got != 42*time.Second {
			t.Errorf("Expected default, got %v", got)
		}
	})
}
