package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/ingresso/pkg/observability"
)

// validBase returns a Config that passes Validate. Tests mutate the parts
// under test.
func validBase() *Config {
	return &Config{
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       "8080",
			HealthPort: "9090",
		},
		SAML: SAMLConfig{
			EntityID: "https://ingresso.example",
			ACSURL:   "https://ingresso.example/assertionConsumerService",
			KeyPath:  "/etc/ingresso/sp.key",
			CertPath: "/etc/ingresso/sp.crt",
		},
		IdP: IdPConfig{
			MetadataURL:   "https://registry.spid.example/metadata.xml",
			WhitelistFile: "/etc/ingresso/idps.yml",
		},
		Redis: loadRedisConfig(),
		Session: SessionConfig{
			TTL: time.Hour,
		},
	}
}

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{
			name:         "returns true for 'true'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "true",
			want:         true,
		},
		{
			name:         "returns true for '1'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "1",
			want:         true,
		},
		{
			name:         "returns false for 'false'",
			key:          "TEST_BOOL",
			defaultValue: true,
			envValue:     "false",
			want:         false,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_BOOL_NOT_SET",
			defaultValue: true,
			envValue:     "",
			want:         true,
		},
		{
			name:         "returns true for 'TRUE' (case insensitive)",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "TRUE",
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvBool(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvInt tests the getEnvInt helper function
func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{
			name:         "returns parsed int",
			key:          "TEST_INT",
			defaultValue: 5,
			envValue:     "42",
			want:         42,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_INT_NOT_SET",
			defaultValue: 5,
			envValue:     "",
			want:         5,
		},
		{
			name:         "returns default on parse error",
			key:          "TEST_INT",
			defaultValue: 5,
			envValue:     "not-a-number",
			want:         5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "returns parsed duration",
			key:          "TEST_DURATION",
			defaultValue: time.Second,
			envValue:     "30s",
			want:         30 * time.Second,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_DURATION_NOT_SET",
			defaultValue: time.Second,
			envValue:     "",
			want:         time.Second,
		},
		{
			name:         "returns default on parse error",
			key:          "TEST_DURATION",
			defaultValue: time.Second,
			envValue:     "not-a-duration",
			want:         time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestParseLogLevel tests log level parsing
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  observability.LogLevel
	}{
		{"debug", observability.DebugLevel},
		{"info", observability.InfoLevel},
		{"warn", observability.WarnLevel},
		{"warning", observability.WarnLevel},
		{"error", observability.ErrorLevel},
		{"ERROR", observability.ErrorLevel},
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

// TestLoadConfigDefaults verifies defaults with a minimal environment
func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("INGRESSO_SAML_ENTITY_ID", "https://ingresso.example")
	t.Setenv("INGRESSO_SAML_ACS_URL", "https://ingresso.example/assertionConsumerService")
	t.Setenv("INGRESSO_SAML_KEY_PATH", "/etc/ingresso/sp.key")
	t.Setenv("INGRESSO_SAML_CERT_PATH", "/etc/ingresso/sp.crt")
	t.Setenv("INGRESSO_IDP_SANDBOX", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("default health port = %q, want 9090", cfg.Server.HealthPort)
	}
	if cfg.Redis.URL != "redis://localhost:6379" {
		t.Errorf("default redis URL = %q", cfg.Redis.URL)
	}
	if cfg.Session.TTL != time.Hour {
		t.Errorf("default session TTL = %v, want 1h", cfg.Session.TTL)
	}
	if cfg.Session.AllowMultipleSessions {
		t.Error("multiple sessions should be disabled by default")
	}
	if cfg.AssertionLog.Enabled {
		t.Error("assertion logging should be disabled by default")
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("default log level = %v, want info", cfg.Observability.LogLevel)
	}
}

// TestLoadConfigFromEnvironment verifies env overrides reach every section
func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("INGRESSO_PORT", "8443")
	t.Setenv("INGRESSO_SAML_ENTITY_ID", "https://sp.example")
	t.Setenv("INGRESSO_SAML_ACS_URL", "https://sp.example/acs")
	t.Setenv("INGRESSO_SAML_AUDIENCE_URI", "https://audience.example")
	t.Setenv("INGRESSO_SAML_KEY_PATH", "/keys/sp.key")
	t.Setenv("INGRESSO_SAML_CERT_PATH", "/keys/sp.crt")
	t.Setenv("INGRESSO_SAML_CLOCK_SKEW", "90s")
	t.Setenv("INGRESSO_IDP_METADATA_URL", "https://registry.example/metadata.xml")
	t.Setenv("INGRESSO_IDP_WHITELIST_FILE", "/etc/ingresso/idps.yml")
	t.Setenv("INGRESSO_IDP_REFRESH_INTERVAL", "24h")
	t.Setenv("INGRESSO_REDIS_URL", "redis://primary:6379")
	t.Setenv("INGRESSO_REDIS_REPLICA_URL", "redis://replica:6379")
	t.Setenv("INGRESSO_REDIS_POOL_SIZE", "20")
	t.Setenv("INGRESSO_SESSION_TTL", "30m")
	t.Setenv("INGRESSO_ALLOW_MULTIPLE_SESSIONS", "true")
	t.Setenv("INGRESSO_ASSERTION_LOG_ENABLED", "true")
	t.Setenv("INGRESSO_S3_BUCKET", "assertions")
	t.Setenv("INGRESSO_S3_REGION", "eu-south-1")
	t.Setenv("INGRESSO_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != "8443" {
		t.Errorf("port = %q, want 8443", cfg.Server.Port)
	}
	if cfg.SAML.AudienceURI != "https://audience.example" {
		t.Errorf("audience = %q", cfg.SAML.AudienceURI)
	}
	if cfg.SAML.ClockSkew != 90*time.Second {
		t.Errorf("clock skew = %v, want 90s", cfg.SAML.ClockSkew)
	}
	if cfg.IdP.RefreshInterval != 24*time.Hour {
		t.Errorf("refresh interval = %v, want 24h", cfg.IdP.RefreshInterval)
	}
	if cfg.Redis.ReplicaURL != "redis://replica:6379" {
		t.Errorf("replica URL = %q", cfg.Redis.ReplicaURL)
	}
	if cfg.Redis.PoolSize != 20 {
		t.Errorf("pool size = %d, want 20", cfg.Redis.PoolSize)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("session TTL = %v, want 30m", cfg.Session.TTL)
	}
	if !cfg.Session.AllowMultipleSessions {
		t.Error("multiple sessions should be enabled")
	}
	if !cfg.AssertionLog.Enabled || cfg.AssertionLog.Bucket != "assertions" {
		t.Errorf("assertion log = %+v", cfg.AssertionLog)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("log level = %v, want debug", cfg.Observability.LogLevel)
	}
}

// TestValidate exercises every validation rule
func TestValidate(t *testing.T) {
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
			name:    "missing health port",
			mutate:  func(c *Config) { c.Server.HealthPort = "" },
			wantErr: "health port",
		},
		{
			name:    "port collision",
			mutate:  func(c *Config) { c.Server.HealthPort = c.Server.Port },
			wantErr: "must be different",
		},
		{
			name:    "missing entity ID",
			mutate:  func(c *Config) { c.SAML.EntityID = "" },
			wantErr: "entity ID",
		},
		{
			name:    "missing ACS URL",
			mutate:  func(c *Config) { c.SAML.ACSURL = "" },
			wantErr: "assertion consumer service",
		},
		{
			name:    "missing signing material",
			mutate:  func(c *Config) { c.SAML.KeyPath = "" },
			wantErr: "signing key",
		},
		{
			name: "missing metadata URL outside sandbox",
			mutate: func(c *Config) {
				c.IdP.MetadataURL = ""
				c.IdP.Sandbox = false
			},
			wantErr: "metadata URL",
		},
		{
			name: "sandbox runs without metadata URL",
			mutate: func(c *Config) {
				c.IdP.MetadataURL = ""
				c.IdP.WhitelistFile = ""
				c.IdP.Sandbox = true
			},
		},
		{
			name:    "metadata URL without whitelist",
			mutate:  func(c *Config) { c.IdP.WhitelistFile = "" },
			wantErr: "whitelist file",
		},
		{
			name:    "missing redis URL",
			mutate:  func(c *Config) { c.Redis.URL = "" },
			wantErr: "redis URL",
		},
		{
			name:    "non-positive session TTL",
			mutate:  func(c *Config) { c.Session.TTL = 0 },
			wantErr: "session TTL",
		},
		{
			name: "assertion log enabled without bucket",
			mutate: func(c *Config) {
				c.AssertionLog.Enabled = true
				c.AssertionLog.Region = "eu-south-1"
			},
			wantErr: "S3 bucket",
		},
		{
			name: "assertion log enabled without region",
			mutate: func(c *Config) {
				c.AssertionLog.Enabled = true
				c.AssertionLog.Bucket = "assertions"
			},
			wantErr: "S3 region",
		},
		{
			name: "otel enabled without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelServiceName = "ingresso"
			},
			wantErr: "OpenTelemetry endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

// TestLoadWhitelist tests whitelist file parsing and inversion
func TestLoadWhitelist(t *testing.T) {
	writeFile := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "idps.yml")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write whitelist: %v", err)
		}
		return path
	}

	t.Run("valid file inverted to entityID keys", func(t *testing.T) {
		path := writeFile(t, "idps:\n  posteid: https://posteid.poste.it\n  arubaid: https://loginspid.aruba.it\n")

		whitelist, err := LoadWhitelist(path)
		if err != nil {
			t.Fatalf("LoadWhitelist() error: %v", err)
		}
		if len(whitelist) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(whitelist))
		}
		if whitelist["https://posteid.poste.it"] != "posteid" {
			t.Errorf("posteid mapping wrong: %q", whitelist["https://posteid.poste.it"])
		}
		if whitelist["https://loginspid.aruba.it"] != "arubaid" {
			t.Errorf("arubaid mapping wrong: %q", whitelist["https://loginspid.aruba.it"])
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadWhitelist(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
			t.Error("expected an error for a missing file")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeFile(t, "idps: [not a map")
		if _, err := LoadWhitelist(path); err == nil {
			t.Error("expected an error for malformed yaml")
		}
	})

	t.Run("empty list", func(t *testing.T) {
		path := writeFile(t, "idps: {}\n")
		if _, err := LoadWhitelist(path); err == nil {
			t.Error("expected an error for an empty whitelist")
		}
	})

	t.Run("duplicate entityID", func(t *testing.T) {
		path := writeFile(t, "idps:\n  one: https://idp.example\n  two: https://idp.example\n")
		if _, err := LoadWhitelist(path); err == nil {
			t.Error("expected an error for a duplicated entityID")
		}
	})

	t.Run("empty entityID", func(t *testing.T) {
		path := writeFile(t, "idps:\n  posteid: \"\"\n")
		if _, err := LoadWhitelist(path); err == nil {
			t.Error("expected an error for an empty entityID")
		}
	})
}
