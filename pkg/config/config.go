package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/ingresso/pkg/assertlog"
	"github.com/platinummonkey/ingresso/pkg/observability"
	"github.com/platinummonkey/ingresso/pkg/session"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// SAML service provider configuration
	SAML SAMLConfig

	// IdP metadata registry configuration
	IdP IdPConfig

	// Redis connection configuration
	Redis session.ClientConfig

	// Session store configuration
	Session SessionConfig

	// Assertion archive configuration
	AssertionLog AssertionLogConfig

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

// SAMLConfig holds service provider identity and signing material paths
type SAMLConfig struct {
	EntityID       string
	ACSURL         string
	AudienceURI    string
	SLOCallbackURL string
	KeyPath        string
	CertPath       string
	ClockSkew      time.Duration
	AttributeIndex int
}

// IdPConfig holds IdP metadata registry settings
type IdPConfig struct {
	// MetadataURL is the federation aggregate metadata document.
	MetadataURL string

	// WhitelistFile is a YAML file mapping local IdP keys to entityIDs.
	WhitelistFile string

	RefreshInterval time.Duration

	// Sandbox merges the fixed test IdP descriptors into every snapshot.
	Sandbox bool

	// Sandbox IdP descriptor. SandboxCert is the test IdP signing
	// certificate as base64 DER.
	SandboxEntityID string
	SandboxBaseURL  string
	SandboxCert     string
}

// SessionConfig holds session store settings
type SessionConfig struct {
	TTL                   time.Duration
	AllowMultipleSessions bool
}

// AssertionLogConfig holds assertion archive settings. When disabled no
// assertions are written.
type AssertionLogConfig struct {
	Enabled bool
	assertlog.Config
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
		SAML:          loadSAMLConfig(),
		IdP:           loadIdPConfig(),
		Redis:         loadRedisConfig(),
		Session:       loadSessionConfig(),
		AssertionLog:  loadAssertionLogConfig(),
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
		Host:            getEnv("INGRESSO_HOST", "0.0.0.0"),
		Port:            getEnv("INGRESSO_PORT", "8080"),
		ReadTimeout:     getEnvDuration("INGRESSO_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("INGRESSO_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("INGRESSO_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("INGRESSO_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("INGRESSO_HEALTH_PORT", "9090"),
	}
}

// loadSAMLConfig loads SAML service provider configuration from environment
func loadSAMLConfig() SAMLConfig {
	return SAMLConfig{
		EntityID:       getEnv("INGRESSO_SAML_ENTITY_ID", ""),
		ACSURL:         getEnv("INGRESSO_SAML_ACS_URL", ""),
		AudienceURI:    getEnv("INGRESSO_SAML_AUDIENCE_URI", ""),
		SLOCallbackURL: getEnv("INGRESSO_SAML_SLO_CALLBACK_URL", ""),
		KeyPath:        getEnv("INGRESSO_SAML_KEY_PATH", ""),
		CertPath:       getEnv("INGRESSO_SAML_CERT_PATH", ""),
		ClockSkew:      getEnvDuration("INGRESSO_SAML_CLOCK_SKEW", 0),
		AttributeIndex: getEnvInt("INGRESSO_SAML_ATTRIBUTE_INDEX", 0),
	}
}

// loadIdPConfig loads IdP metadata registry configuration from environment
func loadIdPConfig() IdPConfig {
	return IdPConfig{
		MetadataURL:     getEnv("INGRESSO_IDP_METADATA_URL", ""),
		WhitelistFile:   getEnv("INGRESSO_IDP_WHITELIST_FILE", ""),
		RefreshInterval: getEnvDuration("INGRESSO_IDP_REFRESH_INTERVAL", 0),
		Sandbox:         getEnvBool("INGRESSO_IDP_SANDBOX", false),
		SandboxEntityID: getEnv("INGRESSO_IDP_SANDBOX_ENTITY_ID", "https://demo.spid.gov.it"),
		SandboxBaseURL:  getEnv("INGRESSO_IDP_SANDBOX_BASE_URL", "https://demo.spid.gov.it"),
		SandboxCert:     getEnv("INGRESSO_IDP_SANDBOX_CERT", ""),
	}
}

// loadRedisConfig loads redis connection configuration from environment
func loadRedisConfig() session.ClientConfig {
	return session.ClientConfig{
		URL:        getEnv("INGRESSO_REDIS_URL", "redis://localhost:6379"),
		ReplicaURL: getEnv("INGRESSO_REDIS_REPLICA_URL", ""),
		Password:   getEnv("INGRESSO_REDIS_PASSWORD", ""),
		DB:         getEnvInt("INGRESSO_REDIS_DB", 0),
		MaxRetries: getEnvInt("INGRESSO_REDIS_MAX_RETRIES", 0),
		PoolSize:   getEnvInt("INGRESSO_REDIS_POOL_SIZE", 0),
	}
}

// loadSessionConfig loads session store configuration from environment
func loadSessionConfig() SessionConfig {
	return SessionConfig{
		TTL:                   getEnvDuration("INGRESSO_SESSION_TTL", time.Hour),
		AllowMultipleSessions: getEnvBool("INGRESSO_ALLOW_MULTIPLE_SESSIONS", false),
	}
}

// loadAssertionLogConfig loads assertion archive configuration from environment
func loadAssertionLogConfig() AssertionLogConfig {
	return AssertionLogConfig{
		Enabled: getEnvBool("INGRESSO_ASSERTION_LOG_ENABLED", false),
		Config: assertlog.Config{
			Bucket:       getEnv("INGRESSO_S3_BUCKET", ""),
			Region:       getEnv("INGRESSO_S3_REGION", ""),
			Endpoint:     getEnv("INGRESSO_S3_ENDPOINT", ""),
			AccessKey:    getEnv("INGRESSO_S3_ACCESS_KEY", ""),
			SecretKey:    getEnv("INGRESSO_S3_SECRET_KEY", ""),
			UsePathStyle: getEnvBool("INGRESSO_S3_USE_PATH_STYLE", false),
		},
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("INGRESSO_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("INGRESSO_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("INGRESSO_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("INGRESSO_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("INGRESSO_OTEL_SERVICE_NAME", "ingresso"),
		OTelServiceVersion: getEnv("INGRESSO_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("INGRESSO_OTEL_INSECURE", true),
	}
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

	// Validate SAML config
	if c.SAML.EntityID == "" {
		return fmt.Errorf("SAML entity ID is required")
	}
	if c.SAML.ACSURL == "" {
		return fmt.Errorf("SAML assertion consumer service URL is required")
	}
	if c.SAML.KeyPath == "" || c.SAML.CertPath == "" {
		return fmt.Errorf("SAML signing key and certificate paths are required")
	}

	// Validate IdP config. Sandbox deployments run from the fixed test
	// descriptors alone, everything else needs the federation document.
	if c.IdP.MetadataURL == "" && !c.IdP.Sandbox {
		return fmt.Errorf("IdP metadata URL is required outside sandbox mode")
	}
	if c.IdP.MetadataURL != "" && c.IdP.WhitelistFile == "" {
		return fmt.Errorf("IdP whitelist file is required when a metadata URL is set")
	}

	// Validate redis config
	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}

	// Validate session config
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	// Validate assertion log config
	if c.AssertionLog.Enabled {
		if c.AssertionLog.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when assertion logging is enabled")
		}
		if c.AssertionLog.Region == "" {
			return fmt.Errorf("S3 region is required when assertion logging is enabled")
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

// whitelistFile is the on-disk shape of the IdP whitelist: local keys
// mapped to entityIDs.
type whitelistFile struct {
	IdPs map[string]string `yaml:"idps"`
}

// LoadWhitelist reads the IdP whitelist YAML and returns it keyed the way
// the registry consumes it, entityID to local key.
func LoadWhitelist(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read whitelist %s: %w", path, err)
	}

	var file whitelistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse whitelist %s: %w", path, err)
	}
	if len(file.IdPs) == 0 {
		return nil, fmt.Errorf("whitelist %s lists no IdPs", path)
	}

	whitelist := make(map[string]string, len(file.IdPs))
	for key, entityID := range file.IdPs {
		if key == "" || entityID == "" {
			return nil, fmt.Errorf("whitelist %s has an empty key or entityID", path)
		}
		if existing, ok := whitelist[entityID]; ok {
			return nil, fmt.Errorf("whitelist %s maps %s to both %s and %s", path, entityID, existing, key)
		}
		whitelist[entityID] = key
	}
	return whitelist, nil
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
