// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	INGRESSO_HOST="0.0.0.0"
//	INGRESSO_PORT="8080"
//	INGRESSO_HEALTH_PORT="9090"
//	INGRESSO_READ_TIMEOUT="15s"
//	INGRESSO_WRITE_TIMEOUT="15s"
//
// SAML settings:
//
//	INGRESSO_SAML_ENTITY_ID="https://ingresso.example"
//	INGRESSO_SAML_ACS_URL="https://ingresso.example/assertionConsumerService"
//	INGRESSO_SAML_KEY_PATH="/etc/ingresso/sp.key"
//	INGRESSO_SAML_CERT_PATH="/etc/ingresso/sp.crt"
//	INGRESSO_SAML_CLOCK_SKEW="90s"
//
// IdP registry settings:
//
//	INGRESSO_IDP_METADATA_URL="https://registry.spid.example/metadata.xml"
//	INGRESSO_IDP_WHITELIST_FILE="/etc/ingresso/idps.yml"
//	INGRESSO_IDP_REFRESH_INTERVAL="168h"
//	INGRESSO_IDP_SANDBOX="false"
//	INGRESSO_IDP_SANDBOX_ENTITY_ID="https://demo.spid.gov.it"
//	INGRESSO_IDP_SANDBOX_BASE_URL="https://demo.spid.gov.it"
//	INGRESSO_IDP_SANDBOX_CERT="MIIC..."  # base64 DER
//
// Session settings:
//
//	INGRESSO_REDIS_URL="redis://localhost:6379"
//	INGRESSO_REDIS_REPLICA_URL="redis://replica:6379"
//	INGRESSO_SESSION_TTL="1h"
//	INGRESSO_ALLOW_MULTIPLE_SESSIONS="false"
//
// Assertion archive settings:
//
//	INGRESSO_ASSERTION_LOG_ENABLED="true"
//	INGRESSO_S3_BUCKET="ingresso-assertions"
//	INGRESSO_S3_REGION="eu-south-1"
//
// Observability settings:
//
//	INGRESSO_LOG_LEVEL="info"  # debug, info, warn, error
//	INGRESSO_METRICS_ENABLED="true"
//	INGRESSO_OTEL_ENABLED="true"
//	INGRESSO_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Entity ID: %s\n", cfg.SAML.EntityID)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/session: Uses redis configuration
//   - pkg/observability: Uses observability configuration
package config
