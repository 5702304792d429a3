package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/platinummonkey/ingresso/pkg/api"
	"github.com/platinummonkey/ingresso/pkg/assertlog"
	"github.com/platinummonkey/ingresso/pkg/config"
	"github.com/platinummonkey/ingresso/pkg/gateway"
	"github.com/platinummonkey/ingresso/pkg/identity"
	"github.com/platinummonkey/ingresso/pkg/idp"
	"github.com/platinummonkey/ingresso/pkg/middleware"
	"github.com/platinummonkey/ingresso/pkg/observability"
	"github.com/platinummonkey/ingresso/pkg/session"
	"github.com/platinummonkey/ingresso/pkg/spid"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	ctx := context.Background()

	// Load and validate configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting ingresso")

	// Metrics
	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// OpenTelemetry
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}

	// SP signing material, reloaded on rotation
	material, err := spid.LoadSigningMaterial(cfg.SAML.KeyPath, cfg.SAML.CertPath)
	if err != nil {
		log.Fatalf("Failed to load SAML signing material: %v", err)
	}

	// IdP metadata registry
	idpRegistry, err := buildIdPRegistry(ctx, cfg, material, logger, metrics)
	if err != nil {
		log.Fatalf("Failed to start IdP metadata registry: %v", err)
	}

	// Redis session store
	clients, err := session.NewClients(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	store := session.NewStore(clients, session.StoreConfig{
		AllowMultipleSessions: cfg.Session.AllowMultipleSessions,
	}, logger.Named("session"), metrics)

	// SAML adapter over the live metadata snapshot
	adapter, err := spid.NewAdapter(spid.Config{
		EntityID:       cfg.SAML.EntityID,
		ACSURL:         cfg.SAML.ACSURL,
		AudienceURI:    cfg.SAML.AudienceURI,
		SLOCallbackURL: cfg.SAML.SLOCallbackURL,
		ClockSkew:      cfg.SAML.ClockSkew,
		AttributeIndex: cfg.SAML.AttributeIndex,
	}, material, idpRegistry.Snapshot, logger.Named("saml"))
	if err != nil {
		log.Fatalf("Failed to build SAML adapter: %v", err)
	}

	certWatcher, err := spid.WatchSigningMaterial(ctx, adapter, cfg.SAML.KeyPath, cfg.SAML.CertPath, logger, nil)
	if err != nil {
		log.Fatalf("Failed to watch signing material: %v", err)
	}

	// Optional assertion archive
	var archiver gateway.AssertionArchiver
	if cfg.AssertionLog.Enabled {
		s3Archiver, err := assertlog.NewS3Archiver(ctx, cfg.AssertionLog.Config, logger, metrics)
		if err != nil {
			log.Fatalf("Failed to initialize assertion archive: %v", err)
		}
		archiver = s3Archiver
	}

	gw := gateway.NewService(gateway.Config{
		SessionTTL: cfg.Session.TTL,
	}, adapter, identity.NewMapper(), store, idpRegistry, archiver, logger, metrics)

	limiter := middleware.NewRateLimiter(clients.Primary, middleware.LoginRateLimitConfig(), "login")

	server := api.NewServer(gw, adapter, store, limiter, logger, metrics)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for the orchestrator
	healthChecker := observability.NewHealthChecker(clients.Primary, clients.Replica, func() int {
		return len(idpRegistry.Snapshot())
	})
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, healthChecker)
	observability.RegisterMetricsEndpoint(healthMux, registry)
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
	go func() {
		logger.WithField("port", cfg.Server.HealthPort).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		idpRegistry.Stop()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return certWatcher.Close()
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return store.Close(ctx)
	})
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start API server: %v", err)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

// buildIdPRegistry loads the whitelist, merges the sandbox descriptor when
// enabled, and performs the registry's initial metadata load.
func buildIdPRegistry(ctx context.Context, cfg *config.Config, material *spid.SigningMaterial, logger *observability.Logger, metrics *observability.Metrics) (*idp.Registry, error) {
	whitelist := map[string]string{}
	if cfg.IdP.WhitelistFile != "" {
		var err error
		whitelist, err = config.LoadWhitelist(cfg.IdP.WhitelistFile)
		if err != nil {
			return nil, err
		}
	}

	sandbox := idp.Snapshot{}
	if cfg.IdP.Sandbox {
		if cfg.IdP.SandboxCert == "" {
			logger.Warn("Sandbox mode enabled without a sandbox IdP certificate, skipping sandbox descriptor")
		} else {
			sandbox["demo"] = idp.SandboxDescriptor(cfg.IdP.SandboxEntityID, cfg.IdP.SandboxBaseURL, cfg.IdP.SandboxCert)
		}
	}

	idpLogger := logger.Named("idp")
	loader := idp.NewLoader(&http.Client{Timeout: 30 * time.Second}, idpLogger)
	registry := idp.NewRegistry(idp.RegistryConfig{
		MetadataURL:     cfg.IdP.MetadataURL,
		Whitelist:       whitelist,
		RefreshInterval: cfg.IdP.RefreshInterval,
		SandboxIdPs:     sandbox,
		SigningCert:     material.Certificate,
	}, loader, idpLogger, metrics)

	if err := registry.Start(ctx); err != nil {
		return nil, err
	}
	return registry, nil
}
