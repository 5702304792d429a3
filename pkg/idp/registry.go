package idp

import (
	"context"
	"crypto/x509"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/ingresso/pkg/observability"
)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// MetadataURL is the federation aggregate metadata document.
	MetadataURL string

	// Whitelist maps trusted entityIDs to their local keys. Entities not
	// listed here never enter a snapshot.
	Whitelist map[string]string

	// RefreshInterval drives the periodic refresh (default 7 days).
	RefreshInterval time.Duration

	// SandboxIdPs are fixed descriptors (validator, local test IdP)
	// merged into every snapshot for non-production deployments.
	SandboxIdPs Snapshot

	// SigningCert is this service's own SAML signing certificate,
	// inspected daily for approaching expiry. Optional.
	SigningCert *x509.Certificate

	// OnRefresh, when set, fires exactly once per refresh attempt with
	// the attempt's outcome. Used for observability and tests.
	OnRefresh func(error)
}

// Registry owns the trusted-IdP snapshot and its refresh lifecycle. The
// refresh task is the only writer; every other component holds the registry
// as a read-only snapshot source.
type Registry struct {
	cfg     RegistryConfig
	loader  *Loader
	logger  *observability.Logger
	metrics *observability.Metrics

	snapshot atomic.Value // Snapshot
	group    singleflight.Group
	cron     *cron.Cron
}

// cronLogger adapts the structured logger to cron's Printf interface.
type cronLogger struct {
	l *observability.Logger
}

func (c cronLogger) Printf(format string, args ...interface{}) {
	c.l.Infof(format, args...)
}

// NewRegistry creates a Registry. metrics may be nil.
func NewRegistry(cfg RegistryConfig, loader *Loader, logger *observability.Logger, metrics *observability.Metrics) *Registry {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 7 * 24 * time.Hour
	}
	return &Registry{
		cfg:     cfg,
		loader:  loader,
		logger:  logger,
		metrics: metrics,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.PrintfLogger(cronLogger{logger})),
		)),
	}
}

// Snapshot returns the current immutable snapshot. Before the first
// successful load it is empty, never nil.
func (r *Registry) Snapshot() Snapshot {
	if v := r.snapshot.Load(); v != nil {
		return v.(Snapshot)
	}
	return Snapshot{}
}

// Start performs the initial load and starts the periodic refresh plus the
// daily signing-certificate check. The initial load must succeed: without a
// first snapshot there is nothing to fail open to.
func (r *Registry) Start(ctx context.Context) error {
	if err := r.Refresh(ctx); err != nil {
		return err
	}

	if _, err := r.cron.AddFunc("@every "+r.cfg.RefreshInterval.String(), func() {
		// Timer-driven refreshes recover locally: the old snapshot
		// stays authoritative and the next tick retries.
		if err := r.Refresh(context.Background()); err != nil {
			r.logger.WithError(err).Error("Scheduled IdP metadata refresh failed, keeping previous snapshot")
		}
	}); err != nil {
		return err
	}

	if r.cfg.SigningCert != nil {
		r.checkSigningCert()
		if _, err := r.cron.AddFunc("@daily", r.checkSigningCert); err != nil {
			return err
		}
	}

	r.cron.Start()
	return nil
}

// Stop halts the refresh schedule and waits for a running job to finish.
func (r *Registry) Stop() {
	<-r.cron.Stop().Done()
}

// Refresh loads the metadata and, only on success, swaps the snapshot.
// Concurrent calls (admin trigger racing the timer) are collapsed into a
// single load. The OnRefresh callback fires once per attempt.
func (r *Registry) Refresh(ctx context.Context) error {
	_, err, _ := r.group.Do("refresh", func() (interface{}, error) {
		err := r.refresh(ctx)
		if r.cfg.OnRefresh != nil {
			r.cfg.OnRefresh(err)
		}
		return nil, err
	})
	return err
}

func (r *Registry) refresh(ctx context.Context) error {
	// Without a metadata URL the registry runs from the sandbox
	// descriptors alone.
	snapshot := Snapshot{}
	if r.cfg.MetadataURL != "" {
		var err error
		snapshot, err = r.loader.Load(ctx, r.cfg.MetadataURL, r.cfg.Whitelist)
		if err != nil {
			if r.metrics != nil {
				r.metrics.MetadataRefreshTotal.WithLabelValues("failure").Inc()
			}
			return err
		}
	}

	for key, d := range r.cfg.SandboxIdPs {
		snapshot[key] = d
	}
	if len(snapshot) == 0 {
		if r.metrics != nil {
			r.metrics.MetadataRefreshTotal.WithLabelValues("failure").Inc()
		}
		return ErrEmptySnapshot
	}

	r.snapshot.Store(snapshot)
	if r.metrics != nil {
		r.metrics.MetadataRefreshTotal.WithLabelValues("success").Inc()
		r.metrics.RegisteredIdPs.Set(float64(len(snapshot)))
	}
	r.logger.WithField("idp_count", len(snapshot)).Info("IdP metadata snapshot updated")
	return nil
}

func (r *Registry) checkSigningCert() {
	exp := CheckCertExpiry(r.cfg.SigningCert, time.Now())
	if r.metrics != nil {
		r.metrics.SigningCertDaysLeft.Set(float64(exp.DaysLeft))
	}

	log := r.logger.WithFields(map[string]interface{}{
		"not_after": exp.NotAfter,
		"days_left": exp.DaysLeft,
	})
	switch exp.Status {
	case CertExpired:
		log.Error("SAML signing certificate has expired")
	case CertExpiring:
		log.Warnf("SAML signing certificate expires in %d days", exp.DaysLeft)
	default:
		log.Infof("SAML signing certificate valid for %d more days", exp.DaysLeft)
	}
}
