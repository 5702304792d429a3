package gateway

import (
	"context"
	"time"

	"github.com/platinummonkey/ingresso/pkg/identity"
	"github.com/platinummonkey/ingresso/pkg/observability"
	"github.com/platinummonkey/ingresso/pkg/session"
)

// SAMLEngine is the boundary to the SAML adapter: validate an assertion into
// a federated identity, and build a signed logout redirect.
type SAMLEngine interface {
	SubmitAssertion(ctx context.Context, encodedResponse string) (*identity.FederatedIdentity, error)
	BuildLogoutRequest(user *identity.User) (string, error)
}

// MetadataRefresher triggers an IdP metadata reload, independent of the
// registry's own timer.
type MetadataRefresher interface {
	Refresh(ctx context.Context) error
}

// AssertionArchiver persists raw validated assertions for audit. Archive
// failures never fail a login.
type AssertionArchiver interface {
	Archive(ctx context.Context, fi *identity.FederatedIdentity, createdAt time.Time) error
}

// Config carries the gateway policies.
type Config struct {
	// SessionTTL is the lifetime of every key in a session's bundle.
	SessionTTL time.Duration
}

// Service implements the gateway operations.
type Service struct {
	cfg      Config
	engine   SAMLEngine
	mapper   *identity.Mapper
	store    *session.Store
	registry MetadataRefresher
	archiver AssertionArchiver
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewService creates a gateway Service. archiver and metrics may be nil.
func NewService(cfg Config, engine SAMLEngine, mapper *identity.Mapper, store *session.Store, registry MetadataRefresher, archiver AssertionArchiver, logger *observability.Logger, metrics *observability.Metrics) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	return &Service{
		cfg:      cfg,
		engine:   engine,
		mapper:   mapper,
		store:    store,
		registry: registry,
		archiver: archiver,
		logger:   logger,
		metrics:  metrics,
	}
}

// Authenticate resolves a session token to its user and enforces the
// blocklist. A user blocked mid-session fails here on the next call even
// though the token's TTL has not elapsed.
func (s *Service) Authenticate(ctx context.Context, sessionToken string) (*identity.User, error) {
	user, err := s.store.GetBySessionToken(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	blocked, err := s.store.IsBlockedUser(ctx, user.FiscalCode)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}
	return user, nil
}

// CompleteLogin validates the assertion, maps it to a user with a fresh token
// bundle, and persists the session. The raw assertion is archived
// asynchronously; archive failures are logged, never surfaced.
func (s *Service) CompleteLogin(ctx context.Context, encodedResponse string) (*identity.User, error) {
	fi, err := s.engine.SubmitAssertion(ctx, encodedResponse)
	if err != nil {
		s.countLogin("validation_failure")
		return nil, err
	}

	blocked, err := s.store.IsBlockedUser(ctx, fi.FiscalNumber)
	if err != nil {
		s.countLogin("store_failure")
		return nil, err
	}
	if blocked {
		s.countLogin("blocked")
		return nil, ErrBlocked
	}

	user, err := s.mapper.ToUser(fi)
	if err != nil {
		s.countLogin("mapping_failure")
		return nil, err
	}

	if err := s.store.Set(ctx, user, s.cfg.SessionTTL); err != nil {
		s.countLogin("store_failure")
		return nil, err
	}

	if s.archiver != nil {
		go s.archive(fi, user.CreatedAt)
	}

	s.countLogin("success")
	s.logger.WithFields(map[string]interface{}{
		"fiscal_code": user.FiscalCode,
		"idp":         user.SpidIdp,
		"spid_level":  user.SpidLevel,
	}).Info("Login completed")
	return user, nil
}

func (s *Service) archive(fi *identity.FederatedIdentity, createdAt time.Time) {
	defer observability.RecoverPanic(s.logger, "assertion archive")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.archiver.Archive(ctx, fi, createdAt); err != nil {
		s.logger.WithError(err).WithField("fiscal_code", fi.FiscalNumber).
			Error("Failed to archive assertion")
	}
}

// Logout deletes the session owning sessionToken and returns the signed
// single-logout redirect for the issuing IdP. The local session is gone even
// if building the redirect fails.
func (s *Service) Logout(ctx context.Context, sessionToken string) (string, error) {
	user, err := s.store.GetBySessionToken(ctx, sessionToken)
	if err != nil {
		return "", err
	}

	if err := s.store.Del(ctx, sessionToken); err != nil {
		return "", err
	}

	redirectURL, err := s.engine.BuildLogoutRequest(user)
	if err != nil {
		return "", err
	}
	return redirectURL, nil
}

// RefreshIdpMetadata triggers a metadata reload outside the periodic
// schedule. Concurrent triggers collapse into one load.
func (s *Service) RefreshIdpMetadata(ctx context.Context) error {
	return s.registry.Refresh(ctx)
}

func (s *Service) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}
