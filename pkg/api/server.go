package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/ingresso/pkg/httputil"
	"github.com/platinummonkey/ingresso/pkg/identity"
	"github.com/platinummonkey/ingresso/pkg/middleware"
	"github.com/platinummonkey/ingresso/pkg/observability"
	"github.com/platinummonkey/ingresso/pkg/spid"
)

// maxAssertionBytes bounds the ACS request body. SPID assertions run a few
// tens of kilobytes; anything bigger is garbage.
const maxAssertionBytes = 256 * 1024

// Gateway is the narrow surface the HTTP layer drives.
type Gateway interface {
	Authenticate(ctx context.Context, sessionToken string) (*identity.User, error)
	CompleteLogin(ctx context.Context, encodedResponse string) (*identity.User, error)
	Logout(ctx context.Context, sessionToken string) (string, error)
	RefreshIdpMetadata(ctx context.Context) error
}

// SAMLProvider builds outbound SAML messages and tracks login flows.
type SAMLProvider interface {
	BuildLoginURL(idpKey, relayState string) (string, error)
	ResolveFlow(relayState string, succeeded bool) (spid.LoginState, error)
	SPMetadata() []byte
}

// SessionAdmin is the session store surface for operator endpoints.
type SessionAdmin interface {
	ListSessions(ctx context.Context, fiscalCode string) ([]identity.User, error)
	DelAllSessions(ctx context.Context, fiscalCode string) error
	BlockUser(ctx context.Context, fiscalCode string) error
	UnblockUser(ctx context.Context, fiscalCode string) error
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	gateway Gateway
	saml    SAMLProvider
	store   SessionAdmin
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewServer creates a new API server. limiter guards the login endpoints and
// may be nil.
func NewServer(gw Gateway, saml SAMLProvider, store SessionAdmin, limiter *middleware.RateLimiter, logger *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		gateway: gw,
		saml:    saml,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}

	s.setupRoutes(limiter)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(limiter *middleware.RateLimiter) {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(s.logger))
	s.router.Use(httputil.RecoveryMiddleware(s.logger))
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	// Login routes. The IdP-facing endpoints are rate limited per client IP.
	loginHandler := http.Handler(http.HandlerFunc(s.login))
	acsHandler := httputil.MaxBytesMiddleware(maxAssertionBytes)(http.HandlerFunc(s.assertionConsumerService))
	if limiter != nil {
		loginHandler = limiter.Handler(loginHandler)
		acsHandler = limiter.Handler(acsHandler)
	}
	s.router.Handle("/login", loginHandler).Methods("GET")
	s.router.Handle("/assertionConsumerService", acsHandler).Methods("POST")

	// Session routes, behind bearer session authentication
	auth := middleware.NewSessionAuth(s.gateway)
	s.router.Handle("/logout", auth.Handler(http.HandlerFunc(s.logout))).Methods("POST")
	s.router.Handle("/session", auth.Handler(http.HandlerFunc(s.getSession))).Methods("GET")

	// SP metadata for IdP onboarding
	s.router.HandleFunc("/metadata", s.spMetadata).Methods("GET")

	// Operator routes; exposure is restricted at the network layer
	admin := s.router.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/idp-metadata/refresh", s.refreshIdPMetadata).Methods("POST")
	admin.HandleFunc("/sessions/{fiscalCode}", s.listUserSessions).Methods("GET")
	admin.HandleFunc("/sessions/{fiscalCode}", s.deleteUserSessions).Methods("DELETE")
	admin.HandleFunc("/blocked-users/{fiscalCode}", s.blockUser).Methods("POST")
	admin.HandleFunc("/blocked-users/{fiscalCode}", s.unblockUser).Methods("DELETE")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped with OpenTelemetry HTTP instrumentation
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "ingresso-api")
}
