package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/platinummonkey/ingresso/pkg/gateway"
	"github.com/platinummonkey/ingresso/pkg/httputil"
	"github.com/platinummonkey/ingresso/pkg/middleware"
	"github.com/platinummonkey/ingresso/pkg/session"
	"github.com/platinummonkey/ingresso/pkg/spid"
)

// login handles GET /login?entityID=<key>
//
// Issues a signed AuthnRequest for the chosen IdP and redirects the browser
// to it. The relay state ties the eventual assertion back to this request.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	idpKey := httputil.ParseQueryString(r, "entityID", "")
	if !httputil.RequireNonEmpty(w, idpKey, "entityID") {
		return
	}

	relayState := uuid.NewString()
	loginURL, err := s.saml.BuildLoginURL(idpKey, relayState)
	if err != nil {
		if errors.Is(err, spid.ErrUnknownIdP) {
			httputil.WriteNotFoundError(w, "unknown identity provider")
			return
		}
		s.logger.WithError(err).WithField("idp", idpKey).Error("Failed to build login URL")
		httputil.WriteInternalError(w, errors.New("failed to build login request"))
		return
	}

	http.Redirect(w, r, loginURL, http.StatusFound)
}

// assertionConsumerService handles POST /assertionConsumerService
//
// The IdP posts the SAMLResponse form here after authenticating the citizen.
// On success the response carries the fresh token bundle.
func (s *Server) assertionConsumerService(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.WriteBadRequest(w, "malformed form body")
		return
	}

	samlResponse := r.PostFormValue("SAMLResponse")
	if !httputil.RequireNonEmpty(w, samlResponse, "SAMLResponse") {
		return
	}

	user, err := s.gateway.CompleteLogin(r.Context(), samlResponse)

	// The relay state is advisory: an IdP that drops it still gets its
	// assertion validated, the flow entry just expires on its own.
	if relayState := r.PostFormValue("RelayState"); relayState != "" {
		if _, resolveErr := s.saml.ResolveFlow(relayState, err == nil); resolveErr != nil {
			s.logger.WithError(resolveErr).Debug("Unknown relay state on assertion")
		}
	}

	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrBlocked):
			httputil.WriteForbidden(w, "user is blocked")
		case errors.Is(err, spid.ErrUnknownIdP):
			httputil.WriteBadRequest(w, "assertion from an unknown identity provider")
		case spid.IsValidationError(err):
			s.logger.WithError(err).Warn("Assertion rejected")
			httputil.WriteUnauthorized(w, "assertion validation failed")
		default:
			s.logger.WithError(err).Error("Login failed")
			httputil.WriteInternalError(w, errors.New("login failed"))
		}
		return
	}

	httputil.WriteSuccess(w, newLoginResponse(user))
}

// logout handles POST /logout
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.GetSessionToken(r)

	sloURL, err := s.gateway.Logout(r.Context(), token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			httputil.WriteUnauthorized(w, "invalid or expired session")
			return
		}
		s.logger.WithError(err).Error("Logout failed")
		httputil.WriteInternalError(w, errors.New("logout failed"))
		return
	}

	httputil.WriteSuccess(w, LogoutResponse{SLORedirectURL: sloURL})
}

// getSession handles GET /session
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetSessionUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "no session on request")
		return
	}
	httputil.WriteSuccess(w, user.Public())
}

// spMetadata handles GET /metadata
func (s *Server) spMetadata(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/samlmetadata+xml")
	w.WriteHeader(http.StatusOK)
	w.Write(s.saml.SPMetadata())
}
