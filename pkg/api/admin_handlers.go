package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/ingresso/pkg/httputil"
	"github.com/platinummonkey/ingresso/pkg/identity"
)

// refreshIdPMetadata handles POST /admin/idp-metadata/refresh
func (s *Server) refreshIdPMetadata(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.RefreshIdpMetadata(r.Context()); err != nil {
		s.logger.WithError(err).Error("Manual metadata refresh failed")
		httputil.WriteServiceUnavailable(w, "metadata refresh failed")
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "refreshed"})
}

// listUserSessions handles GET /admin/sessions/{fiscalCode}
func (s *Server) listUserSessions(w http.ResponseWriter, r *http.Request) {
	fiscalCode, ok := httputil.ParsePathStringOrError(w, r, "fiscalCode")
	if !ok {
		return
	}

	users, err := s.store.ListSessions(r.Context(), fiscalCode)
	if err != nil {
		s.logger.WithError(err).WithField("fiscal_code", fiscalCode).Error("Failed to list sessions")
		httputil.WriteInternalError(w, errors.New("failed to list sessions"))
		return
	}

	sessions := make([]identity.PublicView, 0, len(users))
	for i := range users {
		sessions = append(sessions, users[i].Public())
	}
	httputil.WriteSuccess(w, sessions)
}

// deleteUserSessions handles DELETE /admin/sessions/{fiscalCode}
func (s *Server) deleteUserSessions(w http.ResponseWriter, r *http.Request) {
	fiscalCode, ok := httputil.ParsePathStringOrError(w, r, "fiscalCode")
	if !ok {
		return
	}

	if err := s.store.DelAllSessions(r.Context(), fiscalCode); err != nil {
		s.logger.WithError(err).WithField("fiscal_code", fiscalCode).Error("Failed to delete sessions")
		httputil.WriteInternalError(w, errors.New("failed to delete sessions"))
		return
	}
	httputil.WriteNoContent(w)
}

// blockUser handles POST /admin/blocked-users/{fiscalCode}
//
// Live sessions survive the blocklist write but stop authenticating
// immediately: every session lookup checks the blocklist.
func (s *Server) blockUser(w http.ResponseWriter, r *http.Request) {
	fiscalCode, ok := httputil.ParsePathStringOrError(w, r, "fiscalCode")
	if !ok {
		return
	}

	if err := s.store.BlockUser(r.Context(), fiscalCode); err != nil {
		s.logger.WithError(err).WithField("fiscal_code", fiscalCode).Error("Failed to block user")
		httputil.WriteInternalError(w, errors.New("failed to block user"))
		return
	}
	httputil.WriteNoContent(w)
}

// unblockUser handles DELETE /admin/blocked-users/{fiscalCode}
func (s *Server) unblockUser(w http.ResponseWriter, r *http.Request) {
	fiscalCode, ok := httputil.ParsePathStringOrError(w, r, "fiscalCode")
	if !ok {
		return
	}

	if err := s.store.UnblockUser(r.Context(), fiscalCode); err != nil {
		s.logger.WithError(err).WithField("fiscal_code", fiscalCode).Error("Failed to unblock user")
		httputil.WriteInternalError(w, errors.New("failed to unblock user"))
		return
	}
	httputil.WriteNoContent(w)
}
