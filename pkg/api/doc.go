// Package api provides the HTTP surface of the identity gateway.
//
// # Overview
//
// The server exposes the citizen-facing login flow, the session endpoints
// and a small set of operator routes:
//
//	GET  /login?entityID=<key>        302 redirect to the chosen IdP
//	POST /assertionConsumerService    SAMLResponse callback, returns the token bundle
//	POST /logout                      (authed) deletes the session, returns the SLO redirect
//	GET  /session                     (authed) current user, without tokens
//	GET  /metadata                    SP metadata XML for IdP onboarding
//
//	POST   /admin/idp-metadata/refresh
//	GET    /admin/sessions/{fiscalCode}
//	DELETE /admin/sessions/{fiscalCode}
//	POST   /admin/blocked-users/{fiscalCode}
//	DELETE /admin/blocked-users/{fiscalCode}
//
// Health and metrics live on a separate port, see pkg/observability.
//
// # Status Codes
//
// The assertion callback distinguishes its failure modes: 401 for a
// rejected assertion, 403 for a blocked user, 400 for an unknown issuer,
// 500 for infrastructure failures. Session endpoints return 401 for a
// missing or expired session and 403 for a blocked user.
//
// # Related Packages
//
//   - pkg/gateway: Login, logout and session resolution
//   - pkg/spid: SAML message construction
//   - pkg/middleware: Session authentication and rate limiting
package api
