// Package spid adapts SPID SAML 2.0 authentication to the rest of the
// gateway. It builds per-IdP service providers from the current metadata
// snapshot, validates incoming assertions, decodes the attribute bag into a
// typed federated identity, and constructs signed single-logout redirects.
package spid
