// Package idp maintains the registry of trusted SPID identity providers.
//
// The registry periodically fetches the federation's aggregate SAML metadata,
// parses it into descriptors, filters them against a configured whitelist and
// publishes the result as an immutable snapshot behind an atomic reference.
// Readers never block on a refresh; a failed refresh keeps the last known
// good snapshot authoritative.
package idp
