// Package identity defines the canonical user model of the gateway and the
// mapping from a validated SPID assertion to it.
//
// A FederatedIdentity is the raw, strongly-typed view of one assertion's
// attribute bag and lives only for the duration of a single login attempt.
// The Mapper converts it into a User, stamping the creation time and minting
// the bundle of opaque tokens that downstream consumers (session, wallet,
// myportal, bpd, zendesk, fims) authenticate with.
package identity
