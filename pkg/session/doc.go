// Package session persists the TTL-bound mapping from every token of a login
// bundle to its owning user, a per-fiscal-code session index, and the fiscal
// code blocklist, on redis. Writes always target the primary; reads may be
// served by a replica, accepting bounded staleness.
package session
