// Package assertlog archives raw validated SAML assertions to object
// storage. SPID operating rules require the assertion behind each issued
// session to be retained for dispute handling; archiving is best effort and
// never blocks or fails a login.
package assertlog
