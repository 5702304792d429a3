// Package gateway is the narrow interface the HTTP layer calls into:
// authenticate a bundle token, complete a SAML login, log out, and trigger an
// IdP metadata refresh. It composes the SAML adapter, the identity mapper,
// the session store, and the metadata registry.
package gateway
