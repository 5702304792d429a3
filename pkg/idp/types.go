package idp

// Descriptor is the validated projection of one IdP entity descriptor:
// everything the SAML layer needs to trust and address that provider.
type Descriptor struct {
	EntityID string `json:"entity_id"`
	// SigningCerts holds base64 DER certificates in document order. Never
	// empty for a valid descriptor.
	SigningCerts []string `json:"signing_certs"`
	SSOURL       string   `json:"sso_url"`
	SLOURL       string   `json:"slo_url"`
}

// Snapshot is an immutable mapping from a local IdP key (the short name used
// in configuration and login URLs) to its descriptor. A snapshot is replaced
// wholesale on refresh, never mutated in place.
type Snapshot map[string]Descriptor

// ByEntityID returns the descriptor whose EntityID matches, if any.
func (s Snapshot) ByEntityID(entityID string) (Descriptor, bool) {
	for _, d := range s {
		if d.EntityID == entityID {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Keys returns the local keys present in the snapshot.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}
