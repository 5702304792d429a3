package idp

// SandboxDescriptor builds the fixed descriptor for a non-production IdP
// (SPID validator, local test environment) whose endpoints follow the
// standard testenv layout under baseURL.
func SandboxDescriptor(entityID, baseURL, signingCert string) Descriptor {
	return Descriptor{
		EntityID:     entityID,
		SigningCerts: []string{signingCert},
		SSOURL:       baseURL + "/sso",
		SLOURL:       baseURL + "/slo",
	}
}
