package idp

import (
	"fmt"
	"testing"
)

const testCert = "MIICljCCAX4CCQDX2yBm8wlHhzANBgkqhkiG9w0BAQsFADA=="

func entityXML(entityID string, withCert, withSSO, withSLO bool) string {
	body := ""
	if withCert {
		body += `<md:KeyDescriptor use="signing"><ds:KeyInfo xmlns:ds="http://www.w3.org/2000/09/xmldsig#"><ds:X509Data><ds:X509Certificate>` + testCert + `</ds:X509Certificate></ds:X509Data></ds:KeyInfo></md:KeyDescriptor>`
	}
	if withSLO {
		body += `<md:SingleLogoutService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect" Location="` + entityID + `/slo"/>`
	}
	if withSSO {
		body += `<md:SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect" Location="` + entityID + `/sso"/>`
	}
	return `<md:EntityDescriptor entityID="` + entityID + `"><md:IDPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">` + body + `</md:IDPSSODescriptor></md:EntityDescriptor>`
}

func aggregateXML(entities ...string) string {
	doc := `<?xml version="1.0"?><md:EntitiesDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata">`
	for _, e := range entities {
		doc += e
	}
	return doc + `</md:EntitiesDescriptor>`
}

func TestParseMetadata_ValidAndMalformedEntities(t *testing.T) {
	doc := aggregateXML(
		entityXML("https://idp-one.example", true, true, true),
		entityXML("https://idp-broken.example", true, true, false), // no SLO
		entityXML("https://idp-two.example", true, true, true),
		entityXML("https://idp-nocert.example", false, true, true),
	)

	descriptors, skipped, err := ParseMetadata([]byte(doc))
	if err != nil {
		t.Fatalf("ParseMetadata failed: %v", err)
	}

	if len(descriptors) != 2 {
		t.Fatalf("Expected 2 descriptors, got %d", len(descriptors))
	}
	if len(skipped) != 2 {
		t.Fatalf("Expected 2 skipped entities, got %d", len(skipped))
	}

	if descriptors[0].EntityID != "https://idp-one.example" {
		t.Errorf("Unexpected first descriptor: %s", descriptors[0].EntityID)
	}
	if descriptors[0].SSOURL != "https://idp-one.example/sso" {
		t.Errorf("Unexpected SSO URL: %s", descriptors[0].SSOURL)
	}
	if descriptors[0].SLOURL != "https://idp-one.example/slo" {
		t.Errorf("Unexpected SLO URL: %s", descriptors[0].SLOURL)
	}
	if len(descriptors[0].SigningCerts) != 1 || descriptors[0].SigningCerts[0] != testCert {
		t.Errorf("Unexpected signing certs: %v", descriptors[0].SigningCerts)
	}

	reasons := map[string]string{}
	for _, s := range skipped {
		reasons[s.EntityID] = s.Reason
	}
	if reasons["https://idp-broken.example"] != "no SLO endpoint" {
		t.Errorf("Unexpected skip reason: %q", reasons["https://idp-broken.example"])
	}
	if reasons["https://idp-nocert.example"] != "no signing certificate" {
		t.Errorf("Unexpected skip reason: %q", reasons["https://idp-nocert.example"])
	}
}

func TestParseMetadata_CountProperty(t *testing.T) {
	// k well-formed plus m malformed entities must yield exactly k
	// descriptors and m skips, for several shapes of k and m.
	for _, tc := range []struct{ k, m int }{{0, 0}, {0, 3}, {1, 0}, {3, 2}, {5, 5}} {
		var entities []string
		for i := 0; i < tc.k; i++ {
			entities = append(entities, entityXML(fmt.Sprintf("https://good-%d.example", i), true, true, true))
		}
		for i := 0; i < tc.m; i++ {
			entities = append(entities, entityXML(fmt.Sprintf("https://bad-%d.example", i), true, false, true))
		}

		descriptors, skipped, err := ParseMetadata([]byte(aggregateXML(entities...)))
		if err != nil {
			t.Fatalf("k=%d m=%d: ParseMetadata failed: %v", tc.k, tc.m, err)
		}
		if len(descriptors) != tc.k {
			t.Errorf("k=%d m=%d: got %d descriptors", tc.k, tc.m, len(descriptors))
		}
		if len(skipped) != tc.m {
			t.Errorf("k=%d m=%d: got %d skipped", tc.k, tc.m, len(skipped))
		}
	}
}

func TestParseMetadata_SingleEntityDocument(t *testing.T) {
	doc := `<?xml version="1.0"?>` + entityXML("https://single.example", true, true, true)

	descriptors, skipped, err := ParseMetadata([]byte(doc))
	if err != nil {
		t.Fatalf("ParseMetadata failed: %v", err)
	}
	if len(descriptors) != 1 || len(skipped) != 0 {
		t.Fatalf("Expected 1 descriptor and 0 skips, got %d/%d", len(descriptors), len(skipped))
	}
}

func TestParseMetadata_NestedEntitiesDescriptor(t *testing.T) {
	inner := aggregateXML(entityXML("https://nested.example", true, true, true))
	// Strip the xml declaration of the inner aggregate before nesting.
	inner = inner[len(`<?xml version="1.0"?>`):]
	doc := `<?xml version="1.0"?><md:EntitiesDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata">` +
		entityXML("https://outer.example", true, true, true) + inner + `</md:EntitiesDescriptor>`

	descriptors, _, err := ParseMetadata([]byte(doc))
	if err != nil {
		t.Fatalf("ParseMetadata failed: %v", err)
	}
	if len(descriptors) != 2 {
		t.Fatalf("Expected 2 descriptors, got %d", len(descriptors))
	}
}

func TestParseMetadata_MalformedDocument(t *testing.T) {
	_, _, err := ParseMetadata([]byte("<not-xml"))
	if err == nil {
		t.Fatal("Expected error for malformed document")
	}
}

func TestPickEndpoint_PrefersRedirectBinding(t *testing.T) {
	endpoints := []samlEndpoint{
		{Binding: postBinding, Location: "https://idp.example/post"},
		{Binding: redirectBinding, Location: "https://idp.example/redirect"},
	}
	if got := pickEndpoint(endpoints); got != "https://idp.example/redirect" {
		t.Errorf("Expected redirect endpoint, got %s", got)
	}

	if got := pickEndpoint(endpoints[:1]); got != "https://idp.example/post" {
		t.Errorf("Expected POST fallback, got %s", got)
	}

	if got := pickEndpoint(nil); got != "" {
		t.Errorf("Expected empty endpoint, got %s", got)
	}
}
