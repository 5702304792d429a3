package idp

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Raw XML shapes. Element names are matched by local name so the parser
// tolerates the namespace prefixes that differ between federation documents.
type entitiesDescriptor struct {
	EntityDescriptors []entityDescriptor   `xml:"EntityDescriptor"`
	Nested            []entitiesDescriptor `xml:"EntitiesDescriptor"`
}

type entityDescriptor struct {
	EntityID         string            `xml:"entityID,attr"`
	IDPSSODescriptor *idpSSODescriptor `xml:"IDPSSODescriptor"`
}

type idpSSODescriptor struct {
	KeyDescriptors       []keyDescriptor `xml:"KeyDescriptor"`
	SingleSignOnServices []samlEndpoint  `xml:"SingleSignOnService"`
	SingleLogoutServices []samlEndpoint  `xml:"SingleLogoutService"`
}

type keyDescriptor struct {
	Use     string `xml:"use,attr"`
	KeyInfo struct {
		X509Data struct {
			Certificates []string `xml:"X509Certificate"`
		} `xml:"X509Data"`
	} `xml:"KeyInfo"`
}

type samlEndpoint struct {
	Binding  string `xml:"Binding,attr"`
	Location string `xml:"Location,attr"`
}

const (
	redirectBinding = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
	postBinding     = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
)

// SkippedEntity records why one entity descriptor was discarded during
// parsing. Discards are reported, never fatal.
type SkippedEntity struct {
	EntityID string
	Reason   string
}

// ParseMetadata extracts every well-formed IdP entity descriptor from a SAML
// metadata document. Entities missing a required element (entityID, signing
// certificate, SSO redirect endpoint, SLO endpoint) are skipped and reported;
// only a document that cannot be decoded at all yields an error.
func ParseMetadata(data []byte) ([]Descriptor, []SkippedEntity, error) {
	var aggregate entitiesDescriptor
	if err := xml.Unmarshal(data, &aggregate); err != nil {
		return nil, nil, fmt.Errorf("%w: decode document: %v", ErrMetadata, err)
	}

	entities := collectEntities(&aggregate)
	if len(entities) == 0 && rootLocalName(data) == "EntityDescriptor" {
		// The document root is a single EntityDescriptor, not an aggregate.
		var single entityDescriptor
		if err := xml.Unmarshal(data, &single); err != nil {
			return nil, nil, fmt.Errorf("%w: decode document: %v", ErrMetadata, err)
		}
		entities = []entityDescriptor{single}
	}

	var descriptors []Descriptor
	var skipped []SkippedEntity
	for _, e := range entities {
		d, reason := extractDescriptor(&e)
		if reason != "" {
			skipped = append(skipped, SkippedEntity{EntityID: e.EntityID, Reason: reason})
			continue
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, skipped, nil
}

// rootLocalName returns the local name of the document's root element, or
// an empty string when no start element can be read.
func rootLocalName(data []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local
		}
	}
}

func collectEntities(agg *entitiesDescriptor) []entityDescriptor {
	entities := append([]entityDescriptor(nil), agg.EntityDescriptors...)
	for i := range agg.Nested {
		entities = append(entities, collectEntities(&agg.Nested[i])...)
	}
	return entities
}

// extractDescriptor validates one entity. An empty reason means success.
func extractDescriptor(e *entityDescriptor) (Descriptor, string) {
	if e.EntityID == "" {
		return Descriptor{}, "missing entityID"
	}
	if e.IDPSSODescriptor == nil {
		return Descriptor{}, "no IDPSSODescriptor"
	}

	var certs []string
	for _, kd := range e.IDPSSODescriptor.KeyDescriptors {
		if kd.Use != "" && kd.Use != "signing" {
			continue
		}
		for _, c := range kd.KeyInfo.X509Data.Certificates {
			if trimmed := strings.Join(strings.Fields(c), ""); trimmed != "" {
				certs = append(certs, trimmed)
			}
		}
	}
	if len(certs) == 0 {
		return Descriptor{}, "no signing certificate"
	}

	ssoURL := pickEndpoint(e.IDPSSODescriptor.SingleSignOnServices)
	if ssoURL == "" {
		return Descriptor{}, "no SSO endpoint"
	}
	sloURL := pickEndpoint(e.IDPSSODescriptor.SingleLogoutServices)
	if sloURL == "" {
		return Descriptor{}, "no SLO endpoint"
	}

	return Descriptor{
		EntityID:     e.EntityID,
		SigningCerts: certs,
		SSOURL:       ssoURL,
		SLOURL:       sloURL,
	}, ""
}

// pickEndpoint prefers the HTTP-Redirect binding and falls back to HTTP-POST.
func pickEndpoint(endpoints []samlEndpoint) string {
	var post string
	for _, ep := range endpoints {
		switch ep.Binding {
		case redirectBinding:
			if ep.Location != "" {
				return ep.Location
			}
		case postBinding:
			if post == "" {
				post = ep.Location
			}
		}
	}
	return post
}
