package spid

import "fmt"

const spMetadataTemplate = `<?xml version="1.0"?>
<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata"
                     entityID="%s">
  <md:SPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol"
                      AuthnRequestsSigned="true"
                      WantAssertionsSigned="true">
    <md:KeyDescriptor use="signing">
      <ds:KeyInfo xmlns:ds="http://www.w3.org/2000/09/xmldsig#">
        <ds:X509Data>
          <ds:X509Certificate>%s</ds:X509Certificate>
        </ds:X509Data>
      </ds:KeyInfo>
    </md:KeyDescriptor>
    <md:SingleLogoutService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
                            Location="%s"/>
    <md:NameIDFormat>urn:oasis:names:tc:SAML:2.0:nameid-format:transient</md:NameIDFormat>
    <md:AssertionConsumerService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
                                 Location="%s"
                                 index="0"
                                 isDefault="true"/>
    <md:AttributeConsumingService index="%d">
      <md:ServiceName xml:lang="it">Required attributes</md:ServiceName>
      <md:RequestedAttribute Name="fiscalNumber"/>
      <md:RequestedAttribute Name="name"/>
      <md:RequestedAttribute Name="familyName"/>
      <md:RequestedAttribute Name="email"/>
      <md:RequestedAttribute Name="mobilePhone"/>
    </md:AttributeConsumingService>
  </md:SPSSODescriptor>
</md:EntityDescriptor>`

// SPMetadata renders the service provider metadata document published to the
// identity providers.
func (a *Adapter) SPMetadata() []byte {
	doc := fmt.Sprintf(spMetadataTemplate,
		a.cfg.EntityID,
		a.Material().CertBase64(),
		a.cfg.SLOCallbackURL,
		a.cfg.ACSURL,
		a.cfg.AttributeIndex,
	)
	return []byte(doc)
}
