package spid

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	saml2 "github.com/russellhaering/gosaml2"
	samltypes "github.com/russellhaering/gosaml2/types"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/platinummonkey/ingresso/pkg/identity"
	"github.com/platinummonkey/ingresso/pkg/idp"
	"github.com/platinummonkey/ingresso/pkg/observability"
)

const (
	nameIDFormatTransient = "urn:oasis:names:tc:SAML:2.0:nameid-format:transient"

	// SPID attribute names as they appear in the assertion's attribute bag.
	attrFiscalNumber = "fiscalNumber"
	attrName         = "name"
	attrFamilyName   = "familyName"
	attrEmail        = "email"
	attrMobilePhone  = "mobilePhone"

	// SPID qualifies the fiscal number with the national TIN prefix.
	fiscalNumberPrefix = "TINIT-"

	certStoreCacheSize = 32
)

// Config carries the service provider's own SAML identity.
type Config struct {
	// EntityID is the SP issuer published in metadata and requests.
	EntityID string
	// ACSURL is the assertion consumer service callback.
	ACSURL string
	// AudienceURI must match the assertion's audience restriction.
	AudienceURI string
	// SLOCallbackURL receives the IdP's logout response.
	SLOCallbackURL string
	// ClockSkew tolerated when validating assertion time conditions.
	ClockSkew time.Duration
	// AttributeIndex selects the AttributeConsumingService in metadata.
	AttributeIndex int
}

// Adapter builds per-IdP SAML service providers from the current metadata
// snapshot and mediates between raw SAML messages and typed identities.
// Parsed IdP certificate stores are cached; the cache key includes the
// certificate fingerprint so rotated certificates miss naturally.
type Adapter struct {
	cfg        Config
	material   atomic.Pointer[SigningMaterial]
	snapshot   func() idp.Snapshot
	certStores *lru.Cache[string, *dsig.MemoryX509CertificateStore]
	flows      *flowTable
	logger     *observability.Logger
}

// NewAdapter creates an Adapter. snapshot is the read handle to the IdP
// registry; the adapter never mutates the registry.
func NewAdapter(cfg Config, material *SigningMaterial, snapshot func() idp.Snapshot, logger *observability.Logger) (*Adapter, error) {
	if cfg.EntityID == "" || cfg.ACSURL == "" {
		return nil, fmt.Errorf("spid: entityID and ACS URL are required")
	}
	if material == nil {
		return nil, fmt.Errorf("spid: signing material is required")
	}
	if cfg.AudienceURI == "" {
		cfg.AudienceURI = cfg.EntityID
	}

	cache, err := lru.New[string, *dsig.MemoryX509CertificateStore](certStoreCacheSize)
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		cfg:        cfg,
		snapshot:   snapshot,
		certStores: cache,
		flows:      newFlowTable(),
		logger:     logger,
	}
	a.material.Store(material)
	return a, nil
}

// Material returns the current signing material.
func (a *Adapter) Material() *SigningMaterial {
	return a.material.Load()
}

// ReloadMaterial swaps the signing material. In-flight requests keep using
// the material they already resolved.
func (a *Adapter) ReloadMaterial(m *SigningMaterial) {
	a.material.Store(m)
	a.logger.WithField("not_after", m.Certificate.NotAfter).Info("SAML signing material reloaded")
}

// BuildLoginURL returns the HTTP-Redirect AuthnRequest URL for the IdP
// registered under idpKey, and marks the login flow as issued.
func (a *Adapter) BuildLoginURL(idpKey, relayState string) (string, error) {
	d, ok := a.snapshot()[idpKey]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownIdP, idpKey)
	}

	sp, err := a.serviceProviderFor(d)
	if err != nil {
		return "", err
	}

	authURL, err := sp.BuildAuthURL(relayState)
	if err != nil {
		return "", fmt.Errorf("failed to build auth URL: %w", err)
	}

	if err := a.flows.issue(relayState); err != nil {
		return "", err
	}
	return authURL, nil
}

// SubmitAssertion validates a base64-encoded SAML response and decodes its
// attribute bag into a FederatedIdentity. Signature, timing, and audience
// validation are delegated to the SAML engine configured from the snapshot;
// attribute-level validation is left to the identity mapper.
func (a *Adapter) SubmitAssertion(ctx context.Context, encodedResponse string) (*identity.FederatedIdentity, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedResponse)
	if err != nil {
		return nil, &AssertionValidationError{Reason: ReasonMalformed, Err: err}
	}

	issuer, err := extractIssuer(raw)
	if err != nil {
		return nil, &AssertionValidationError{Reason: ReasonMalformed, Err: err}
	}

	d, ok := a.snapshot().ByEntityID(issuer)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIdP, issuer)
	}

	sp, err := a.serviceProviderFor(d)
	if err != nil {
		return nil, err
	}

	info, err := sp.RetrieveAssertionInfo(encodedResponse)
	if err != nil {
		return nil, &AssertionValidationError{Reason: ReasonInvalidSignature, Err: err}
	}
	if info.WarningInfo != nil {
		if info.WarningInfo.InvalidTime && !a.withinClockSkew(info.Assertions, time.Now()) {
			return nil, &AssertionValidationError{Reason: ReasonExpired}
		}
		if info.WarningInfo.NotInAudience {
			return nil, &AssertionValidationError{Reason: ReasonAudienceMismatch}
		}
	}

	fi := &identity.FederatedIdentity{
		Issuer:       d.EntityID,
		SessionIndex: info.SessionIndex,
		SpidLevel:    identity.SpidLevel(authnContextClassRef(info)),
		RawAssertion: raw,
	}
	for _, attr := range info.Values {
		if len(attr.Values) == 0 {
			continue
		}
		value := attr.Values[0].Value
		switch attr.Name {
		case attrFiscalNumber:
			fi.FiscalNumber = strings.TrimPrefix(value, fiscalNumberPrefix)
		case attrName:
			fi.Name = value
		case attrFamilyName:
			fi.FamilyName = value
		case attrEmail:
			fi.Email = value
		case attrMobilePhone:
			fi.MobilePhone = value
		}
	}
	return fi, nil
}

// withinClockSkew re-checks assertion time conditions with the configured
// tolerance. gosaml2 validates NotBefore/NotOnOrAfter against a strict clock
// and exposes only a single Clock, which cannot widen the window in both
// directions, so timing warnings are retried here against now±skew.
func (a *Adapter) withinClockSkew(assertions []samltypes.Assertion, now time.Time) bool {
	if a.cfg.ClockSkew <= 0 || len(assertions) == 0 {
		return false
	}
	for _, assertion := range assertions {
		c := assertion.Conditions
		if c == nil {
			return false
		}
		notBefore, err := time.Parse(time.RFC3339, c.NotBefore)
		if err != nil || now.Add(a.cfg.ClockSkew).Before(notBefore) {
			return false
		}
		notOnOrAfter, err := time.Parse(time.RFC3339, c.NotOnOrAfter)
		if err != nil || !now.Add(-a.cfg.ClockSkew).Before(notOnOrAfter) {
			return false
		}
	}
	return true
}

// serviceProviderFor builds a gosaml2 service provider addressing one IdP.
func (a *Adapter) serviceProviderFor(d idp.Descriptor) (*saml2.SAMLServiceProvider, error) {
	certStore, err := a.certStoreFor(d)
	if err != nil {
		return nil, err
	}

	return &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      d.SSOURL,
		IdentityProviderIssuer:      d.EntityID,
		ServiceProviderIssuer:       a.cfg.EntityID,
		AssertionConsumerServiceURL: a.cfg.ACSURL,
		SignAuthnRequests:           true,
		AudienceURI:                 a.cfg.AudienceURI,
		IDPCertificateStore:         certStore,
		SPKeyStore:                  a.Material().KeyStore(),
		NameIdFormat:                nameIDFormatTransient,
	}, nil
}

// certStoreFor returns the parsed certificate store for the descriptor,
// keyed by entityID plus certificate fingerprint.
func (a *Adapter) certStoreFor(d idp.Descriptor) (*dsig.MemoryX509CertificateStore, error) {
	key := certStoreKey(d)
	if store, ok := a.certStores.Get(key); ok {
		return store, nil
	}

	roots := make([]*x509.Certificate, 0, len(d.SigningCerts))
	for _, encoded := range d.SigningCerts {
		der, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid certificate for %s: %w", d.EntityID, err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("invalid certificate for %s: %w", d.EntityID, err)
		}
		roots = append(roots, cert)
	}

	store := &dsig.MemoryX509CertificateStore{Roots: roots}
	a.certStores.Add(key, store)
	return store, nil
}

func certStoreKey(d idp.Descriptor) string {
	sum := sha256.Sum256([]byte(strings.Join(d.SigningCerts, "")))
	return d.EntityID + ":" + hex.EncodeToString(sum[:8])
}

// responseIssuer is the minimal projection needed to route a response to its
// IdP before full validation.
type responseIssuer struct {
	Issuer string `xml:"Issuer"`
}

func extractIssuer(raw []byte) (string, error) {
	var r responseIssuer
	if err := xml.Unmarshal(raw, &r); err != nil {
		return "", fmt.Errorf("failed to parse response issuer: %w", err)
	}
	issuer := strings.TrimSpace(r.Issuer)
	if issuer == "" {
		return "", fmt.Errorf("response carries no issuer")
	}
	return issuer, nil
}

func authnContextClassRef(info *saml2.AssertionInfo) string {
	for _, assertion := range info.Assertions {
		stmt := assertion.AuthnStatement
		if stmt == nil || stmt.AuthnContext == nil || stmt.AuthnContext.AuthnContextClassRef == nil {
			continue
		}
		return stmt.AuthnContext.AuthnContextClassRef.Value
	}
	return ""
}
