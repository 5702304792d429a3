package spid

import (
	"bytes"
	"compress/flate"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/platinummonkey/ingresso/pkg/identity"
)

const sigAlgRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"

const logoutRequestTemplate = `<?xml version="1.0"?>
<samlp:LogoutRequest xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol"
                     xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion"
                     ID="_%s"
                     Version="2.0"
                     IssueInstant="%s"
                     Destination="%s">
  <saml:Issuer>%s</saml:Issuer>
  <saml:NameID Format="urn:oasis:names:tc:SAML:2.0:nameid-format:transient"></saml:NameID>
  <samlp:SessionIndex>%s</samlp:SessionIndex>
</samlp:LogoutRequest>`

// BuildLogoutRequest constructs the signed single-logout redirect URL for the
// user's issuing IdP, per the SAML HTTP-Redirect binding: the LogoutRequest
// is deflated, base64 encoded, and the query string signed with RSA-SHA256.
func (a *Adapter) BuildLogoutRequest(user *identity.User) (string, error) {
	d, ok := a.snapshot().ByEntityID(user.SpidIdp)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownIdP, user.SpidIdp)
	}

	request := fmt.Sprintf(logoutRequestTemplate,
		generateRequestID(),
		time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		d.SLOURL,
		a.cfg.EntityID,
		user.SessionIndex,
	)

	encoded, err := compressAndEncode([]byte(request))
	if err != nil {
		return "", err
	}

	signingInput := buildRedirectSigningInput(encoded, "", sigAlgRSASHA256)
	signature, err := signRedirectInput(a.Material().Key, signingInput)
	if err != nil {
		return "", err
	}

	logoutURL, err := url.Parse(d.SLOURL)
	if err != nil {
		return "", fmt.Errorf("invalid SLO URL for %s: %w", d.EntityID, err)
	}
	query := logoutURL.Query()
	query.Set("SAMLRequest", encoded)
	query.Set("SigAlg", sigAlgRSASHA256)
	query.Set("Signature", signature)
	logoutURL.RawQuery = query.Encode()

	return logoutURL.String(), nil
}

func generateRequestID() string {
	b := make([]byte, 20)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// compressAndEncode deflates and base64 encodes a SAML message for the
// HTTP-Redirect binding.
func compressAndEncode(data []byte) (string, error) {
	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return "", fmt.Errorf("failed to create deflate writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return "", fmt.Errorf("failed to write compressed data: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to flush compressed data: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// buildRedirectSigningInput constructs the canonical query string covered by
// the redirect signature.
func buildRedirectSigningInput(encodedRequest, relayState, sigAlg string) string {
	var b strings.Builder
	b.WriteString("SAMLRequest=")
	b.WriteString(url.QueryEscape(encodedRequest))
	if relayState != "" {
		b.WriteString("&RelayState=")
		b.WriteString(url.QueryEscape(relayState))
	}
	b.WriteString("&SigAlg=")
	b.WriteString(url.QueryEscape(sigAlg))
	return b.String()
}

func signRedirectInput(key *rsa.PrivateKey, signingInput string) (string, error) {
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign logout request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
