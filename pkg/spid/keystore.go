package spid

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"

	dsig "github.com/russellhaering/goxmldsig"
)

// SigningMaterial is the service's own SAML key pair: the RSA key that signs
// AuthnRequests and logout redirects, and the certificate published in the
// SP metadata.
type SigningMaterial struct {
	Key         *rsa.PrivateKey
	Certificate *x509.Certificate
}

// LoadSigningMaterial reads and parses the PEM key and certificate files.
func LoadSigningMaterial(keyPath, certPath string) (*SigningMaterial, error) {
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing certificate: %w", err)
	}
	return ParseSigningMaterial(keyPEM, certPEM)
}

// ParseSigningMaterial parses PEM-encoded key and certificate bytes. The key
// may be PKCS#1 or PKCS#8, but must be RSA.
func ParseSigningMaterial(keyPEM, certPEM []byte) (*SigningMaterial, error) {
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, fmt.Errorf("failed to decode certificate PEM")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("failed to decode private key PEM")
	}
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		// Try PKCS8 format
		pkcs8Key, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		var ok bool
		key, ok = pkcs8Key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not RSA")
		}
	}

	return &SigningMaterial{Key: key, Certificate: cert}, nil
}

// KeyStore returns the material as a goxmldsig keystore for gosaml2.
func (m *SigningMaterial) KeyStore() dsig.X509KeyStore {
	return &dsig.TLSCertKeyStore{
		PrivateKey:  m.Key,
		Certificate: [][]byte{m.Certificate.Raw},
	}
}

// CertBase64 returns the certificate DER bytes base64 encoded, the form
// embedded in metadata KeyDescriptor elements.
func (m *SigningMaterial) CertBase64() string {
	return base64.StdEncoding.EncodeToString(m.Certificate.Raw)
}
