package spid

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/platinummonkey/ingresso/pkg/idp"
	"github.com/platinummonkey/ingresso/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func generateTestMaterial(t *testing.T) *SigningMaterial {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: "ingresso-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}

	return &SigningMaterial{Key: key, Certificate: cert}
}

func materialPEM(t *testing.T, m *SigningMaterial) (keyPEM, certPEM []byte) {
	t.Helper()
	keyPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(m.Key),
	})
	certPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: m.Certificate.Raw,
	})
	return keyPEM, certPEM
}

func testSnapshot(idpMaterial *SigningMaterial) idp.Snapshot {
	return idp.Snapshot{
		"poste": {
			EntityID:     "https://posteid.poste.example",
			SigningCerts: []string{base64.StdEncoding.EncodeToString(idpMaterial.Certificate.Raw)},
			SSOURL:       "https://posteid.poste.example/sso",
			SLOURL:       "https://posteid.poste.example/slo",
		},
	}
}

func testAdapter(t *testing.T, snapshot idp.Snapshot) (*Adapter, *SigningMaterial) {
	t.Helper()

	material := generateTestMaterial(t)
	a, err := NewAdapter(Config{
		EntityID:       "https://ingresso.example",
		ACSURL:         "https://ingresso.example/assertionConsumerService",
		AudienceURI:    "https://ingresso.example",
		SLOCallbackURL: "https://ingresso.example/slo",
		AttributeIndex: 0,
	}, material, func() idp.Snapshot { return snapshot }, testLogger())
	if err != nil {
		t.Fatalf("NewAdapter failed: %v", err)
	}
	return a, material
}
