package main

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/platinummonkey/ingresso/pkg/config"
	"github.com/platinummonkey/ingresso/pkg/idp"
	"github.com/sirupsen/logrus"
)

// idp-inspect fetches a federation metadata document and prints the parsed
// IdP descriptors, flagging whitelist mismatches and expiring certificates.
// Useful when onboarding a new IdP or debugging a refresh failure before
// touching the running service.
func main() {
	metadataURL := flag.String("url", "", "Federation metadata URL to fetch")
	whitelistFile := flag.String("whitelist", "", "Optional whitelist YAML; descriptors are matched against it")
	timeout := flag.Duration("timeout", 30*time.Second, "Fetch timeout")
	asJSON := flag.Bool("json", false, "Print descriptors as JSON")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)

	if *metadataURL == "" {
		logger.Fatal("-url is required")
	}

	whitelist := map[string]string{}
	if *whitelistFile != "" {
		var err error
		whitelist, err = config.LoadWhitelist(*whitelistFile)
		if err != nil {
			logger.Fatalf("Failed to load whitelist: %v", err)
		}
	}

	// The registry loader only keeps whitelisted entities; fetch and parse
	// directly so every descriptor shows up.
	data, err := fetchMetadata(*metadataURL, *timeout)
	if err != nil {
		logger.Fatalf("Failed to fetch metadata: %v", err)
	}

	descriptors, skipped, err := idp.ParseMetadata(data)
	if err != nil {
		logger.Fatalf("Failed to parse metadata: %v", err)
	}

	for _, s := range skipped {
		logger.WithFields(logrus.Fields{
			"entity_id": s.EntityID,
			"reason":    s.Reason,
		}).Warn("Skipped malformed entity")
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(descriptors); err != nil {
			logger.Fatalf("Failed to encode descriptors: %v", err)
		}
		return
	}

	logger.Infof("Parsed %d descriptors, skipped %d", len(descriptors), len(skipped))
	for _, d := range descriptors {
		fields := logrus.Fields{
			"entity_id": d.EntityID,
			"sso_url":   d.SSOURL,
			"slo_url":   d.SLOURL,
			"certs":     len(d.SigningCerts),
		}
		if len(whitelist) > 0 {
			if key, ok := whitelist[d.EntityID]; ok {
				fields["whitelist_key"] = key
			} else {
				fields["whitelist_key"] = "(not whitelisted)"
			}
		}
		logger.WithFields(fields).Info("IdP descriptor")

		reportCertExpiry(logger, d)
	}

	for entityID, key := range whitelist {
		if !containsEntity(descriptors, entityID) {
			logger.Warnf("Whitelisted IdP %s (%s) missing from metadata", key, entityID)
		}
	}
}

func fetchMetadata(url string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{status: resp.Status}
	}
	return io.ReadAll(resp.Body)
}

type httpStatusError struct {
	status string
}

func (e *httpStatusError) Error() string {
	return "unexpected response: " + e.status
}

// reportCertExpiry decodes each signing certificate and warns about any
// that is expired or inside the warning window.
func reportCertExpiry(logger *logrus.Logger, d idp.Descriptor) {
	for i, encoded := range d.SigningCerts {
		der, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			logger.Warnf("IdP %s certificate %d: undecodable base64", d.EntityID, i)
			continue
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			logger.Warnf("IdP %s certificate %d: %v", d.EntityID, i, err)
			continue
		}
		exp := idp.CheckCertExpiry(cert, time.Now())
		if exp.Status != idp.CertOK {
			logger.Warnf("IdP %s certificate %d is %s (notAfter %s)", d.EntityID, i, exp.Status, exp.NotAfter.Format(time.RFC3339))
		}
	}
}

func containsEntity(descriptors []idp.Descriptor, entityID string) bool {
	for _, d := range descriptors {
		if d.EntityID == entityID {
			return true
		}
	}
	return false
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
