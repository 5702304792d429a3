package idp

import (
	"crypto/x509"
	"time"
)

// CertStatus classifies how close the service's own signing certificate is
// to its notAfter date.
type CertStatus int

const (
	CertOK CertStatus = iota
	CertExpiring
	CertExpired
)

func (s CertStatus) String() string {
	return [...]string{"ok", "expiring", "expired"}[s]
}

// certWarnWindowDays is the window before notAfter in which the daily check
// escalates from info to warning.
const certWarnWindowDays = 60

// CertExpiry is the result of one signing-certificate inspection.
type CertExpiry struct {
	NotAfter time.Time
	DaysLeft int
	Status   CertStatus
}

// CheckCertExpiry inspects the certificate's notAfter relative to now. The
// check is purely observational: an expired certificate is reported, never
// used to block logins.
func CheckCertExpiry(cert *x509.Certificate, now time.Time) CertExpiry {
	remaining := cert.NotAfter.Sub(now)
	days := int(remaining.Hours() / 24)
	status := CertOK
	switch {
	case remaining <= 0:
		status = CertExpired
	case days <= certWarnWindowDays:
		status = CertExpiring
	}
	return CertExpiry{NotAfter: cert.NotAfter, DaysLeft: days, Status: status}
}
