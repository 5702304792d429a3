package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// tokenBytes is the entropy per opaque token (48 bytes = 96 hex chars).
	tokenBytes = 48

	// maxBundleAttempts bounds the retries spent resolving token
	// collisions inside one bundle before giving up.
	maxBundleAttempts = 5
)

// Mapper converts a FederatedIdentity into a canonical User with a freshly
// minted token bundle.
type Mapper struct {
	now func() time.Time
}

// NewMapper creates a Mapper using the wall clock.
func NewMapper() *Mapper {
	return &Mapper{now: time.Now}
}

// NewMapperWithClock creates a Mapper with an injected clock, for tests.
func NewMapperWithClock(now func() time.Time) *Mapper {
	return &Mapper{now: now}
}

// ToUser validates the required assertion attributes, copies them into a
// User and generates six independent, mutually unique opaque tokens. On any
// failure no partial User is returned.
func (m *Mapper) ToUser(fi *FederatedIdentity) (*User, error) {
	if fi.FiscalNumber == "" {
		return nil, ErrMissingFiscalNumber
	}
	if fi.Name == "" {
		return nil, ErrMissingName
	}
	if fi.FamilyName == "" {
		return nil, ErrMissingFamilyName
	}
	if !fi.SpidLevel.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSpidLevel, fi.SpidLevel)
	}

	tokens, err := newTokenBundle()
	if err != nil {
		return nil, err
	}

	return &User{
		FiscalCode:    fi.FiscalNumber,
		Name:          fi.Name,
		FamilyName:    fi.FamilyName,
		Email:         fi.Email,
		MobilePhone:   fi.MobilePhone,
		SpidLevel:     fi.SpidLevel,
		SpidIdp:       fi.Issuer,
		SessionIndex:  fi.SessionIndex,
		CreatedAt:     m.now().UTC(),
		SessionToken:  tokens[0],
		WalletToken:   tokens[1],
		MyPortalToken: tokens[2],
		BPDToken:      tokens[3],
		ZendeskToken:  tokens[4],
		FIMSToken:     tokens[5],
	}, nil
}

// newTokenBundle mints one token per TokenType. Collisions inside a bundle
// are vanishingly unlikely with 384 bits of entropy per token, but the loop
// still enforces mutual uniqueness within a bounded number of attempts.
func newTokenBundle() ([]string, error) {
	for attempt := 0; attempt < maxBundleAttempts; attempt++ {
		seen := make(map[string]struct{}, len(TokenTypes))
		tokens := make([]string, 0, len(TokenTypes))
		ok := true
		for range TokenTypes {
			t, err := newToken()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
			}
			if _, dup := seen[t]; dup {
				ok = false
				break
			}
			seen[t] = struct{}{}
			tokens = append(tokens, t)
		}
		if ok {
			return tokens, nil
		}
	}
	return nil, fmt.Errorf("%w: bundle uniqueness not reached after %d attempts", ErrTokenGeneration, maxBundleAttempts)
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
