package identity

import "time"

// SpidLevel is the SPID authentication level carried by the assertion's
// AuthnContextClassRef.
type SpidLevel string

const (
	SpidL1 SpidLevel = "https://www.spid.gov.it/SpidL1"
	SpidL2 SpidLevel = "https://www.spid.gov.it/SpidL2"
	SpidL3 SpidLevel = "https://www.spid.gov.it/SpidL3"
)

// Valid reports whether l is one of the three SPID levels.
func (l SpidLevel) Valid() bool {
	return l == SpidL1 || l == SpidL2 || l == SpidL3
}

// TokenType identifies one of the opaque tokens in a session's bundle.
type TokenType string

const (
	TokenSession  TokenType = "session"
	TokenWallet   TokenType = "wallet"
	TokenMyPortal TokenType = "myportal"
	TokenBPD      TokenType = "bpd"
	TokenZendesk  TokenType = "zendesk"
	TokenFIMS     TokenType = "fims"
)

// TokenTypes lists every token of a bundle in a fixed order.
var TokenTypes = []TokenType{TokenSession, TokenWallet, TokenMyPortal, TokenBPD, TokenZendesk, TokenFIMS}

// FederatedIdentity is the strongly-typed attribute bag extracted from one
// validated SAML assertion. It is ephemeral: created per login attempt and
// discarded after mapping.
type FederatedIdentity struct {
	FiscalNumber string
	Name         string
	FamilyName   string
	Email        string
	MobilePhone  string
	SessionIndex string
	Issuer       string
	SpidLevel    SpidLevel
	RawAssertion []byte
}

// User is the canonical identity plus the token bundle issued at login.
// It is immutable after creation: sessions are deleted or expire, never
// partially updated.
type User struct {
	FiscalCode    string    `json:"fiscal_code"`
	Name          string    `json:"name"`
	FamilyName    string    `json:"family_name"`
	Email         string    `json:"spid_email,omitempty"`
	MobilePhone   string    `json:"spid_mobile_phone,omitempty"`
	SpidLevel     SpidLevel `json:"spid_level"`
	SpidIdp       string    `json:"spid_idp"`
	SessionIndex  string    `json:"session_index,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	SessionToken  string    `json:"session_token"`
	WalletToken   string    `json:"wallet_token"`
	MyPortalToken string    `json:"myportal_token"`
	BPDToken      string    `json:"bpd_token"`
	ZendeskToken  string    `json:"zendesk_token"`
	FIMSToken     string    `json:"fims_token"`
}

// Token returns the bundle token of the given type.
func (u *User) Token(t TokenType) string {
	switch t {
	case TokenSession:
		return u.SessionToken
	case TokenWallet:
		return u.WalletToken
	case TokenMyPortal:
		return u.MyPortalToken
	case TokenBPD:
		return u.BPDToken
	case TokenZendesk:
		return u.ZendeskToken
	case TokenFIMS:
		return u.FIMSToken
	}
	return ""
}

// Tokens returns all bundle tokens in TokenTypes order.
func (u *User) Tokens() []string {
	tokens := make([]string, 0, len(TokenTypes))
	for _, t := range TokenTypes {
		tokens = append(tokens, u.Token(t))
	}
	return tokens
}

// PublicView is the subset of User safe to return to clients: the token
// bundle and raw contact attributes are stripped.
type PublicView struct {
	FiscalCode string    `json:"fiscal_code"`
	Name       string    `json:"name"`
	FamilyName string    `json:"family_name"`
	SpidLevel  SpidLevel `json:"spid_level"`
	SpidIdp    string    `json:"spid_idp"`
	CreatedAt  time.Time `json:"created_at"`
}

// Public returns the client-safe view of the user.
func (u *User) Public() PublicView {
	return PublicView{
		FiscalCode: u.FiscalCode,
		Name:       u.Name,
		FamilyName: u.FamilyName,
		SpidLevel:  u.SpidLevel,
		SpidIdp:    u.SpidIdp,
		CreatedAt:  u.CreatedAt,
	}
}
