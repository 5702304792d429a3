package api

import (
	"github.com/platinummonkey/ingresso/pkg/identity"
)

// LoginResponse carries the freshly minted token bundle back to the client.
// Tokens are only ever returned here; every other endpoint serves the
// client-safe view.
type LoginResponse struct {
	SessionToken  string              `json:"session_token"`
	WalletToken   string              `json:"wallet_token"`
	MyPortalToken string              `json:"myportal_token"`
	BPDToken      string              `json:"bpd_token"`
	ZendeskToken  string              `json:"zendesk_token"`
	FIMSToken     string              `json:"fims_token"`
	User          identity.PublicView `json:"user"`
}

func newLoginResponse(u *identity.User) LoginResponse {
	return LoginResponse{
		SessionToken:  u.SessionToken,
		WalletToken:   u.WalletToken,
		MyPortalToken: u.MyPortalToken,
		BPDToken:      u.BPDToken,
		ZendeskToken:  u.ZendeskToken,
		FIMSToken:     u.FIMSToken,
		User:          u.Public(),
	}
}

// LogoutResponse carries the signed single-logout redirect for the IdP.
type LogoutResponse struct {
	SLORedirectURL string `json:"slo_redirect_url"`
}
