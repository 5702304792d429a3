package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/ingresso/pkg/identity"
	"github.com/platinummonkey/ingresso/pkg/observability"
	"github.com/platinummonkey/ingresso/pkg/session"
	"github.com/platinummonkey/ingresso/pkg/spid"
)

type fakeGateway struct {
	authenticateUser *identity.User
	authenticateErr  error

	loginUser *identity.User
	loginErr  error

	logoutURL string
	logoutErr error

	refreshErr    error
	refreshCalled bool

	lastToken    string
	lastResponse string
}

func (f *fakeGateway) Authenticate(ctx context.Context, token string) (*identity.User, error) {
	f.lastToken = token
	if f.authenticateErr != nil {
		return nil, f.authenticateErr
	}
	if f.authenticateUser == nil {
		return nil, session.ErrNotFound
	}
	return f.authenticateUser, nil
}

func (f *fakeGateway) CompleteLogin(ctx context.Context, encodedResponse string) (*identity.User, error) {
	f.lastResponse = encodedResponse
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginUser, nil
}

func (f *fakeGateway) Logout(ctx context.Context, sessionToken string) (string, error) {
	f.lastToken = sessionToken
	if f.logoutErr != nil {
		return "", f.logoutErr
	}
	return f.logoutURL, nil
}

func (f *fakeGateway) RefreshIdpMetadata(ctx context.Context) error {
	f.refreshCalled = true
	return f.refreshErr
}

type fakeSAML struct {
	loginURL string
	loginErr error
	metadata []byte

	lastIdPKey     string
	lastRelayState string

	resolvedRelay string
	resolvedOK    bool
	resolveErr    error
}

func (f *fakeSAML) BuildLoginURL(idpKey, relayState string) (string, error) {
	f.lastIdPKey = idpKey
	f.lastRelayState = relayState
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.loginURL, nil
}

func (f *fakeSAML) ResolveFlow(relayState string, succeeded bool) (spid.LoginState, error) {
	f.resolvedRelay = relayState
	f.resolvedOK = succeeded
	if f.resolveErr != nil {
		return spid.Unauthenticated, f.resolveErr
	}
	if succeeded {
		return spid.Authenticated, nil
	}
	return spid.Failed, nil
}

func (f *fakeSAML) SPMetadata() []byte {
	return f.metadata
}

type fakeSessionAdmin struct {
	sessions []identity.User
	listErr  error

	delErr     error
	blockErr   error
	unblockErr error

	lastFiscalCode string
	blocked        map[string]bool
}

func (f *fakeSessionAdmin) ListSessions(ctx context.Context, fiscalCode string) ([]identity.User, error) {
	f.lastFiscalCode = fiscalCode
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sessions, nil
}

func (f *fakeSessionAdmin) DelAllSessions(ctx context.Context, fiscalCode string) error {
	f.lastFiscalCode = fiscalCode
	return f.delErr
}

func (f *fakeSessionAdmin) BlockUser(ctx context.Context, fiscalCode string) error {
	f.lastFiscalCode = fiscalCode
	if f.blockErr != nil {
		return f.blockErr
	}
	if f.blocked == nil {
		f.blocked = make(map[string]bool)
	}
	f.blocked[fiscalCode] = true
	return nil
}

func (f *fakeSessionAdmin) UnblockUser(ctx context.Context, fiscalCode string) error {
	f.lastFiscalCode = fiscalCode
	if f.unblockErr != nil {
		return f.unblockErr
	}
	delete(f.blocked, fiscalCode)
	return nil
}

func testUser() *identity.User {
	return &identity.User{
		FiscalCode:    "RSSMRA80A01H501U",
		Name:          "Mario",
		FamilyName:    "Rossi",
		Email:         "mario.rossi@example.com",
		SpidLevel:     identity.SpidL2,
		SpidIdp:       "poste",
		CreatedAt:     time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC),
		SessionToken:  "session-token",
		WalletToken:   "wallet-token",
		MyPortalToken: "myportal-token",
		BPDToken:      "bpd-token",
		ZendeskToken:  "zendesk-token",
		FIMSToken:     "fims-token",
	}
}

type testServer struct {
	*Server
	gateway *fakeGateway
	saml    *fakeSAML
	store   *fakeSessionAdmin
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	gw := &fakeGateway{}
	saml := &fakeSAML{
		loginURL: "https://posteid.poste.example/sso?SAMLRequest=abc",
		metadata: []byte(`<EntityDescriptor entityID="https://ingresso.example"/>`),
	}
	store := &fakeSessionAdmin{}
	logger := observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})

	return &testServer{
		Server:  NewServer(gw, saml, store, nil, logger, nil),
		gateway: gw,
		saml:    saml,
		store:   store,
	}
}

func postForm(t *testing.T, srv http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
