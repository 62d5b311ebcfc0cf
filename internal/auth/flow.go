package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Grant is the result of a provider flow: the minted access token, the
// refresh token when the flow supports silent renewal, and the expiry.
type Grant struct {
	AccessToken  string
	RefreshToken string
	ExpiresOn    time.Time
}

// TokenFlow is one identity-provider flow. One implementation exists per
// credential type; the orchestrator selects it once at construction and
// never branches on the auth type afterwards.
//
// Acquire performs the flow's full (possibly interactive) authentication.
// Refresh renews silently: flows backed by a refresh token exchange it,
// credential-based flows (secret, certificate, managed identity) simply
// re-acquire. Neither retries; retry policy belongs to the provider.
type TokenFlow interface {
	Name() string
	Acquire(ctx context.Context, resource string) (Grant, error)
	Refresh(ctx context.Context, resource, refreshToken string) (Grant, error)
}

// FlowConfig carries the material a flow needs beyond what the connection
// document persists: secrets stay out of the token file and are supplied
// per invocation from config and environment.
type FlowConfig struct {
	// Display shows the device code prompt to the user. Required for the
	// device code flow.
	Display func(DeviceCode)

	// OpenURL launches the system browser. Required for the browser flow.
	OpenURL func(string) error

	// Secret is the client secret for the secret flow.
	Secret string

	// Username and Password for the resource-owner password flow.
	Username string
	Password string

	// CertificateData is the raw certificate credential (PEM or PKCS#12 per
	// the session's certificate type); CertificatePassword unlocks PKCS#12.
	CertificateData     []byte
	CertificatePassword string

	// IdentityClientID selects a user-assigned managed identity. Empty
	// means system-assigned.
	IdentityClientID string

	// ContainerEnv marks execution inside a container or CI sandbox where
	// no browser can be launched; the browser flow is unavailable there.
	ContainerEnv bool

	// Endpoint overrides the cloud-derived OAuth2 endpoint. Tests point it
	// at an httptest server.
	Endpoint *oauth2.Endpoint

	// IdentityEndpoint overrides the IMDS endpoint for the identity flow.
	IdentityEndpoint string

	// HTTPClient overrides the client used for direct token requests.
	HTTPClient *http.Client
}

// NewFlow builds the provider flow matching the session's credential type.
// Called once when the orchestrator needs its first token, not per request.
func NewFlow(sess *Session, fc FlowConfig, logger *slog.Logger) (TokenFlow, error) {
	endpoint := sess.CloudType.Endpoint(sess.Tenant)
	if fc.Endpoint != nil {
		endpoint = *fc.Endpoint
	}

	switch sess.AuthType {
	case AuthDeviceCode:
		return &DeviceCodeFlow{
			clientID: sess.AppID,
			endpoint: endpoint,
			display:  fc.Display,
			logger:   logger,
		}, nil
	case AuthBrowser:
		if fc.ContainerEnv {
			return nil, fmt.Errorf("auth: browser login is not available in this environment, use device code instead")
		}

		return &BrowserFlow{
			clientID: sess.AppID,
			endpoint: endpoint,
			openURL:  fc.OpenURL,
			logger:   logger,
		}, nil
	case AuthSecret:
		return &SecretFlow{
			clientID: sess.AppID,
			secret:   fc.Secret,
			endpoint: endpoint,
			logger:   logger,
		}, nil
	case AuthCertificate:
		return NewCertificateFlow(sess, fc, endpoint, logger)
	case AuthIdentity:
		return &IdentityFlow{
			clientID: fc.IdentityClientID,
			endpoint: fc.IdentityEndpoint,
			client:   fc.HTTPClient,
			logger:   logger,
		}, nil
	case AuthPassword:
		return &PasswordFlow{
			clientID: sess.AppID,
			username: fc.Username,
			password: fc.Password,
			endpoint: endpoint,
			logger:   logger,
		}, nil
	default:
		return nil, fmt.Errorf("auth: unsupported auth type %s", sess.AuthType)
	}
}

// scopesFor maps a resource base URL to the v2.0 scope set. The default
// scope asks for every application permission already consented for the
// resource; offline_access requests a refresh token for silent renewal.
func scopesFor(resource string) []string {
	return []string{resource + "/.default", "offline_access"}
}

// refreshGrant exchanges a refresh token for a fresh access token using the
// standard refresh grant. Used by every flow whose silent path is
// refresh-token based.
func refreshGrant(ctx context.Context, cfg *oauth2.Config, refreshToken string) (Grant, error) {
	if refreshToken == "" {
		return Grant{}, fmt.Errorf("auth: no refresh token available")
	}

	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		return Grant{}, err
	}

	return grantFromToken(tok, refreshToken), nil
}

// grantFromToken converts an oauth2 token, keeping the previous refresh
// token when the provider did not rotate it.
func grantFromToken(tok *oauth2.Token, previousRefresh string) Grant {
	g := Grant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresOn:    tok.Expiry,
	}

	if g.RefreshToken == "" {
		g.RefreshToken = previousRefresh
	}

	return g
}

// requestContext attaches an HTTP client carrying a per-request correlation
// id, so provider-side logs can be matched to a CLI invocation.
func requestContext(ctx context.Context, base *http.Client) context.Context {
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}

	client := &http.Client{
		Timeout: base.Timeout,
		Transport: &requestIDTransport{
			next:      base.Transport,
			requestID: uuid.NewString(),
		},
	}

	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// requestIDTransport stamps the client-request-id header on every request.
type requestIDTransport struct {
	next      http.RoundTripper
	requestID string
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("client-request-id", t.requestID)

	return next.RoundTrip(clone)
}
