package auth

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// SecretFlow authenticates as the application itself with a client secret
// (client credentials grant). There is no refresh token; silent renewal is
// simply another acquisition.
type SecretFlow struct {
	clientID string
	secret   string
	endpoint oauth2.Endpoint
	logger   *slog.Logger
}

func (f *SecretFlow) Name() string { return "client secret" }

func (f *SecretFlow) Acquire(ctx context.Context, resource string) (Grant, error) {
	if f.secret == "" {
		return Grant{}, fmt.Errorf("auth: client secret not configured")
	}

	ctx = requestContext(ctx, nil)

	cfg := clientcredentials.Config{
		ClientID:     f.clientID,
		ClientSecret: f.secret,
		TokenURL:     f.endpoint.TokenURL,
		// App-only tokens carry no refresh token; offline_access does not
		// apply to the client credentials grant.
		Scopes: []string{resource + "/.default"},
	}

	f.logger.Info("acquiring app-only token with client secret",
		slog.String("resource", resource),
	)

	tok, err := cfg.Token(ctx)
	if err != nil {
		return Grant{}, err
	}

	return Grant{AccessToken: tok.AccessToken, ExpiresOn: tok.Expiry}, nil
}

func (f *SecretFlow) Refresh(ctx context.Context, resource, _ string) (Grant, error) {
	return f.Acquire(ctx, resource)
}
