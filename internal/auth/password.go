package auth

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
)

// PasswordFlow authenticates with the resource-owner password grant.
// Microsoft discourages it (no MFA, no conditional access), but scripted
// environments with legacy accounts still depend on it. Renewal uses the
// refresh token when one was issued.
type PasswordFlow struct {
	clientID string
	username string
	password string
	endpoint oauth2.Endpoint
	logger   *slog.Logger
}

func (f *PasswordFlow) Name() string { return "password" }

func (f *PasswordFlow) Acquire(ctx context.Context, resource string) (Grant, error) {
	if f.username == "" || f.password == "" {
		return Grant{}, fmt.Errorf("auth: username and password are required for password login")
	}

	ctx = requestContext(ctx, nil)
	cfg := f.config(resource)

	f.logger.Info("acquiring token with resource owner password credentials",
		slog.String("resource", resource),
		slog.String("username", f.username),
	)

	tok, err := cfg.PasswordCredentialsToken(ctx, f.username, f.password)
	if err != nil {
		return Grant{}, err
	}

	return grantFromToken(tok, ""), nil
}

func (f *PasswordFlow) Refresh(ctx context.Context, resource, refreshToken string) (Grant, error) {
	ctx = requestContext(ctx, nil)

	return refreshGrant(ctx, f.config(resource), refreshToken)
}

func (f *PasswordFlow) config(resource string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: f.clientID,
		Scopes:   scopesFor(resource),
		Endpoint: f.endpoint,
	}
}
