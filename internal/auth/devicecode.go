package auth

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
)

// DeviceCode holds the device code response fields the CLI displays.
type DeviceCode struct {
	UserCode        string
	VerificationURI string
	Message         string
}

// DeviceCodeFlow authenticates by asking the user to enter a short code on
// another device:
//  1. Requests a device code from the provider
//  2. Calls display so the CLI can show the user code and verification URL
//  3. Polls until the user authorizes, bounded by the provider-specified
//     expiry (respects ctx cancellation)
//
// Silent renewal exchanges the refresh token.
type DeviceCodeFlow struct {
	clientID string
	endpoint oauth2.Endpoint
	display  func(DeviceCode)
	logger   *slog.Logger
}

func (f *DeviceCodeFlow) Name() string { return "device code" }

func (f *DeviceCodeFlow) Acquire(ctx context.Context, resource string) (Grant, error) {
	ctx = requestContext(ctx, nil)
	cfg := f.config(resource)

	f.logger.Info("starting device code flow", slog.String("resource", resource))

	dc, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return Grant{}, fmt.Errorf("auth: device code request failed: %w", err)
	}

	f.logger.Info("device code received, waiting for user authorization",
		slog.Time("code_expiry", dc.Expiry),
	)

	if f.display != nil {
		f.display(DeviceCode{
			UserCode:        dc.UserCode,
			VerificationURI: dc.VerificationURI,
			Message:         dc.Message,
		})
	}

	// The provider gives the code a lifetime; polling past it cannot
	// succeed. A deadline turns "user walked away" into a timeout error
	// instead of an endless poll.
	if !dc.Expiry.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, dc.Expiry)

		defer cancel()
	}

	tok, err := cfg.DeviceAccessToken(ctx, dc)
	if err != nil {
		return Grant{}, fmt.Errorf("auth: device code authorization failed: %w", err)
	}

	f.logger.Info("user authorized", slog.Time("expiry", tok.Expiry))

	return grantFromToken(tok, ""), nil
}

func (f *DeviceCodeFlow) Refresh(ctx context.Context, resource, refreshToken string) (Grant, error) {
	ctx = requestContext(ctx, nil)

	return refreshGrant(ctx, f.config(resource), refreshToken)
}

func (f *DeviceCodeFlow) config(resource string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: f.clientID,
		Scopes:   scopesFor(resource),
		Endpoint: f.endpoint,
	}
}
