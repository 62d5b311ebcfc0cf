package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// imdsEndpoint is the Azure Instance Metadata Service token endpoint,
// reachable only from inside Azure compute.
const imdsEndpoint = "http://169.254.169.254/metadata/identity/oauth2/token"

// imdsAPIVersion is the IMDS API version this client speaks.
const imdsAPIVersion = "2018-02-01"

// IdentityFlow fetches tokens for the VM's managed identity from IMDS.
// No user interaction, no refresh token; renewal is a re-fetch.
type IdentityFlow struct {
	// clientID selects a user-assigned identity; empty means system-assigned.
	clientID string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func (f *IdentityFlow) Name() string { return "managed identity" }

func (f *IdentityFlow) Acquire(ctx context.Context, resource string) (Grant, error) {
	endpoint := f.endpoint
	if endpoint == "" {
		endpoint = imdsEndpoint
	}

	client := f.client
	if client == nil {
		// IMDS answers on the local link; a long timeout only delays the
		// "not running in Azure" diagnosis.
		client = &http.Client{Timeout: 10 * time.Second}
	}

	query := url.Values{
		"api-version": {imdsAPIVersion},
		"resource":    {resource},
	}

	if f.clientID != "" {
		query.Set("client_id", f.clientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return Grant{}, fmt.Errorf("auth: building IMDS request: %w", err)
	}

	req.Header.Set("Metadata", "true")

	f.logger.Info("requesting managed identity token",
		slog.String("resource", resource),
	)

	resp, err := client.Do(req)
	if err != nil {
		return Grant{}, fmt.Errorf("auth: managed identity endpoint unreachable (not running in Azure?): %w", err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Grant{}, fmt.Errorf("auth: reading IMDS response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Grant{}, providerError(body, resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresOn   string `json:"expires_on"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Grant{}, fmt.Errorf("auth: decoding IMDS response: %w", err)
	}

	// IMDS reports expiry as Unix seconds in a string.
	expiresOn, err := strconv.ParseInt(parsed.ExpiresOn, 10, 64)
	if err != nil {
		return Grant{}, fmt.Errorf("auth: unexpected IMDS expiry %q: %w", parsed.ExpiresOn, err)
	}

	return Grant{
		AccessToken: parsed.AccessToken,
		ExpiresOn:   time.Unix(expiresOn, 0),
	}, nil
}

func (f *IdentityFlow) Refresh(ctx context.Context, resource, _ string) (Grant, error) {
	return f.Acquire(ctx, resource)
}
