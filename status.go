package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/m365go/m365go/internal/config"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored connection and verify it is still usable",
		RunE:  runStatus,
	}
}

// statusOutput is the JSON schema for `status --json`.
type statusOutput struct {
	Connected bool             `json:"connected"`
	UserName  string           `json:"userName,omitempty"`
	AppID     string           `json:"appId,omitempty"`
	Tenant    string           `json:"tenant,omitempty"`
	Cloud     string           `json:"cloudType,omitempty"`
	AuthType  string           `json:"authType,omitempty"`
	Resources []resourceStatus `json:"resources,omitempty"`
}

type resourceStatus struct {
	Resource  string `json:"resource"`
	ExpiresOn string `json:"expiresOn"`
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfg, env, err := resolveConfig(config.CLIOverrides{})
	if err != nil {
		return err
	}

	logger := buildLogger(cfg, env)

	o, err := buildOrchestrator(cfg, env, "", logger)
	if err != nil {
		return err
	}

	ctx := context.Background()

	if err := o.RestoreAuth(ctx); err != nil {
		return err
	}

	snap := o.Snapshot()
	if !snap.Connected {
		return printStatus(statusOutput{Connected: false})
	}

	// Prove the connection is still usable, renewing silently if needed.
	// A dead refresh token surfaces here as ErrSessionExpired.
	token, err := o.EnsureAccessToken(ctx, o.GraphResource())
	if err != nil {
		return err
	}

	snap = o.Snapshot()

	out := statusOutput{
		Connected: true,
		UserName:  upnFromToken(token),
		AppID:     snap.AppID,
		Tenant:    snap.Tenant,
		Cloud:     snap.CloudType.String(),
		AuthType:  snap.AuthType.String(),
	}

	for resource, tok := range snap.AccessTokens {
		out.Resources = append(out.Resources, resourceStatus{
			Resource:  resource,
			ExpiresOn: tok.ExpiresOn,
		})
	}

	sort.Slice(out.Resources, func(i, j int) bool {
		return out.Resources[i].Resource < out.Resources[j].Resource
	})

	return printStatus(out)
}

func printStatus(out statusOutput) error {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}

		return nil
	}

	if !out.Connected {
		fmt.Println("Logged out")
		return nil
	}

	if out.UserName != "" {
		fmt.Printf("Signed in as: %s\n", out.UserName)
	}

	fmt.Printf("App:       %s\n", out.AppID)
	fmt.Printf("Tenant:    %s\n", out.Tenant)
	fmt.Printf("Cloud:     %s\n", out.Cloud)
	fmt.Printf("Auth type: %s\n", out.AuthType)

	for _, r := range out.Resources {
		fmt.Printf("Token:     %s (expires %s)\n", r.Resource, formatExpiry(r.ExpiresOn))
	}

	return nil
}

// upnFromToken extracts the signed-in identity from the access token claims
// without verifying the signature. Display only; the token is never trusted
// locally.
func upnFromToken(accessToken string) string {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return ""
	}

	for _, name := range []string{"upn", "unique_name", "preferred_username", "appid"} {
		if v, ok := claims[name].(string); ok && v != "" {
			return v
		}
	}

	return ""
}

// formatExpiry renders a stored expiry timestamp compactly in local time.
func formatExpiry(expiresOn string) string {
	t, err := time.Parse(time.RFC3339, expiresOn)
	if err != nil {
		return expiresOn
	}

	return t.Local().Format("2006-01-02 15:04")
}
