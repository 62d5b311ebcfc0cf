package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/m365go/m365go/internal/config"
)

// Login flags, bound in newLoginCmd().
var (
	flagAppID    string
	flagTenant   string
	flagCloud    string
	flagAuthType string
	flagCertFile string
	flagUserName string
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Microsoft 365",
		Long: "Sign in to Microsoft 365 and store the connection for later " +
			"commands. The credential type comes from --auth-type or the config " +
			"file; secrets are read from the environment, never from flags.",
		RunE: runLogin,
	}

	cmd.Flags().StringVar(&flagAppID, "app-id", "", "Azure AD application (client) id")
	cmd.Flags().StringVar(&flagTenant, "tenant", "", "tenant id or verified domain")
	cmd.Flags().StringVar(&flagCloud, "cloud", "", "national cloud: public, usgov, usgovhigh, usgovdod, china")
	cmd.Flags().StringVar(&flagAuthType, "auth-type", "", "credential type: devicecode, password, certificate, identity, browser, secret")
	cmd.Flags().StringVar(&flagCertFile, "certificate-file", "", "certificate credential file (PEM or PFX)")
	cmd.Flags().StringVar(&flagUserName, "user-name", "", "user name for password login")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the stored connection",
		RunE:  runLogout,
	}
}

func runLogin(_ *cobra.Command, _ []string) error {
	cfg, env, err := resolveConfig(config.CLIOverrides{
		AppID:    flagAppID,
		Tenant:   flagTenant,
		Cloud:    flagCloud,
		AuthType: flagAuthType,
	})
	if err != nil {
		return err
	}

	if flagCertFile != "" {
		cfg.CertificateFile = flagCertFile
	}

	logger := buildLogger(cfg, env)

	o, err := buildOrchestrator(cfg, env, flagUserName, logger)
	if err != nil {
		return err
	}

	ctx := shutdownContext(context.Background(), logger)

	if err := o.Login(ctx); err != nil {
		return err
	}

	statusf(flagQuiet, "Login successful.\n")

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	cfg, env, err := resolveConfig(config.CLIOverrides{})
	if err != nil {
		return err
	}

	logger := buildLogger(cfg, env)

	o, err := buildOrchestrator(cfg, env, "", logger)
	if err != nil {
		return err
	}

	if err := o.Logout(context.Background()); err != nil {
		return err
	}

	statusf(flagQuiet, "Logged out.\n")

	return nil
}
