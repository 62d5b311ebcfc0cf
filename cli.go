package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/m365go/m365go/internal/auth"
	"github.com/m365go/m365go/internal/cache"
	"github.com/m365go/m365go/internal/config"
	"github.com/m365go/m365go/internal/store"
)

// buildOrchestrator assembles the auth machinery for one invocation: the
// session addressed by the resolved config, the shared token file keyed to
// that connection, and the disk cache for ancillary lookups.
func buildOrchestrator(cfg *config.Config, env config.EnvOverrides, username string, logger *slog.Logger) (*auth.Orchestrator, error) {
	sess, err := sessionFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	fc := auth.FlowConfig{
		Display:             displayDeviceCode,
		OpenURL:             openBrowser,
		Secret:              env.ClientSecret,
		Username:            username,
		Password:            env.Password,
		CertificatePassword: env.CertPassword,
		ContainerEnv:        env.Container,
	}

	if cfg.CertificateFile != "" {
		data, readErr := os.ReadFile(cfg.CertificateFile)
		if readErr != nil {
			return nil, fmt.Errorf("reading certificate file: %w", readErr)
		}

		fc.CertificateData = data
		sess.CertificateType = certificateTypeForFile(cfg.CertificateFile)
	}

	ts := store.NewFileTokenStore(config.TokenFilePath(), sess.Key(), logger)
	diskCache := cache.New(config.DefaultCacheDir(), logger)

	return auth.New(ts, sess, fc, diskCache, logger), nil
}

// sessionFromConfig builds the connection identity the config addresses.
// Persisted state, when present, replaces it during restore.
func sessionFromConfig(cfg *config.Config) (*auth.Session, error) {
	cloud, err := auth.ParseCloudType(cfg.Cloud)
	if err != nil {
		return nil, err
	}

	authType, err := auth.ParseAuthType(cfg.AuthType)
	if err != nil {
		return nil, err
	}

	sess := auth.NewSession()
	sess.AppID = cfg.AppID
	sess.Tenant = cfg.Tenant
	sess.CloudType = cloud
	sess.AuthType = authType

	return sess, nil
}

// certificateTypeForFile infers the credential encoding from the file
// extension. Unknown lets the parser try both.
func certificateTypeForFile(path string) auth.CertificateType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pem", ".cer", ".crt":
		return auth.CertificateBase64
	case ".pfx", ".p12":
		return auth.CertificateBinary
	default:
		return auth.CertificateUnknown
	}
}

// displayDeviceCode shows the device code prompt. Always visible, even with
// --quiet: the login cannot proceed without it.
func displayDeviceCode(dc auth.DeviceCode) {
	if dc.Message != "" {
		fmt.Fprintf(os.Stderr, "%s\n", dc.Message)
		return
	}

	fmt.Fprintf(os.Stderr, "To sign in, visit: %s\n", dc.VerificationURI)
	fmt.Fprintf(os.Stderr, "Enter code: %s\n", dc.UserCode)
}
