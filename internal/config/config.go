// Package config loads the CLI's TOML configuration and resolves effective
// settings from the override chain: defaults, config file, environment
// variables, CLI flags.
package config

// Config is the on-disk TOML configuration.
type Config struct {
	// AppID is the Azure AD application (client) id used for login.
	AppID string `toml:"app_id"`

	// Tenant is the directory to authenticate against: a tenant id, a
	// verified domain, or "common" for multi-tenant sign-in.
	Tenant string `toml:"tenant"`

	// Cloud selects the national cloud: public, usgov, usgovhigh,
	// usgovdod, or china.
	Cloud string `toml:"cloud"`

	// AuthType is the default credential type for login: devicecode,
	// password, certificate, identity, browser, or secret.
	AuthType string `toml:"auth_type"`

	// CertificateFile points at the certificate credential (PEM or PFX)
	// for certificate login. The password, if any, comes from the
	// environment — never from the config file.
	CertificateFile string `toml:"certificate_file"`

	// LogLevel is the baseline slog level: debug, info, warn, error.
	// CLI flags override it.
	LogLevel string `toml:"log_level"`
}

// defaultAppID is the multi-tenant public client registration used when the
// user has not registered their own application.
const defaultAppID = "4b7a6f90-2c31-4e8f-9d17-6b3f5a1c8e42"

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		AppID:    defaultAppID,
		Tenant:   "common",
		Cloud:    "public",
		AuthType: "devicecode",
		LogLevel: "info",
	}
}
