package config

import "os"

// Environment variable names.
const (
	EnvConfig       = "M365GO_CONFIG"
	EnvDebug        = "M365GO_DEBUG"
	EnvVerbose      = "M365GO_VERBOSE"
	EnvEnvironment  = "M365GO_ENV"
	EnvClientSecret = "M365GO_CLIENT_SECRET"
	EnvCertPassword = "M365GO_CERT_PASSWORD"
	EnvPassword     = "M365GO_PASSWORD"
)

// containerEnvName marks execution inside a container, where flows that
// need a local browser are unavailable.
const containerEnvName = "docker"

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // M365GO_CONFIG: override config file path
	Debug      bool   // M365GO_DEBUG: debug logging
	Verbose    bool   // M365GO_VERBOSE: verbose logging
	Container  bool   // M365GO_ENV=docker: no browser available

	// Credential material supplied per invocation, never written to disk.
	ClientSecret string // M365GO_CLIENT_SECRET
	CertPassword string // M365GO_CERT_PASSWORD
	Password     string // M365GO_PASSWORD
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. It does not modify the Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		Debug:        envBool(EnvDebug),
		Verbose:      envBool(EnvVerbose),
		Container:    os.Getenv(EnvEnvironment) == containerEnvName,
		ClientSecret: os.Getenv(EnvClientSecret),
		CertPassword: os.Getenv(EnvCertPassword),
		Password:     os.Getenv(EnvPassword),
	}
}

// envBool treats "1" and "true" as set.
func envBool(name string) bool {
	v := os.Getenv(name)

	return v == "1" || v == "true"
}
