package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/m365go/m365go/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "m365go",
		Short:   "Microsoft 365 CLI client",
		Long:    "A CLI for signing in to Microsoft 365 and managing the stored connection.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	// Register subcommands.
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// resolveConfig applies the override chain for the current invocation:
// defaults, config file, environment, CLI flags.
func resolveConfig(cli config.CLIOverrides) (*config.Config, config.EnvOverrides, error) {
	env := config.ReadEnvOverrides()

	cli.ConfigPath = flagConfigPath

	cfg, err := config.Resolve(env, cli)
	if err != nil {
		return nil, env, fmt.Errorf("loading config: %w", err)
	}

	return cfg, env, nil
}

// buildLogger creates an slog.Logger configured by the resolved config,
// environment, and CLI flags. Config-file log level provides the baseline;
// environment and CLI flags override it because explicit requests always win.
func buildLogger(cfg *config.Config, env config.EnvOverrides) *slog.Logger {
	level := slog.LevelInfo

	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if env.Debug || env.Verbose {
		level = slog.LevelDebug
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
