// Package commands implements the pkgsmith command line interface.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgsmith/pkgsmith/pkg/telemetry"
)

var (
	// Global flags
	logLevel    string
	logFormat   string
	jsonOutput  bool
	metricsAddr string
	traceStdout bool

	// binaryVersion is the pkgsmith release, reported as the telemetry
	// service version.
	binaryVersion string
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	binaryVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pkgsmith",
		Short: "pkgsmith - native library build orchestrator",
		Long: `pkgsmith builds upstream C libraries from versioned recipes.

A recipe declares the option domain, dependencies, upstream sources, and
build-system invocation of one library. pkgsmith drives each recipe through
a fixed lifecycle (configure, requirements, source, build, package) and
publishes the resulting package manifest.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address")
	rootCmd.PersistentFlags().BoolVar(&traceStdout, "trace", false, "emit stage traces to stdout")

	rootCmd.AddCommand(newBuildCommand())
	rootCmd.AddCommand(newInfoCommand())
	rootCmd.AddCommand(newOptionsCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}

// setupTelemetry builds the telemetry bundle from the global flags.
func setupTelemetry() (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = binaryVersion
	cfg.Logging.Level = logLevel
	cfg.Logging.Format = logFormat
	if traceStdout {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = "stdout"
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = metricsAddr
	}
	return telemetry.NewTelemetry(cfg)
}
