package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pkgsmith/pkgsmith/pkg/profile"
	"github.com/pkgsmith/pkgsmith/pkg/recipe"
	"github.com/pkgsmith/pkgsmith/pkg/recipes"
	"github.com/pkgsmith/pkgsmith/pkg/source"
	"github.com/pkgsmith/pkgsmith/pkg/stores"
	"github.com/pkgsmith/pkgsmith/pkg/telemetry"
)

func newBuildCommand() *cobra.Command {
	var (
		version     string
		profilePath string
		options     []string
		workDir     string
		storePath   string
	)

	cmd := &cobra.Command{
		Use:   "build <recipe>",
		Short: "Build a recipe end to end",
		Long: `Run the full lifecycle of a recipe: configure the option set,
resolve requirements, fetch and patch the upstream source, build it, and
assemble the final package tree.`,
		Example: `  # Build libiconv 1.17 for the current profile
  pkgsmith build libiconv --version 1.17 --profile linux-gcc.cue

  # Build a shared gdk-pixbuf without TIFF support
  pkgsmith build gdk-pixbuf --version 2.42.8 --profile linux-gcc.cue \
    -o shared=true -o with_libtiff=false

  # Record the run in a store
  pkgsmith build libiconv --version 1.17 --profile linux-gcc.cue \
    --store pkgsmith.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, tel, store, err := prepareRun(cmd.Context(), args[0], version, profilePath, options, storePath)
			if err != nil {
				return err
			}
			defer func() {
				if store != nil {
					_ = store.Close()
				}
				_ = tel.Shutdown(context.Background())
			}()

			if workDir == "" {
				workDir, err = os.MkdirTemp("", "pkgsmith-*")
				if err != nil {
					return fmt.Errorf("failed to create work directory: %w", err)
				}
			} else if workDir, err = filepath.Abs(workDir); err != nil {
				return fmt.Errorf("failed to resolve work directory: %w", err)
			}
			req.WorkDir = workDir

			if err := tel.Metrics.StartMetricsServer(); err != nil {
				return err
			}

			var recorder recipe.RunRecorder
			if store != nil {
				recorder = store
				fetcher := source.NewFetcher(
					filepath.Join(workDir, "downloads"),
					tel.Logger.NewComponentLogger("fetcher"))
				fetcher.Recorder = store
				fetcher.Metrics = tel.Metrics
				req.Fetcher = fetcher
			}
			runner := recipe.NewRunner(tel, recorder)
			result, err := runner.Run(cmd.Context(), *req)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s succeeded\n", result.RunID)
			fmt.Fprintf(cmd.OutOrStdout(), "package id: %s\n", result.PackageID)
			fmt.Fprintf(cmd.OutOrStdout(), "package folder: %s\n", filepath.Join(workDir, "package"))
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "upstream version to build (required)")
	cmd.Flags().StringVarP(&profilePath, "profile", "p", "", "build profile CUE file (required)")
	cmd.Flags().StringSliceVarP(&options, "option", "o", nil, "option values (key=value)")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "working directory (default: temporary)")
	cmd.Flags().StringVar(&storePath, "store", "", "SQLite database recording runs and downloads")
	_ = cmd.MarkFlagRequired("version")
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}

// prepareRun assembles the run request shared by build and info: the recipe,
// profile settings, merged options, telemetry, and the optional store.
func prepareRun(ctx context.Context, recipeName, version, profilePath string, options []string, storePath string) (*recipe.RunRequest, *telemetry.Telemetry, *stores.SQLiteStore, error) {
	tel, err := setupTelemetry()
	if err != nil {
		return nil, nil, nil, err
	}

	rec, err := recipes.Builtin().Get(recipeName)
	if err != nil {
		return nil, nil, nil, err
	}

	req := &recipe.RunRequest{
		Recipe:  rec,
		Version: version,
		Options: map[string]string{},
	}

	if profilePath != "" {
		parser, err := profile.NewParser()
		if err != nil {
			return nil, nil, nil, err
		}
		prof, err := parser.ParseFile(profilePath)
		if err != nil {
			return nil, nil, nil, err
		}
		req.Settings = prof.HostSettings()
		req.SettingsBuild = prof.BuildSettings()
		req.BashPath = prof.Tools.Bash
		for name, value := range prof.Options {
			req.Options[name] = value
		}
	} else {
		return nil, nil, nil, fmt.Errorf("a build profile is required")
	}

	// Command-line options override profile options.
	for _, opt := range options {
		name, value, ok := strings.Cut(opt, "=")
		if !ok {
			return nil, nil, nil, fmt.Errorf("invalid option %q, expected key=value", opt)
		}
		req.Options[name] = value
	}

	var store *stores.SQLiteStore
	if storePath != "" {
		store, err = openStore(ctx, storePath)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	return req, tel, store, nil
}

// openStore opens, initializes, and migrates the run store.
func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
