package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgsmith/pkgsmith/pkg/recipe"
)

func newInfoCommand() *cobra.Command {
	var (
		version     string
		profilePath string
		options     []string
	)

	cmd := &cobra.Command{
		Use:   "info <recipe>",
		Short: "Show the resolved configuration of a recipe",
		Long: `Run only the configure and requirements stages and print the
resolved option set, requirements, and package ID. Nothing is downloaded
or built.`,
		Example: `  # Inspect what a shared gdk-pixbuf build would pull in
  pkgsmith info gdk-pixbuf --version 2.42.8 --profile linux-gcc.cue -o shared=true`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, tel, _, err := prepareRun(cmd.Context(), args[0], version, profilePath, options, "")
			if err != nil {
				return err
			}
			defer func() { _ = tel.Shutdown(context.Background()) }()
			req.ConfigureOnly = true

			runner := recipe.NewRunner(tel, nil)
			result, err := runner.Run(cmd.Context(), *req)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "package id: %s\n", result.PackageID)
			fmt.Fprintln(out, "options:")
			for _, name := range sortedKeys(result.Options) {
				fmt.Fprintf(out, "  %s=%s\n", name, result.Options[name])
			}
			if len(result.BuildRequirements) > 0 {
				fmt.Fprintln(out, "build requirements:")
				for _, req := range result.BuildRequirements {
					fmt.Fprintf(out, "  %s\n", req)
				}
			}
			if len(result.Requirements) > 0 {
				fmt.Fprintln(out, "requirements:")
				for _, req := range result.Requirements {
					fmt.Fprintf(out, "  %s\n", req)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "upstream version to configure (required)")
	cmd.Flags().StringVarP(&profilePath, "profile", "p", "", "build profile CUE file (required)")
	cmd.Flags().StringSliceVarP(&options, "option", "o", nil, "option values (key=value)")
	_ = cmd.MarkFlagRequired("version")
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}
