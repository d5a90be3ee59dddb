package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgsmith/pkgsmith/pkg/profile"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <profile.cue>",
		Short: "Validate a build profile",
		Long: `Parse a CUE build profile and report schema violations. A valid
profile prints the resolved platforms and options.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parser, err := profile.NewParser()
			if err != nil {
				return err
			}
			prof, err := parser.ParseFile(args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd, prof)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s is valid\n", args[0])
			fmt.Fprintf(out, "host: %s %s\n", prof.Settings.OS, prof.Settings.Arch)
			if prof.SettingsBuild != nil {
				fmt.Fprintf(out, "build: %s %s\n", prof.SettingsBuild.OS, prof.SettingsBuild.Arch)
			}
			for _, name := range sortedKeys(prof.Options) {
				fmt.Fprintf(out, "option %s=%s\n", name, prof.Options[name])
			}
			return nil
		},
	}

	return cmd
}
