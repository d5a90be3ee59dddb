package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pkgsmith/pkgsmith/pkg/recipe"
	"github.com/pkgsmith/pkgsmith/pkg/recipes"
)

func newOptionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options <recipe>",
		Short: "Show the declared option domain of a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := recipes.Builtin().Get(args[0])
			if err != nil {
				return err
			}
			md := rec.Metadata()

			if jsonOutput {
				return printJSON(cmd, md)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", md.Name, md.Description)
			fmt.Fprintf(out, "license: %s\n", md.License)
			fmt.Fprintln(out, "options:")
			for _, name := range sortedDomainKeys(md.Options) {
				domain := md.Options[name]
				fmt.Fprintf(out, "  %s: %s (default %s)\n",
					name, strings.Join(domain.Values, "|"), domain.Default)
			}
			return nil
		},
	}

	return cmd
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedDomainKeys(m map[string]recipe.Domain) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
