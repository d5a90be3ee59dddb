package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgsmith/pkgsmith/pkg/recipe"
	"github.com/pkgsmith/pkgsmith/pkg/recipes"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the available recipes and their versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := recipes.Builtin()

			type entry struct {
				Name        string   `json:"name"`
				Description string   `json:"description"`
				Versions    []string `json:"versions,omitempty"`
			}
			entries := []entry{}
			for _, name := range registry.Names() {
				rec, err := registry.Get(name)
				if err != nil {
					return err
				}
				md := rec.Metadata()
				e := entry{Name: md.Name, Description: md.Description}
				if dp, ok := rec.(recipe.DataProvider); ok {
					e.Versions = dp.Data().Versions()
				}
				entries = append(entries, e)
			}

			if jsonOutput {
				return printJSON(cmd, entries)
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", e.Name, e.Description)
				for _, v := range e.Versions {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", v)
				}
			}
			return nil
		},
	}

	return cmd
}
