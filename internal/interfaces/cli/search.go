package cli

import (
	"github.com/spf13/cobra"
)

// NewSearchCommand creates the search command.
func NewSearchCommand(container *Container) *cobra.Command {
	var godotVersion string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the Asset Library",
		Long: `Search the Asset Library for assets matching a query, filtered to the
project's Godot version. Outside a Godot project, pass --godot-version.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := newService(container, nil)
			if err != nil {
				return err
			}
			hits, err := service.Search(cmd.Context(), args[0], godotVersion)
			if err != nil {
				return err
			}
			renderSearch(cmd.OutOrStdout(), hits)
			return nil
		},
	}

	cmd.Flags().StringVar(&godotVersion, "godot-version", "", "Godot version to filter by (default: detected from project.godot)")

	return cmd
}
