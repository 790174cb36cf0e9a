package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"gdm.sh/cli/internal/application/services"
	"gdm.sh/cli/internal/core/ports"
)

// NewAddCommand creates the add command.
func NewAddCommand(container *Container) *cobra.Command {
	opts := services.AddOptions{}

	cmd := &cobra.Command{
		Use:   "add [name] [version]",
		Short: "Add a plugin to the project",
		Long: `Resolve a plugin, download it into addons/, record it in gdm.json, and
activate it in project.godot.

A name is looked up in the Asset Library and must match exactly one asset;
use --asset-id to pin an ambiguous match. Re-adding a tracked plugin
replaces it, so add with --version doubles as a downgrade or upgrade.

Examples:
  gdm add gut                           # latest version, by name
  gdm add gut 9.1.0                     # explicit version
  gdm add --asset-id 1709               # by Asset Library ID
  gdm add --git-url https://github.com/bitwes/Gut.git --git-ref v9.3.0`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Name = args[0]
			}
			if len(args) > 1 {
				if opts.Version != "" && opts.Version != args[1] {
					return fmt.Errorf("version given both as an argument and with --version")
				}
				opts.Version = args[1]
			}

			return runWithProgress(cmd.OutOrStdout(), func(reporter ports.ProgressReporter) error {
				service, err := newService(container, reporter)
				if err != nil {
					return err
				}
				name, rec, err := service.Add(cmd.Context(), opts)
				if err != nil {
					return err
				}

				if rec.Source.IsAsset() {
					fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (asset %s)\n", name, rec.Source.Version, rec.Source.AssetID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Added %s from %s at %s\n", name, rec.Source.URL, rec.Source.Ref)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.AssetID, "asset-id", "", "Asset Library ID to add")
	cmd.Flags().StringVar(&opts.Version, "version", "", "Explicit published version (default: latest)")
	cmd.Flags().StringVar(&opts.GitURL, "git-url", "", "Git repository URL to add instead of a catalog asset")
	cmd.Flags().StringVar(&opts.GitRef, "git-ref", "", "Git branch, tag, or commit (default: main)")

	return cmd
}
