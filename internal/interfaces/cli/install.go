package cli

import (
	"github.com/spf13/cobra"

	"gdm.sh/cli/internal/core/ports"
)

// NewInstallCommand creates the install command.
func NewInstallCommand(container *Container) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install every plugin recorded in gdm.json",
		Long: `Fetch every manifest plugin that is missing from addons/, at its recorded
version or git ref, and reconcile the activation section of project.godot
against the manifest.

Plugins already present on disk are left alone, so install is the command
to run after cloning a project or after a teammate adds a plugin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithProgress(cmd.OutOrStdout(), func(reporter ports.ProgressReporter) error {
				service, err := newService(container, reporter)
				if err != nil {
					return err
				}
				result, err := service.Install(cmd.Context())
				if err != nil {
					return err
				}
				return renderBatch(cmd.OutOrStdout(), "installed", result)
			})
		},
	}
}
