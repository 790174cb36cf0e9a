package cli

import (
	"github.com/spf13/cobra"

	"gdm.sh/cli/internal/core/ports"
)

// NewUpdateCommand creates the update command.
func NewUpdateCommand(container *Container) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Update catalog plugins to their latest published versions",
		Long: `Re-fetch every Asset Library plugin whose latest published version is
newer than the recorded one, and rewrite its manifest record.

Git plugins are never updated: their ref is pinned by the user, so re-add
with a different --git-ref to move one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithProgress(cmd.OutOrStdout(), func(reporter ports.ProgressReporter) error {
				service, err := newService(container, reporter)
				if err != nil {
					return err
				}
				result, err := service.Update(cmd.Context())
				if err != nil {
					return err
				}
				return renderBatch(cmd.OutOrStdout(), "updated", result)
			})
		},
	}
}
