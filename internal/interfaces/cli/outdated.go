package cli

import (
	"github.com/spf13/cobra"
)

// NewOutdatedCommand creates the outdated command.
func NewOutdatedCommand(container *Container) *cobra.Command {
	return &cobra.Command{
		Use:   "outdated",
		Short: "Show catalog plugins with a newer published version",
		Long: `Compare every tracked Asset Library plugin's recorded version against the
catalog's latest. Nothing is modified; run gdm update to apply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := newService(container, nil)
			if err != nil {
				return err
			}
			reports, err := service.Outdated(cmd.Context())
			if err != nil {
				return err
			}
			renderOutdated(cmd.OutOrStdout(), reports)
			return nil
		},
	}
}
