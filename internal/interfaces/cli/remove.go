package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(container *Container) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a tracked plugin",
		Long: `Delete a plugin's files from addons/ (including co-bundled sub-assets),
deactivate it in project.godot, and drop its gdm.json record.

The name is the plugin's addon folder name, as listed in gdm.json.
Removing a plugin that is not tracked is an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := newService(container, nil)
			if err != nil {
				return err
			}
			if err := service.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}
