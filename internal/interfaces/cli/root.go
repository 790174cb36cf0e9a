// Package cli wires the cobra command tree for the gdm binary.
package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"gdm.sh/cli/internal/application/services"
	"gdm.sh/cli/internal/core/ports"
	"gdm.sh/cli/internal/infrastructure/cache"
	"gdm.sh/cli/internal/infrastructure/catalog"
	"gdm.sh/cli/internal/infrastructure/config"
	"gdm.sh/cli/internal/infrastructure/fetch"
	"gdm.sh/cli/internal/infrastructure/godotcfg"
	"gdm.sh/cli/internal/infrastructure/layout"
	"gdm.sh/cli/internal/infrastructure/manifest"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// Container holds the resolved settings shared by all commands.
type Container struct {
	Settings config.Settings
}

// NewRootCommand builds the gdm command tree.
func NewRootCommand(container *Container) *cobra.Command {
	var settingsPath string

	rootCmd := &cobra.Command{
		Use:   "gdm",
		Short: "gdm - dependency manager for Godot plugins",
		Long: `gdm tracks a Godot project's plugins in a gdm.json manifest, keeps the
addons/ directory in sync with it, and maintains the [editor_plugins]
activation section of project.godot.

Plugins come from the Godot Asset Library or directly from git
repositories. Run gdm from the project root (next to project.godot).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(settingsPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("api-url") {
				settings.APIBaseURL, _ = cmd.Flags().GetString("api-url")
			}
			container.Settings = settings
			return nil
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "gdm.yaml", "Settings file path")
	rootCmd.PersistentFlags().String("api-url", config.DefaultAPIBaseURL, "Asset Library API endpoint")

	rootCmd.AddCommand(NewAddCommand(container))
	rootCmd.AddCommand(NewInstallCommand(container))
	rootCmd.AddCommand(NewUpdateCommand(container))
	rootCmd.AddCommand(NewOutdatedCommand(container))
	rootCmd.AddCommand(NewRemoveCommand(container))
	rootCmd.AddCommand(NewSearchCommand(container))

	return rootCmd
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// newService assembles the orchestrator from the container's settings. The
// project config is opened fresh per command so each invocation sees the
// file as it is on disk.
func newService(container *Container, reporter ports.ProgressReporter) (*services.PluginService, error) {
	settings := container.Settings

	project, err := godotcfg.Open(settings.ProjectFile, settings.AddonsDir)
	if err != nil {
		return nil, err
	}

	client := catalog.NewClient(settings.APIBaseURL, settings.HTTPTimeout, Version)

	return services.NewPluginService(services.Deps{
		Manifest:  manifest.NewStore(settings.ManifestPath),
		Project:   project,
		Catalog:   client,
		Archive:   fetch.NewArchiveFetcher(client),
		Git:       fetch.NewGitFetcher(),
		Layout:    layout.NewResolver(),
		Staging:   cache.New(settings.CacheDir),
		Reporter:  reporter,
		AddonsDir: settings.AddonsDir,
		Workers:   settings.Workers,
	}), nil
}

// Execute runs the command tree and exits non-zero on failure.
func Execute(ctx context.Context) {
	container := &Container{}
	rootCmd := NewRootCommand(container)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
