// Package ports defines the interfaces between the operation orchestrator
// and its collaborators. Infrastructure packages provide the implementations;
// tests substitute fakes.
package ports

import (
	"context"

	"gdm.sh/cli/internal/core/domain"
)

// CatalogAPI is the remote asset catalog (the Godot Asset Library HTTP API).
type CatalogAPI interface {
	// Search returns assets matching query, filtered to a Godot version
	// when godotVersion is non-empty.
	Search(ctx context.Context, query, godotVersion string) ([]domain.AssetSummary, error)

	// AssetByID returns the asset at its latest published version.
	AssetByID(ctx context.Context, assetID string) (domain.Asset, error)

	// AssetVersion returns the asset at an explicit version, or
	// domain.ErrVersionNotFound if the catalog does not offer it.
	AssetVersion(ctx context.Context, assetID, version string) (domain.Asset, error)

	// Download streams url into the file at dst.
	Download(ctx context.Context, url, dst string) error
}

// ArchiveFetcher downloads a catalog asset and unpacks it into
// stagingDir/addons. Nothing is written outside stagingDir.
type ArchiveFetcher interface {
	Fetch(ctx context.Context, asset domain.Asset, stagingDir string) error
}

// GitFetcher materializes the addon content of a repository at a ref into
// stagingDir/addons.
type GitFetcher interface {
	Fetch(ctx context.Context, url, ref, stagingDir string) error
}

// LayoutResolver inspects a staged tree and decides which addon directory
// is the plugin itself and which are co-bundled sub-assets.
type LayoutResolver interface {
	Resolve(stagingDir, identity string) (domain.Layout, error)
}

// ManifestStore loads and persists the gdm.json manifest. Save must be
// atomic: a crash mid-write never leaves a half-written manifest.
type ManifestStore interface {
	Load() (domain.Manifest, error)
	Save(m domain.Manifest) error
}

// ProjectConfig owns the [editor_plugins] section of project.godot and
// nothing else; every other line is preserved byte for byte.
type ProjectConfig interface {
	// GodotVersion reports the project's Godot version, derived from
	// config/features or the config_version fallback table.
	GodotVersion() (string, error)

	// Activate adds addon folders to the activation set. Already-active
	// folders are a no-op.
	Activate(folders ...string)

	// Deactivate removes addon folders from the activation set. Absent
	// folders are a no-op.
	Deactivate(folders ...string)

	// SetActivated replaces the activation set wholesale.
	SetActivated(folders []string)

	// Activated returns the currently activated addon folder names.
	Activated() []string

	// Save persists the file atomically. A load-then-save round trip with
	// no mutation writes the original bytes unchanged.
	Save() error
}

// StagingCache hands out scoped scratch directories under the cache root.
// Every claimed directory is released before the operation returns.
type StagingCache interface {
	// Claim creates a uniquely named staging directory for one fetch.
	// The returned release func removes it; callers defer it on all paths.
	Claim(slug string) (dir string, release func(), err error)
}

// ProgressReporter receives per-plugin lifecycle events during batch
// operations. Implementations must be safe for concurrent use.
type ProgressReporter interface {
	Start(name string)
	Done(name string, err error)
}

// NopReporter discards all progress events.
type NopReporter struct{}

func (NopReporter) Start(string)       {}
func (NopReporter) Done(string, error) {}
