// Package services implements the operation orchestrator: each CLI command
// is a short sequence over the manifest store, the fetchers, the layout
// resolver, and the project config synchronizer. Filesystem placement
// always precedes the single manifest/config commit at the end of an
// operation; a failed operation persists nothing.
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"gdm.sh/cli/internal/core/domain"
	"gdm.sh/cli/internal/core/ports"
)

// Deps carries the orchestrator's collaborators.
type Deps struct {
	Manifest ports.ManifestStore
	Project  ports.ProjectConfig
	Catalog  ports.CatalogAPI
	Archive  ports.ArchiveFetcher
	Git      ports.GitFetcher
	Layout   ports.LayoutResolver
	Staging  ports.StagingCache
	Reporter ports.ProgressReporter

	// AddonsDir is the directory plugin folders are placed into.
	AddonsDir string
	// Workers bounds parallel per-plugin fetch/place steps.
	Workers int
}

// PluginService orchestrates add, install, update, outdated, remove, and
// search. It owns the in-memory manifest exclusively for the duration of
// one operation.
type PluginService struct {
	deps     Deps
	resolver *VersionResolver
}

// NewPluginService wires an orchestrator.
func NewPluginService(deps Deps) *PluginService {
	if deps.Workers < 1 {
		deps.Workers = 1
	}
	if deps.Reporter == nil {
		deps.Reporter = ports.NopReporter{}
	}
	return &PluginService{
		deps:     deps,
		resolver: NewVersionResolver(deps.Catalog),
	}
}

// AddOptions are the identity arguments of the add command. Asset fields
// and git fields are mutually exclusive.
type AddOptions struct {
	Name    string
	AssetID string
	Version string
	GitURL  string
	GitRef  string
}

func (o AddOptions) validate() error {
	assetBased := o.Name != "" || o.AssetID != "" || o.Version != ""
	gitBased := o.GitURL != "" || o.GitRef != ""

	switch {
	case assetBased && gitBased:
		return fmt.Errorf("cannot combine name/asset-id/version with a git URL or ref")
	case gitBased && o.GitURL == "":
		return fmt.Errorf("a git URL is required when --git-ref is given")
	case !assetBased && !gitBased:
		return fmt.Errorf("either a plugin name, an asset ID, or a git URL is required")
	case o.Name != "" && o.AssetID != "":
		return fmt.Errorf("cannot specify both a plugin name and an asset ID")
	case assetBased && o.Name == "" && o.AssetID == "":
		return fmt.Errorf("a version alone is not enough; provide a plugin name or an asset ID")
	}
	return nil
}

// Add resolves, fetches, and tracks one plugin. Re-adding a plugin that is
// already tracked replaces it in place, so add doubles as "set version".
// Returns the manifest name the plugin was recorded under.
func (s *PluginService) Add(ctx context.Context, opts AddOptions) (string, domain.Plugin, error) {
	if err := opts.validate(); err != nil {
		return "", domain.Plugin{}, err
	}

	m, err := s.deps.Manifest.Load()
	if err != nil {
		return "", domain.Plugin{}, err
	}

	var (
		identity string
		record   domain.Plugin
		asset    domain.Asset
	)

	if opts.GitURL != "" {
		ref := opts.GitRef
		if ref == "" {
			ref = "main"
		}
		identity = domain.RepoName(opts.GitURL)
		record = domain.Plugin{
			Source: domain.Source{Type: domain.SourceGit, URL: opts.GitURL, Ref: ref},
		}
	} else {
		godotVersion, err := s.deps.Project.GodotVersion()
		if err != nil {
			return "", domain.Plugin{}, err
		}
		asset, err = s.resolver.Resolve(ctx, opts.Name, opts.AssetID, opts.Version, godotVersion)
		if err != nil {
			return "", domain.Plugin{}, err
		}
		identity = asset.Title
		record = domain.Plugin{
			Title:        asset.Title,
			GodotVersion: asset.GodotVersion,
			Source: domain.Source{
				Type:    domain.SourceAsset,
				AssetID: asset.AssetID,
				Version: asset.Version,
			},
		}
	}

	s.deps.Reporter.Start(identity)
	name, placed, err := s.fetchAndPlace(ctx, identity, record, asset)
	s.deps.Reporter.Done(identity, err)
	if err != nil {
		return "", domain.Plugin{}, fmt.Errorf("%s: %w", identity, err)
	}

	// The same asset may already be tracked under a different folder name
	// (the upstream renamed its addon directory). Drop the stale record so
	// the manifest never holds two entries for one asset.
	if placed.Source.IsAsset() {
		if oldName, old, ok := m.ByAssetID(placed.Source.AssetID); ok && oldName != name {
			s.removeDroppedFolders(old, placed)
			s.deps.Project.Deactivate(old.InstallPath)
			m.Remove(oldName)
		}
	}

	// A record's folders are replaced as a unit: when the new version ships
	// fewer sub-assets, the leftovers must not survive untracked.
	if old, ok := m.Get(name); ok {
		s.removeDroppedFolders(old, placed)
	}
	m.Upsert(name, placed)
	s.deps.Project.Activate(placed.InstallPath)

	if err := s.persist(m); err != nil {
		return "", domain.Plugin{}, err
	}
	return name, placed, nil
}

// Install re-fetches every manifest record whose install path is missing on
// disk, at its recorded source/version, then reconciles the activation
// section exactly against the manifest. Per-plugin fetch failures are
// collected; the rest of the batch completes.
func (s *PluginService) Install(ctx context.Context) (domain.BatchResult, error) {
	m, err := s.deps.Manifest.Load()
	if err != nil {
		return domain.BatchResult{}, err
	}
	if m.Empty() {
		return domain.BatchResult{}, fmt.Errorf("no plugins installed")
	}

	jobs := map[string]domain.Plugin{}
	for _, name := range m.Names() {
		rec := m.Plugins[name]
		if rec.InstallPath == "" || !s.addonExists(rec.InstallPath) {
			jobs[name] = rec
		}
	}

	placed, failures := s.runBatch(ctx, jobs, s.installOne)
	for name, rec := range placed {
		// A re-fetch can resolve to a different primary folder than the one
		// recorded; the stale record must not survive next to the new one.
		if rec.Source.IsAsset() {
			if oldName, _, ok := m.ByAssetID(rec.Source.AssetID); ok && oldName != name {
				m.Remove(oldName)
			}
		}
		m.Upsert(name, rec)
	}

	s.deps.Project.SetActivated(primaries(m))

	if err := s.persist(m); err != nil {
		return domain.BatchResult{}, err
	}
	return batchResult(placed, failures), nil
}

// Update re-fetches every catalog-sourced record whose latest published
// version supersedes the recorded one. Git records are skipped
// unconditionally. An empty result with no failures means everything was
// already up to date.
func (s *PluginService) Update(ctx context.Context) (domain.BatchResult, error) {
	m, err := s.deps.Manifest.Load()
	if err != nil {
		return domain.BatchResult{}, err
	}
	if m.Empty() {
		return domain.BatchResult{}, fmt.Errorf("no plugins installed")
	}

	jobs := map[string]domain.Plugin{}
	for _, name := range m.Names() {
		if rec := m.Plugins[name]; rec.Source.IsAsset() {
			jobs[name] = rec
		}
	}

	placed, failures := s.runBatch(ctx, jobs, s.updateOne)
	if len(placed) == 0 && len(failures) == 0 {
		return domain.BatchResult{}, nil
	}

	// A primary folder can change name across versions, and a new version
	// can stop shipping a sub-asset; drop the stale record and whatever
	// folders the replacement no longer owns.
	for name, rec := range placed {
		if oldName, old, ok := m.ByAssetID(rec.Source.AssetID); ok && oldName != name {
			s.removeDroppedFolders(old, rec)
			m.Remove(oldName)
		}
		if old, ok := m.Get(name); ok {
			s.removeDroppedFolders(old, rec)
		}
		m.Upsert(name, rec)
	}

	s.deps.Project.SetActivated(primaries(m))

	if err := s.persist(m); err != nil {
		return domain.BatchResult{}, err
	}
	return batchResult(placed, failures), nil
}

// Outdated reports, for every catalog-sourced record, the recorded version
// against the catalog's latest. It mutates nothing.
func (s *PluginService) Outdated(ctx context.Context) ([]domain.OutdatedReport, error) {
	m, err := s.deps.Manifest.Load()
	if err != nil {
		return nil, err
	}
	if m.Empty() {
		return nil, fmt.Errorf("no plugins installed")
	}

	var (
		mu      sync.Mutex
		reports []domain.OutdatedReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.deps.Workers)

	for _, name := range m.Names() {
		rec := m.Plugins[name]
		if !rec.Source.IsAsset() {
			continue
		}
		g.Go(func() error {
			latest, err := s.deps.Catalog.AssetByID(gctx, rec.Source.AssetID)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			mu.Lock()
			defer mu.Unlock()
			reports = append(reports, domain.OutdatedReport{
				Name:            name,
				Current:         rec.Source.Version,
				Latest:          latest.Version,
				UpdateAvailable: newerVersion(latest.Version, rec.Source.Version),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].Name < reports[j].Name })
	return reports, nil
}

// Remove deletes a plugin's files (primary and sub-assets), deactivates it,
// and drops its manifest record. An unknown name is a hard error, never a
// silent success.
func (s *PluginService) Remove(ctx context.Context, name string) error {
	m, err := s.deps.Manifest.Load()
	if err != nil {
		return err
	}

	rec, ok := m.Remove(name)
	if !ok {
		return fmt.Errorf("%w: plugin %q is not tracked", domain.ErrNotFound, name)
	}

	s.removeFolders(rec)
	s.deps.Project.Deactivate(rec.InstallPath)

	return s.persist(m)
}

// Search is a pure catalog lookup; no manifest or filesystem interaction.
// An empty godotVersion falls back to the project's detected version.
func (s *PluginService) Search(ctx context.Context, query, godotVersion string) ([]domain.AssetSummary, error) {
	if godotVersion == "" {
		v, err := s.deps.Project.GodotVersion()
		if err != nil {
			return nil, fmt.Errorf("could not determine the project's Godot version; pass --godot-version: %w", err)
		}
		godotVersion = v
	}
	return s.deps.Catalog.Search(ctx, query, godotVersion)
}

// --- batch machinery ---

// jobFunc performs one plugin's fetch/place step. It returns the manifest
// name the result should be recorded under (the primary folder may differ
// from the old name), the updated record, and whether anything was placed.
type jobFunc func(ctx context.Context, name string, rec domain.Plugin) (string, domain.Plugin, bool, error)

// runBatch executes jobs with bounded parallelism, collecting per-plugin
// failures instead of aborting the batch. Each job works in its own staging
// directory and its own addons subdirectory, so jobs are independent; the
// caller serializes the final manifest/config commit.
func (s *PluginService) runBatch(ctx context.Context, jobs map[string]domain.Plugin, run jobFunc) (map[string]domain.Plugin, []domain.PluginFailure) {
	var (
		mu       sync.Mutex
		placed   = map[string]domain.Plugin{}
		failures []domain.PluginFailure
	)

	var g errgroup.Group
	g.SetLimit(s.deps.Workers)

	for _, name := range sortedKeys(jobs) {
		rec := jobs[name]
		g.Go(func() error {
			s.deps.Reporter.Start(name)
			newName, out, changed, err := run(ctx, name, rec)
			s.deps.Reporter.Done(name, err)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				failures = append(failures, domain.PluginFailure{
					Name: name,
					Err:  fmt.Errorf("%s: %w", name, err),
				})
			case changed:
				placed[newName] = out
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].Name < failures[j].Name })
	return placed, failures
}

// installOne re-fetches one record at its recorded source/version.
func (s *PluginService) installOne(ctx context.Context, name string, rec domain.Plugin) (string, domain.Plugin, bool, error) {
	var asset domain.Asset
	if rec.Source.IsAsset() {
		resolved, err := s.resolveRecorded(ctx, rec.Source)
		if err != nil {
			return "", domain.Plugin{}, false, err
		}
		asset = resolved
	}
	newName, out, err := s.fetchAndPlace(ctx, name, rec, asset)
	if err != nil {
		return "", domain.Plugin{}, false, err
	}
	return newName, out, true, nil
}

// updateOne fetches one record's latest version when it supersedes the
// recorded one; otherwise it reports no change.
func (s *PluginService) updateOne(ctx context.Context, name string, rec domain.Plugin) (string, domain.Plugin, bool, error) {
	latest, err := s.deps.Catalog.AssetByID(ctx, rec.Source.AssetID)
	if err != nil {
		return "", domain.Plugin{}, false, err
	}
	if !newerVersion(latest.Version, rec.Source.Version) {
		return name, rec, false, nil
	}

	next := rec
	next.Title = latest.Title
	next.GodotVersion = latest.GodotVersion
	next.Source.Version = latest.Version

	newName, out, err := s.fetchAndPlace(ctx, name, next, latest)
	if err != nil {
		return "", domain.Plugin{}, false, err
	}
	return newName, out, true, nil
}

// resolveRecorded resolves a catalog source at its recorded version. When
// the recorded version is the latest, the edit history may not list it, so
// the latest asset is accepted as a fallback if the versions agree.
func (s *PluginService) resolveRecorded(ctx context.Context, src domain.Source) (domain.Asset, error) {
	asset, err := s.deps.Catalog.AssetVersion(ctx, src.AssetID, src.Version)
	if err == nil {
		return asset, nil
	}
	if errors.Is(err, domain.ErrVersionNotFound) {
		latest, lerr := s.deps.Catalog.AssetByID(ctx, src.AssetID)
		if lerr == nil && latest.Version == src.Version {
			return latest, nil
		}
	}
	return domain.Asset{}, err
}

// fetchAndPlace claims a staging directory, fetches the source into it,
// resolves the layout, and moves every resulting addon folder into the
// addons tree. Placement is idempotent and re-runnable: install() can
// re-derive the filesystem state from the manifest after a crash.
func (s *PluginService) fetchAndPlace(ctx context.Context, identity string, rec domain.Plugin, asset domain.Asset) (string, domain.Plugin, error) {
	stagingDir, release, err := s.deps.Staging.Claim(identity)
	if err != nil {
		return "", domain.Plugin{}, err
	}
	defer release()

	switch rec.Source.Type {
	case domain.SourceGit:
		err = s.deps.Git.Fetch(ctx, rec.Source.URL, rec.Source.Ref, stagingDir)
	default:
		err = s.deps.Archive.Fetch(ctx, asset, stagingDir)
	}
	if err != nil {
		return "", domain.Plugin{}, err
	}

	layout, err := s.deps.Layout.Resolve(stagingDir, identity)
	if err != nil {
		return "", domain.Plugin{}, err
	}

	for _, folder := range layout.Folders() {
		if err := s.placeAddon(stagingDir, folder); err != nil {
			return "", domain.Plugin{}, err
		}
	}

	out := rec
	out.InstallPath = layout.Primary
	out.SubAssets = layout.SubAssets
	if layout.Title != "" {
		out.Title = layout.Title
	}
	if out.Title == "" {
		out.Title = identity
	}
	return layout.Primary, out, nil
}

// placeAddon moves one staged addon folder into the addons tree, replacing
// any previous contents wholesale.
func (s *PluginService) placeAddon(stagingDir, folder string) error {
	src := filepath.Join(stagingDir, "addons", folder)
	dst := filepath.Join(s.deps.AddonsDir, folder)

	if err := os.MkdirAll(s.deps.AddonsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create addons directory: %w", err)
	}
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("failed to clear %s: %w", dst, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to place addon %s: %w", folder, err)
	}
	return nil
}

func (s *PluginService) removeFolders(rec domain.Plugin) {
	if rec.InstallPath != "" {
		os.RemoveAll(filepath.Join(s.deps.AddonsDir, rec.InstallPath))
	}
	for _, sub := range rec.SubAssets {
		os.RemoveAll(filepath.Join(s.deps.AddonsDir, sub))
	}
}

// removeDroppedFolders deletes the folders a replaced record owned that its
// replacement no longer ships. Folders shared with the new layout survive;
// placement already refreshed their contents.
func (s *PluginService) removeDroppedFolders(old, next domain.Plugin) {
	keep := map[string]bool{next.InstallPath: true}
	for _, sub := range next.SubAssets {
		keep[sub] = true
	}
	if old.InstallPath != "" && !keep[old.InstallPath] {
		os.RemoveAll(filepath.Join(s.deps.AddonsDir, old.InstallPath))
	}
	for _, sub := range old.SubAssets {
		if !keep[sub] {
			os.RemoveAll(filepath.Join(s.deps.AddonsDir, sub))
		}
	}
}

func (s *PluginService) addonExists(folder string) bool {
	info, err := os.Stat(filepath.Join(s.deps.AddonsDir, folder))
	return err == nil && info.IsDir()
}

// persist commits the manifest first, then the project config, both
// atomically. A failure here is fatal to the whole operation.
func (s *PluginService) persist(m domain.Manifest) error {
	if err := s.deps.Manifest.Save(m); err != nil {
		return err
	}
	return s.deps.Project.Save()
}

func primaries(m domain.Manifest) []string {
	out := make([]string, 0, len(m.Plugins))
	for _, name := range m.Names() {
		if p := m.Plugins[name]; p.InstallPath != "" {
			out = append(out, p.InstallPath)
		}
	}
	return out
}

func batchResult(placed map[string]domain.Plugin, failures []domain.PluginFailure) domain.BatchResult {
	return domain.BatchResult{
		Succeeded: sortedKeys(placed),
		Failed:    failures,
	}
}

func sortedKeys(m map[string]domain.Plugin) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
