package domain

import (
	"sort"
	"strings"
)

// SourceType discriminates where a plugin is fetched from.
type SourceType string

const (
	// SourceAsset is a plugin published in the Godot Asset Library.
	SourceAsset SourceType = "asset"
	// SourceGit is a plugin fetched from a git repository at a ref.
	SourceGit SourceType = "git"
)

// Source identifies where a plugin comes from and which revision of it is
// tracked. Exactly one of the two field groups is populated, per Type.
type Source struct {
	Type SourceType `json:"type"`

	// Asset Library source.
	AssetID string `json:"asset_id,omitempty"`
	Version string `json:"version,omitempty"`

	// Git source. Ref may be a branch, tag, or commit.
	URL string `json:"url,omitempty"`
	Ref string `json:"ref,omitempty"`
}

// IsAsset reports whether the source is an Asset Library asset. Only asset
// sources participate in update/outdated; git refs are pinned by the user.
func (s Source) IsAsset() bool { return s.Type == SourceAsset }

// RepoName derives a plugin identity from a repository URL
// ("https://host/user/gut.git" -> "gut").
func RepoName(url string) string {
	s := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	if i := strings.LastIndexAny(s, "/:"); i >= 0 {
		s = s[i+1:]
	}
	if s == "" {
		return "plugin"
	}
	return s
}

// Plugin is one tracked dependency in the manifest. The manifest key (the
// primary addon folder name) doubles as the plugin's unique name.
type Plugin struct {
	// Title is the display name from plugin.cfg, when one was present.
	Title string `json:"title,omitempty"`

	Source Source `json:"source"`

	// InstallPath is the primary addon directory, relative to addons/.
	InstallPath string `json:"install_path"`

	// SubAssets are co-bundled addon directories from the same fetch.
	// They are installed next to the primary but never activated, and they
	// share the primary's lifecycle: replaced on update, deleted on remove.
	SubAssets []string `json:"sub_assets,omitempty"`

	// GodotVersion is the compatibility tag reported by the catalog, used
	// as a search filter. Informational for git sources.
	GodotVersion string `json:"godot_version,omitempty"`
}

// Manifest is the authoritative record of intended state, persisted as
// gdm.json. Keys are plugin names (primary addon folder names).
type Manifest struct {
	Plugins map[string]Plugin `json:"plugins"`
}

// NewManifest returns an empty manifest ready for upserts.
func NewManifest() Manifest {
	return Manifest{Plugins: map[string]Plugin{}}
}

// Upsert inserts or replaces the record for name. Re-adding an existing
// name updates it in place rather than duplicating it.
func (m *Manifest) Upsert(name string, p Plugin) {
	if m.Plugins == nil {
		m.Plugins = map[string]Plugin{}
	}
	m.Plugins[name] = p
}

// Remove deletes the record for name, returning it and whether it existed.
func (m *Manifest) Remove(name string) (Plugin, bool) {
	p, ok := m.Plugins[name]
	if ok {
		delete(m.Plugins, name)
	}
	return p, ok
}

// Get returns the record for name.
func (m Manifest) Get(name string) (Plugin, bool) {
	p, ok := m.Plugins[name]
	return p, ok
}

// ByAssetID returns the record tracking the given Asset Library id.
func (m Manifest) ByAssetID(assetID string) (string, Plugin, bool) {
	for _, name := range m.Names() {
		p := m.Plugins[name]
		if p.Source.IsAsset() && p.Source.AssetID == assetID {
			return name, p, true
		}
	}
	return "", Plugin{}, false
}

// Names returns the plugin names in sorted order.
func (m Manifest) Names() []string {
	names := make([]string, 0, len(m.Plugins))
	for name := range m.Plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Empty reports whether no plugins are tracked.
func (m Manifest) Empty() bool { return len(m.Plugins) == 0 }

// AssetSummary is one row of a catalog search result.
type AssetSummary struct {
	AssetID      string `json:"asset_id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	Version      string `json:"version_string"`
	GodotVersion string `json:"godot_version"`
	License      string `json:"cost"`
	SupportLevel string `json:"support_level"`
}

// Asset is a fully resolved catalog asset at a concrete version, carrying
// everything needed to fetch and record it.
type Asset struct {
	AssetID      string
	Title        string
	Version      string
	GodotVersion string
	License      string
	DownloadURL  string
}

// Layout is the result of resolving a staged fetch tree: the primary addon
// directory plus any co-bundled sub-asset directories.
type Layout struct {
	// Primary is the addon directory chosen as the plugin itself.
	Primary string
	// Title and Version come from the primary's plugin.cfg, when present.
	Title   string
	Version string
	// SubAssets are the remaining addon directories, sorted.
	SubAssets []string
}

// Folders returns every directory the layout places under addons/.
func (l Layout) Folders() []string {
	return append([]string{l.Primary}, l.SubAssets...)
}

// OutdatedReport is one row of the outdated command's output.
type OutdatedReport struct {
	Name            string
	Current         string
	Latest          string
	UpdateAvailable bool
}
