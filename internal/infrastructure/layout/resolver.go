// Package layout decides, for a staged fetch tree, which addon directory is
// the plugin itself and which directories are co-bundled sub-assets.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gdm.sh/cli/internal/core/domain"
)

// Resolver scans stagingDir/addons after a fetch.
type Resolver struct{}

// NewResolver returns a layout resolver.
func NewResolver() *Resolver { return &Resolver{} }

// Resolve inspects the staged tree. Loose files sitting directly under the
// addons root are moved into a synthesized root named after the requested
// identity, so an asset shipping flat files still installs. A tree with no
// directories and no loose files is domain.ErrEmptyAsset.
func (r *Resolver) Resolve(stagingDir, identity string) (domain.Layout, error) {
	addonsDir := filepath.Join(stagingDir, "addons")

	entries, err := os.ReadDir(addonsDir)
	if os.IsNotExist(err) {
		return domain.Layout{}, fmt.Errorf("%w: no addon content staged for %q", domain.ErrEmptyAsset, identity)
	}
	if err != nil {
		return domain.Layout{}, fmt.Errorf("failed to scan staged tree: %w", err)
	}

	var dirs []string
	var loose []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		} else {
			loose = append(loose, entry.Name())
		}
	}

	if len(loose) > 0 {
		synth, err := synthesizeRoot(addonsDir, identity, loose)
		if err != nil {
			return domain.Layout{}, err
		}
		if !contains(dirs, synth) {
			dirs = append(dirs, synth)
		}
	}

	if len(dirs) == 0 {
		return domain.Layout{}, fmt.Errorf("%w: %q unpacked to an empty tree", domain.ErrEmptyAsset, identity)
	}

	primary := RankPrimary(dirs, identity)

	layout := domain.Layout{Primary: primary}
	for _, dir := range dirs {
		if dir != primary {
			layout.SubAssets = append(layout.SubAssets, dir)
		}
	}
	sort.Strings(layout.SubAssets)

	if title, version, ok := readPluginCfg(filepath.Join(addonsDir, primary, "plugin.cfg")); ok {
		layout.Title = title
		layout.Version = version
	}
	return layout, nil
}

// synthesizeRoot moves loose files into a directory named after identity.
func synthesizeRoot(addonsDir, identity string, loose []string) (string, error) {
	name := folderName(identity)
	root := filepath.Join(addonsDir, name)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create synthesized plugin root: %w", err)
	}
	for _, file := range loose {
		src := filepath.Join(addonsDir, file)
		dst := filepath.Join(root, file)
		if err := os.Rename(src, dst); err != nil {
			return "", fmt.Errorf("failed to gather loose file %s: %w", file, err)
		}
	}
	return name, nil
}

// folderName normalizes a plugin identity into an addon folder name the way
// asset titles commonly map to folders ("My Plugin" -> "my_plugin").
func folderName(identity string) string {
	s := strings.ToLower(strings.TrimSpace(identity))
	s = strings.ReplaceAll(s, " ", "_")
	if s == "" {
		s = "plugin"
	}
	return s
}

// RankPrimary picks the addon directory that best matches the requested
// identity. Ranking: case-insensitive exact match, then prefix match, then
// longest shared prefix, with a lexicographic tie-break. Pure, so the
// policy can be tested and revised independently of fetch/IO code.
func RankPrimary(candidates []string, identity string) string {
	if len(candidates) == 0 {
		return ""
	}
	sorted := make([]string, len(candidates))
	copy(sorted, candidates)
	sort.Strings(sorted)

	want := strings.ToLower(identity)

	for _, c := range sorted {
		if strings.ToLower(c) == want {
			return c
		}
	}
	// Normalized spellings ("My Plugin" vs "my_plugin") count as exact.
	for _, c := range sorted {
		if strings.ToLower(c) == folderName(identity) {
			return c
		}
	}
	for _, c := range sorted {
		if want != "" && strings.HasPrefix(strings.ToLower(c), want) {
			return c
		}
	}

	best := sorted[0]
	bestShared := sharedPrefixLen(strings.ToLower(best), want)
	for _, c := range sorted[1:] {
		if n := sharedPrefixLen(strings.ToLower(c), want); n > bestShared {
			best, bestShared = c, n
		}
	}
	return best
}

func sharedPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// readPluginCfg pulls the display name and version out of a plugin.cfg.
// The file is Godot's variant format; only the name= and version= lines
// matter here, so a line-prefix scan is enough.
func readPluginCfg(path string) (title, version string, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", false
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if v, found := strings.CutPrefix(line, "name="); found {
			title = strings.Trim(v, `"`)
		} else if v, found := strings.CutPrefix(line, "version="); found {
			version = strings.Trim(v, `"`)
		}
	}
	return title, version, true
}
