// Package godotcfg edits the [editor_plugins] section of project.godot.
//
// The file is Godot's own variant text format, so the synchronizer works
// line-based: it owns exactly one section and reproduces every other line
// byte for byte. A load-then-save round trip with no mutation writes the
// original bytes back unchanged.
package godotcfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gdm.sh/cli/internal/core/domain"
)

const (
	sectionHeader = "[editor_plugins]"
	enabledPrefix = "enabled="
)

// Project is the loaded project.godot with the activation set lifted out.
// Mutations touch only the in-memory set; Save rewrites the file.
type Project struct {
	path      string
	addonsDir string

	raw     []byte
	lines   []string
	exists  bool
	dirty   bool
	enabled []string // resource paths, in file order
}

// Open loads project.godot at path. A missing file is not an error: the
// project starts empty and Save will create it. addonsDir is the addons
// root used to build res:// resource paths.
func Open(path, addonsDir string) (*Project, error) {
	p := &Project{path: path, addonsDir: addonsDir}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrConfigParse, path, err)
	}

	p.raw = data
	p.exists = true
	p.lines = strings.Split(string(data), "\n")
	p.enabled = parseEnabled(p.lines)
	return p, nil
}

// parseEnabled extracts the PackedStringArray values of the enabled= line
// inside [editor_plugins], if both exist.
func parseEnabled(lines []string) []string {
	idx := sectionIndex(lines)
	if idx < 0 {
		return nil
	}
	for i := idx + 1; i < len(lines); i++ {
		line := trimEOL(lines[i])
		if isSectionHeader(line) {
			break
		}
		if strings.HasPrefix(line, enabledPrefix) {
			return parsePackedStringArray(strings.TrimPrefix(line, enabledPrefix))
		}
	}
	return nil
}

func sectionIndex(lines []string) int {
	for i, line := range lines {
		if strings.HasPrefix(trimEOL(line), sectionHeader) {
			return i
		}
	}
	return -1
}

func isSectionHeader(line string) bool {
	return strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]")
}

func trimEOL(line string) string {
	return strings.TrimSuffix(line, "\r")
}

// parsePackedStringArray parses `PackedStringArray("a", "b")` into its
// elements. Malformed input degrades to an empty set rather than an error;
// the section is rewritten wholesale on the next save anyway.
func parsePackedStringArray(value string) []string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "PackedStringArray(")
	value = strings.TrimSuffix(value, ")")
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		s := strings.TrimSpace(part)
		s = strings.Trim(s, `"`)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func packedStringArray(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return "PackedStringArray(" + strings.Join(quoted, ", ") + ")"
}

// resourcePath converts an addon folder name to the resource path Godot
// stores in the activation section.
func (p *Project) resourcePath(folder string) string {
	return "res://" + filepath.ToSlash(filepath.Join(p.addonsDir, folder, "plugin.cfg"))
}

func (p *Project) folderOf(resource string) string {
	prefix := "res://" + filepath.ToSlash(p.addonsDir) + "/"
	s := strings.TrimPrefix(resource, prefix)
	s = strings.TrimSuffix(s, "/plugin.cfg")
	return s
}

// Activated returns the activated addon folder names, in file order.
func (p *Project) Activated() []string {
	out := make([]string, 0, len(p.enabled))
	for _, res := range p.enabled {
		out = append(out, p.folderOf(res))
	}
	return out
}

// Activate adds folders to the activation set. Activating an already-active
// folder is a no-op, not an error.
func (p *Project) Activate(folders ...string) {
	for _, folder := range folders {
		res := p.resourcePath(folder)
		if p.hasResource(res) {
			continue
		}
		p.enabled = append(p.enabled, res)
		p.dirty = true
	}
}

// Deactivate removes folders from the activation set. Deactivating a folder
// that is not active is a no-op.
func (p *Project) Deactivate(folders ...string) {
	for _, folder := range folders {
		res := p.resourcePath(folder)
		for i, existing := range p.enabled {
			if existing == res {
				p.enabled = append(p.enabled[:i], p.enabled[i+1:]...)
				p.dirty = true
				break
			}
		}
	}
}

// SetActivated reconciles the activation set to exactly folders. Entries
// already active keep their position; missing ones are appended in the
// given order.
func (p *Project) SetActivated(folders []string) {
	want := make(map[string]bool, len(folders))
	for _, folder := range folders {
		want[p.resourcePath(folder)] = true
	}

	kept := make([]string, 0, len(folders))
	for _, res := range p.enabled {
		if want[res] {
			kept = append(kept, res)
			delete(want, res)
		}
	}
	for _, folder := range folders {
		res := p.resourcePath(folder)
		if want[res] {
			kept = append(kept, res)
			delete(want, res)
		}
	}

	if !equalStrings(kept, p.enabled) {
		p.enabled = kept
		p.dirty = true
	}
}

func (p *Project) hasResource(res string) bool {
	for _, existing := range p.enabled {
		if existing == res {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// GodotVersion reports the project's Godot version: the first entry of
// config/features when present, otherwise a default mapped from
// config_version (5 is the 4.x line, 4 is the 3.x line).
func (p *Project) GodotVersion() (string, error) {
	configVersion := 5
	for _, l := range p.lines {
		line := trimEOL(l)
		if v, ok := strings.CutPrefix(line, "config/features="); ok {
			if features := parsePackedStringArray(v); len(features) > 0 {
				return features[0], nil
			}
		}
		if v, ok := strings.CutPrefix(line, "config_version="); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				configVersion = n
			}
		}
	}

	switch configVersion {
	case 5:
		return "4.5", nil
	case 4:
		return "3.6", nil
	default:
		return "", fmt.Errorf("%w: unsupported config_version %d", domain.ErrConfigParse, configVersion)
	}
}

// Save writes the file atomically: temp file in the same directory, then
// rename over the original. When nothing changed, the original bytes are
// written back verbatim.
func (p *Project) Save() error {
	var data []byte
	if !p.dirty {
		if !p.exists {
			return nil
		}
		data = p.raw
	} else {
		rendered, err := p.render()
		if err != nil {
			return err
		}
		data = []byte(rendered)
	}

	dir := filepath.Dir(p.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(p.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary project file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write project file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary project file: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace project file %s: %w", p.path, err)
	}

	p.raw = data
	p.lines = strings.Split(string(data), "\n")
	p.exists = true
	p.dirty = false
	return nil
}

// render produces the full file with the owned section updated and every
// other line untouched.
func (p *Project) render() (string, error) {
	lines := make([]string, len(p.lines))
	copy(lines, p.lines)

	// Ensure a trailing newline before appending; a file created from
	// scratch starts with the section header, not a blank line.
	if len(lines) > 0 && trimEOL(lines[len(lines)-1]) != "" {
		lines = append(lines, "")
	}

	idx := sectionIndex(lines)

	if len(p.enabled) == 0 {
		// Drop the owned section entirely: header, blank, enabled line,
		// trailing blank.
		if idx >= 0 {
			end := idx + 4
			if end > len(lines) {
				end = len(lines)
			}
			lines = append(lines[:idx], lines[end:]...)
		}
		return strings.Join(lines, "\n"), nil
	}

	enabledLine := enabledPrefix + packedStringArray(p.enabled)

	if idx >= 0 {
		for i := idx + 1; i < len(lines); i++ {
			line := trimEOL(lines[i])
			if isSectionHeader(line) {
				break
			}
			if strings.HasPrefix(line, enabledPrefix) {
				lines[i] = enabledLine
				return strings.Join(lines, "\n"), nil
			}
		}
		// Section exists without an enabled entry; place one after the
		// header's blank line.
		insert := idx + 1
		if insert < len(lines) && trimEOL(lines[insert]) == "" {
			insert++
		}
		lines = append(lines[:insert], append([]string{enabledLine}, lines[insert:]...)...)
		return strings.Join(lines, "\n"), nil
	}

	// No section yet: insert it in alphabetical section order, or append
	// at the end when every existing section sorts before it.
	block := []string{sectionHeader, "", enabledLine, ""}
	for i, l := range lines {
		line := trimEOL(l)
		if isSectionHeader(line) && strings.ToLower(line) > sectionHeader {
			lines = append(lines[:i], append(block, lines[i:]...)...)
			return strings.Join(lines, "\n"), nil
		}
	}
	lines = append(lines, block...)
	return strings.Join(lines, "\n"), nil
}
