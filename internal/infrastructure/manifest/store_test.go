package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdm.sh/cli/internal/core/domain"
)

func TestLoad_MissingFileIsEmptyManifest(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "gdm.json"))

	m, err := store.Load()
	require.NoError(t, err)
	assert.True(t, m.Empty())
	assert.NotNil(t, m.Plugins)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "gdm.json"))

	m := domain.NewManifest()
	m.Upsert("gut", domain.Plugin{
		Title:        "Gut",
		Source:       domain.Source{Type: domain.SourceAsset, AssetID: "1709", Version: "9.5.0"},
		InstallPath:  "gut",
		SubAssets:    []string{"gut_examples"},
		GodotVersion: "4.3",
	})
	m.Upsert("pinned", domain.Plugin{
		Source:      domain.Source{Type: domain.SourceGit, URL: "https://example.com/p.git", Ref: "v2"},
		InstallPath: "pinned",
	})
	require.NoError(t, store.Save(m))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestSave_WritesStableHumanReadableJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gdm.json")
	store := NewStore(path)

	m := domain.NewManifest()
	m.Upsert("gut", domain.Plugin{
		Source:      domain.Source{Type: domain.SourceAsset, AssetID: "1709", Version: "9.5.0"},
		InstallPath: "gut",
	})
	require.NoError(t, store.Save(m))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasSuffix(text, "\n"), "manifest ends with a newline")
	assert.Contains(t, text, "  \"plugins\"", "two-space indentation")
	assert.Contains(t, text, `"asset_id": "1709"`)

	// Saving the same manifest twice produces identical bytes.
	require.NoError(t, store.Save(m))
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestLoad_CorruptManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gdm.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewStore(path).Load()
	require.ErrorIs(t, err, domain.ErrCorruptManifest)
}

func TestSave_LeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "gdm.json"))
	require.NoError(t, store.Save(domain.NewManifest()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "gdm.json", entries[0].Name())
}
