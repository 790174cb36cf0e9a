package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func assetPlugin(assetID, version string) Plugin {
	return Plugin{
		Source:      Source{Type: SourceAsset, AssetID: assetID, Version: version},
		InstallPath: "plugin_" + assetID,
	}
}

func TestRepoName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/bitwes/Gut.git", "Gut"},
		{"https://github.com/bitwes/Gut", "Gut"},
		{"https://example.com/group/sub/plugin.git/", "plugin"},
		{"git@github.com:user/thing.git", "thing"},
		{"", "plugin"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, RepoName(tt.url))
		})
	}
}

// TestManifest_Upsert_ReplacesInPlace verifies that re-adding a name never
// duplicates a record.
func TestManifest_Upsert_ReplacesInPlace(t *testing.T) {
	m := NewManifest()

	m.Upsert("gut", assetPlugin("1709", "9.1.0"))
	m.Upsert("gut", assetPlugin("1709", "9.5.0"))

	require.Len(t, m.Plugins, 1)
	rec, ok := m.Get("gut")
	require.True(t, ok)
	assert.Equal(t, "9.5.0", rec.Source.Version)
}

func TestManifest_Upsert_NilMapIsUsable(t *testing.T) {
	var m Manifest
	m.Upsert("gut", assetPlugin("1709", "9.1.0"))
	require.Len(t, m.Plugins, 1)
}

func TestManifest_Remove(t *testing.T) {
	m := NewManifest()
	m.Upsert("gut", assetPlugin("1709", "9.1.0"))

	rec, ok := m.Remove("gut")
	require.True(t, ok)
	assert.Equal(t, "1709", rec.Source.AssetID)
	assert.True(t, m.Empty())

	_, ok = m.Remove("gut")
	assert.False(t, ok)
}

func TestManifest_ByAssetID(t *testing.T) {
	m := NewManifest()
	m.Upsert("gut", assetPlugin("1709", "9.1.0"))
	m.Upsert("dialogic", assetPlugin("889", "2.0"))
	m.Upsert("pinned", Plugin{Source: Source{Type: SourceGit, URL: "https://example.com/x.git", Ref: "main"}})

	name, rec, ok := m.ByAssetID("889")
	require.True(t, ok)
	assert.Equal(t, "dialogic", name)
	assert.Equal(t, "2.0", rec.Source.Version)

	_, _, ok = m.ByAssetID("does-not-exist")
	assert.False(t, ok)
}

func TestManifest_Names_Sorted(t *testing.T) {
	m := NewManifest()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		m.Upsert(name, assetPlugin(name, "1.0"))
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, m.Names())
}

func TestLayout_Folders_PrimaryFirst(t *testing.T) {
	l := Layout{Primary: "gut", SubAssets: []string{"examples", "shared"}}
	assert.Equal(t, []string{"gut", "examples", "shared"}, l.Folders())
}

func TestSource_IsAsset(t *testing.T) {
	assert.True(t, Source{Type: SourceAsset, AssetID: "1"}.IsAsset())
	assert.False(t, Source{Type: SourceGit, URL: "u", Ref: "main"}.IsAsset())
}

// TestManifest_UpsertRemove_Property checks that any sequence of upserts and
// removes keeps exactly the records of names upserted and not yet removed.
func TestManifest_UpsertRemove_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := NewManifest()
		alive := map[string]bool{}

		names := rapid.SliceOfN(rapid.SampledFrom([]string{"a", "b", "c", "d"}), 1, 20).Draw(t, "names")
		for _, name := range names {
			if rapid.Bool().Draw(t, "remove") {
				m.Remove(name)
				delete(alive, name)
			} else {
				m.Upsert(name, assetPlugin(name, "1.0"))
				alive[name] = true
			}
		}

		require.Len(t, m.Plugins, len(alive))
		for name := range alive {
			_, ok := m.Get(name)
			assert.True(t, ok, "expected %s to be tracked", name)
		}
	})
}
