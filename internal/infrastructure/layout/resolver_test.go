package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"gdm.sh/cli/internal/core/domain"
)

// stage builds a staging tree: dirs under addons/, loose files at its root.
func stage(t *testing.T, dirs []string, loose []string) string {
	t.Helper()
	stagingDir := t.TempDir()
	addons := filepath.Join(stagingDir, "addons")
	require.NoError(t, os.MkdirAll(addons, 0o755))
	for _, dir := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(addons, dir), 0o755))
	}
	for _, file := range loose {
		require.NoError(t, os.WriteFile(filepath.Join(addons, file), []byte("x"), 0o644))
	}
	return stagingDir
}

func TestResolve_SingleDirIsPrimary(t *testing.T) {
	stagingDir := stage(t, []string{"gut"}, nil)

	layout, err := NewResolver().Resolve(stagingDir, "Gut")
	require.NoError(t, err)
	assert.Equal(t, "gut", layout.Primary)
	assert.Empty(t, layout.SubAssets)
}

func TestResolve_CoBundledDirsBecomeSubAssets(t *testing.T) {
	stagingDir := stage(t, []string{"gut", "zz_shared", "aa_demo"}, nil)

	layout, err := NewResolver().Resolve(stagingDir, "gut")
	require.NoError(t, err)
	assert.Equal(t, "gut", layout.Primary)
	assert.Equal(t, []string{"aa_demo", "zz_shared"}, layout.SubAssets)
}

func TestResolve_LooseFilesSynthesizeRoot(t *testing.T) {
	stagingDir := stage(t, nil, []string{"tool.gd", "README.md"})

	layout, err := NewResolver().Resolve(stagingDir, "My Tool")
	require.NoError(t, err)
	assert.Equal(t, "my_tool", layout.Primary)

	for _, file := range []string{"tool.gd", "README.md"} {
		_, err := os.Stat(filepath.Join(stagingDir, "addons", "my_tool", file))
		assert.NoError(t, err, "expected %s inside synthesized root", file)
	}
}

func TestResolve_LooseFilesNextToDirs(t *testing.T) {
	stagingDir := stage(t, []string{"gut"}, []string{"stray.gd"})

	layout, err := NewResolver().Resolve(stagingDir, "gut")
	require.NoError(t, err)
	assert.Equal(t, "gut", layout.Primary)
	assert.NotContains(t, layout.SubAssets, "gut")
}

func TestResolve_EmptyTree(t *testing.T) {
	stagingDir := stage(t, nil, nil)

	_, err := NewResolver().Resolve(stagingDir, "gut")
	require.ErrorIs(t, err, domain.ErrEmptyAsset)
}

func TestResolve_MissingAddonsDir(t *testing.T) {
	_, err := NewResolver().Resolve(t.TempDir(), "gut")
	require.ErrorIs(t, err, domain.ErrEmptyAsset)
}

func TestResolve_ReadsPluginCfg(t *testing.T) {
	stagingDir := stage(t, []string{"gut"}, nil)
	cfg := "[plugin]\n\nname=\"Gut\"\ndescription=\"Unit testing\"\nversion=\"9.5.0\"\n"
	require.NoError(t, os.WriteFile(
		filepath.Join(stagingDir, "addons", "gut", "plugin.cfg"), []byte(cfg), 0o644))

	layout, err := NewResolver().Resolve(stagingDir, "gut")
	require.NoError(t, err)
	assert.Equal(t, "Gut", layout.Title)
	assert.Equal(t, "9.5.0", layout.Version)
}

func TestRankPrimary(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		identity   string
		want       string
	}{
		{
			name:       "exact match beats prefix match",
			candidates: []string{"Foo-examples", "Foo"},
			identity:   "foo",
			want:       "Foo",
		},
		{
			name:       "normalized spelling counts as exact",
			candidates: []string{"my_plugin", "my_plugin_demo"},
			identity:   "My Plugin",
			want:       "my_plugin",
		},
		{
			name:       "prefix match beats shared prefix",
			candidates: []string{"gu", "gut_extras"},
			identity:   "gut",
			want:       "gut_extras",
		},
		{
			name:       "longest shared prefix wins",
			candidates: []string{"dialogue_manager", "dia_tools"},
			identity:   "dialogue",
			want:       "dialogue_manager",
		},
		{
			name:       "lexicographic tie-break",
			candidates: []string{"zzz", "aaa"},
			identity:   "unrelated",
			want:       "aaa",
		},
		{
			name:       "single candidate",
			candidates: []string{"anything"},
			identity:   "gut",
			want:       "anything",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RankPrimary(tt.candidates, tt.identity))
		})
	}
}

// TestRankPrimary_Properties: the pick is always one of the candidates, is
// independent of candidate order, and an exact match always wins.
func TestRankPrimary_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		candidates := rapid.SliceOfNDistinct(
			rapid.StringMatching(`[a-z][a-z_]{0,8}`), 1, 6, rapid.ID[string]).Draw(t, "candidates")
		identity := rapid.StringMatching(`[a-z][a-z_]{0,8}`).Draw(t, "identity")

		pick := RankPrimary(candidates, identity)
		assert.Contains(t, candidates, pick)

		shuffled := rapid.Permutation(candidates).Draw(t, "shuffled")
		assert.Equal(t, pick, RankPrimary(shuffled, identity))

		for _, c := range candidates {
			if c == identity {
				assert.Equal(t, c, pick)
			}
		}
	})
}
