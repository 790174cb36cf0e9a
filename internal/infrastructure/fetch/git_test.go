package fetch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdm.sh/cli/internal/core/domain"
)

func TestClassifyFetchError(t *testing.T) {
	base := errors.New("exit status 128")

	tests := []struct {
		name   string
		stderr string
		want   error
	}{
		{"missing ref", "fatal: couldn't find remote ref v999", domain.ErrRefNotFound},
		{"missing ref alt spelling", "fatal: Could not find remote ref refs/heads/x", domain.ErrRefNotFound},
		{"unknown revision", "fatal: unknown revision or path not in the working tree", domain.ErrRefNotFound},
		{"auth failure", "fatal: Authentication failed for 'https://...'", domain.ErrTransport},
		{"dns failure", "fatal: unable to access: Could not resolve host", domain.ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyFetchError("https://example.com/r.git", "v1", tt.stderr, base)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRelocateAddons_RepoWithAddonsTree(t *testing.T) {
	stagingDir := t.TempDir()
	work := filepath.Join(stagingDir, "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(work, "addons", "gut"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(work, "addons", "gut", "plugin.cfg"), []byte("[plugin]\n"), 0o644))

	require.NoError(t, relocateAddons(work, stagingDir, "https://example.com/gut.git"))

	_, err := os.Stat(filepath.Join(stagingDir, "addons", "gut", "plugin.cfg"))
	assert.NoError(t, err)
}

func TestRelocateAddons_RepoIsThePlugin(t *testing.T) {
	stagingDir := t.TempDir()
	work := filepath.Join(stagingDir, "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(work, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(work, "plugin.cfg"), []byte("[plugin]\n"), 0o644))

	require.NoError(t, relocateAddons(work, stagingDir, "https://example.com/solo.git"))

	_, err := os.Stat(filepath.Join(stagingDir, "addons", "solo", "plugin.cfg"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(stagingDir, "addons", "solo", ".git"))
	assert.True(t, os.IsNotExist(err), "git metadata must not be staged")
}

func TestRelocateAddons_NoAddonContent(t *testing.T) {
	stagingDir := t.TempDir()
	work := filepath.Join(stagingDir, "repo")
	require.NoError(t, os.MkdirAll(work, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(work, "README.md"), []byte("x"), 0o644))

	err := relocateAddons(work, stagingDir, "https://example.com/docs.git")
	require.ErrorIs(t, err, domain.ErrEmptyAsset)
}
