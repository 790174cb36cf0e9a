package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdm.sh/cli/internal/core/domain"
)

// fakeCatalog is an in-memory ports.CatalogAPI.
type fakeCatalog struct {
	mu sync.Mutex

	latest   map[string]domain.Asset            // assetID -> latest
	versions map[string]map[string]domain.Asset // assetID -> version -> asset
	searches map[string][]domain.AssetSummary   // query -> hits

	searchedVersions []string // godot_version filters seen
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		latest:   map[string]domain.Asset{},
		versions: map[string]map[string]domain.Asset{},
		searches: map[string][]domain.AssetSummary{},
	}
}

func (f *fakeCatalog) addAsset(asset domain.Asset, older ...domain.Asset) {
	f.latest[asset.AssetID] = asset
	vs := map[string]domain.Asset{asset.Version: asset}
	for _, old := range older {
		vs[old.Version] = old
	}
	f.versions[asset.AssetID] = vs
}

func (f *fakeCatalog) Search(ctx context.Context, query, godotVersion string) ([]domain.AssetSummary, error) {
	f.mu.Lock()
	f.searchedVersions = append(f.searchedVersions, godotVersion)
	f.mu.Unlock()
	return f.searches[query], nil
}

func (f *fakeCatalog) AssetByID(ctx context.Context, assetID string) (domain.Asset, error) {
	asset, ok := f.latest[assetID]
	if !ok {
		return domain.Asset{}, fmt.Errorf("%w: no asset with ID %q", domain.ErrNotFound, assetID)
	}
	return asset, nil
}

func (f *fakeCatalog) AssetVersion(ctx context.Context, assetID, version string) (domain.Asset, error) {
	asset, ok := f.versions[assetID][version]
	if !ok {
		return domain.Asset{}, fmt.Errorf("%w: asset %q has no version %q", domain.ErrVersionNotFound, assetID, version)
	}
	return asset, nil
}

func (f *fakeCatalog) Download(ctx context.Context, url, dst string) error {
	return nil
}

func gutLatest() domain.Asset {
	return domain.Asset{AssetID: "1709", Title: "Gut", Version: "9.5.0", GodotVersion: "4.3"}
}

func gutOld() domain.Asset {
	return domain.Asset{AssetID: "1709", Title: "Gut", Version: "9.1.0", GodotVersion: "4.1"}
}

func gutSummary() domain.AssetSummary {
	return domain.AssetSummary{AssetID: "1709", Title: "Gut", Version: "9.5.0"}
}

func TestResolve_ByName_LatestVersion(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addAsset(gutLatest())
	catalog.searches["gut"] = []domain.AssetSummary{gutSummary()}

	asset, err := NewVersionResolver(catalog).Resolve(context.Background(), "gut", "", "", "4.3")
	require.NoError(t, err)
	assert.Equal(t, gutLatest(), asset)
	assert.Equal(t, []string{"4.3"}, catalog.searchedVersions)
}

func TestResolve_ByName_ExplicitOlderVersion(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addAsset(gutLatest(), gutOld())
	catalog.searches["gut"] = []domain.AssetSummary{gutSummary()}

	asset, err := NewVersionResolver(catalog).Resolve(context.Background(), "gut", "", "9.1.0", "4.3")
	require.NoError(t, err)
	assert.Equal(t, gutOld(), asset)
}

func TestResolve_ByName_NoMatch(t *testing.T) {
	catalog := newFakeCatalog()

	_, err := NewVersionResolver(catalog).Resolve(context.Background(), "nope", "", "", "4.3")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolve_ByName_AmbiguousMatch(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.searches["dialog"] = []domain.AssetSummary{
		{AssetID: "1", Title: "Dialogic"},
		{AssetID: "2", Title: "Dialogue Manager"},
	}

	_, err := NewVersionResolver(catalog).Resolve(context.Background(), "dialog", "", "", "4.3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--asset-id")
}

func TestResolve_ByAssetID(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addAsset(gutLatest(), gutOld())

	asset, err := NewVersionResolver(catalog).Resolve(context.Background(), "", "1709", "", "4.3")
	require.NoError(t, err)
	assert.Equal(t, "9.5.0", asset.Version)

	asset, err = NewVersionResolver(catalog).Resolve(context.Background(), "", "1709", "9.1.0", "4.3")
	require.NoError(t, err)
	assert.Equal(t, "9.1.0", asset.Version)
}

func TestResolve_VersionNotOffered(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addAsset(gutLatest())

	_, err := NewVersionResolver(catalog).Resolve(context.Background(), "", "1709", "0.0.1", "4.3")
	require.ErrorIs(t, err, domain.ErrVersionNotFound)
}

func TestNewerVersion(t *testing.T) {
	tests := []struct {
		latest  string
		current string
		want    bool
	}{
		{"9.5.0", "9.1.0", true},
		{"9.1.0", "9.5.0", false},
		{"9.1.0", "9.1.0", false},
		{"10.0.0", "9.9.9", true},
		// Non-semver strings fall back to inequality.
		{"2024-06", "2024-05", true},
		{"build-7", "build-7", false},
	}

	for _, tt := range tests {
		t.Run(tt.latest+" vs "+tt.current, func(t *testing.T) {
			assert.Equal(t, tt.want, newerVersion(tt.latest, tt.current))
		})
	}
}
