package services

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"gdm.sh/cli/internal/core/domain"
	"gdm.sh/cli/internal/core/ports"
)

// VersionResolver turns a plugin identity plus an optional explicit version
// into a concrete catalog asset. Git sources never pass through here: the
// user-supplied ref is the version, by design, which is why update and
// outdated skip git records entirely.
type VersionResolver struct {
	catalog ports.CatalogAPI
}

// NewVersionResolver creates a resolver backed by catalog.
func NewVersionResolver(catalog ports.CatalogAPI) *VersionResolver {
	return &VersionResolver{catalog: catalog}
}

// Resolve returns the asset to fetch. An explicit version must be offered
// by the catalog (domain.ErrVersionNotFound otherwise); without one, the
// catalog's latest wins. Name lookups must match exactly one asset.
func (r *VersionResolver) Resolve(ctx context.Context, name, assetID, version, godotVersion string) (domain.Asset, error) {
	if assetID != "" {
		if version != "" {
			return r.catalog.AssetVersion(ctx, assetID, version)
		}
		return r.catalog.AssetByID(ctx, assetID)
	}

	if name == "" {
		return domain.Asset{}, fmt.Errorf("either a plugin name or an asset ID is required")
	}

	hits, err := r.catalog.Search(ctx, name, godotVersion)
	if err != nil {
		return domain.Asset{}, err
	}
	switch len(hits) {
	case 0:
		return domain.Asset{}, fmt.Errorf("%w: no asset matches %q", domain.ErrNotFound, name)
	case 1:
	default:
		return domain.Asset{}, fmt.Errorf(
			"expected exactly one asset matching %q but found %d; refine the search or use --asset-id", name, len(hits))
	}

	asset, err := r.catalog.AssetByID(ctx, hits[0].AssetID)
	if err != nil {
		return domain.Asset{}, err
	}
	if version != "" && asset.Version != version {
		return r.catalog.AssetVersion(ctx, asset.AssetID, version)
	}
	return asset, nil
}

// newerVersion reports whether latest supersedes current. Both sides
// parsing as semver compare semantically; catalog version strings are not
// guaranteed semver, so anything else falls back to plain inequality.
func newerVersion(latest, current string) bool {
	lv, lerr := semver.NewVersion(latest)
	cv, cerr := semver.NewVersion(current)
	if lerr == nil && cerr == nil {
		return lv.GreaterThan(cv)
	}
	return latest != current
}
