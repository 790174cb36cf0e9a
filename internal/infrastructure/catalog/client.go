// Package catalog is the HTTP client for the Godot Asset Library API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"gdm.sh/cli/internal/core/domain"
)

// Client talks to the asset catalog. All calls carry a request timeout so a
// dead catalog surfaces a recoverable error instead of hanging.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a catalog client for baseURL.
func NewClient(baseURL string, timeout time.Duration, version string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "gdm/" + version,
	}
}

type assetListResponse struct {
	Result []domain.AssetSummary `json:"result"`
	Pages  int                   `json:"pages"`
}

type assetResponse struct {
	AssetID       string `json:"asset_id"`
	Title         string `json:"title"`
	VersionString string `json:"version_string"`
	GodotVersion  string `json:"godot_version"`
	Cost          string `json:"cost"`
	DownloadURL   string `json:"download_url"`
}

func (a assetResponse) toDomain() domain.Asset {
	return domain.Asset{
		AssetID:      a.AssetID,
		Title:        a.Title,
		Version:      a.VersionString,
		GodotVersion: a.GodotVersion,
		License:      a.Cost,
		DownloadURL:  a.DownloadURL,
	}
}

type assetEditListResponse struct {
	Result []assetEditListItem `json:"result"`
	Pages  int                 `json:"pages"`
}

type assetEditListItem struct {
	EditID        string `json:"edit_id"`
	AssetID       string `json:"asset_id"`
	VersionString string `json:"version_string"`
}

type assetEditResponse struct {
	EditID        string        `json:"edit_id"`
	AssetID       string        `json:"asset_id"`
	VersionString string        `json:"version_string"`
	GodotVersion  string        `json:"godot_version"`
	DownloadURL   string        `json:"download_url"`
	Original      assetResponse `json:"original"`
}

// Search queries assets by a text filter, optionally constrained to a Godot
// version.
func (c *Client) Search(ctx context.Context, query, godotVersion string) ([]domain.AssetSummary, error) {
	params := url.Values{"filter": {query}}
	if godotVersion != "" {
		params.Set("godot_version", godotVersion)
	}

	var resp assetListResponse
	if err := c.getJSON(ctx, "/asset?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("catalog search for %q failed: %w", query, err)
	}
	return resp.Result, nil
}

// AssetByID returns the asset at its latest published version.
func (c *Client) AssetByID(ctx context.Context, assetID string) (domain.Asset, error) {
	var resp assetResponse
	if err := c.getJSON(ctx, "/asset/"+url.PathEscape(assetID), &resp); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return domain.Asset{}, fmt.Errorf("%w: no asset with ID %q", domain.ErrNotFound, assetID)
		}
		return domain.Asset{}, fmt.Errorf("failed to fetch asset %q: %w", assetID, err)
	}
	return resp.toDomain(), nil
}

// AssetVersion returns the asset at an explicit version. Published versions
// live in the asset's accepted-edit history, so the client pages through it
// looking for a matching version string.
func (c *Client) AssetVersion(ctx context.Context, assetID, version string) (domain.Asset, error) {
	for page := 1; ; page++ {
		params := url.Values{
			"asset":  {assetID},
			"status": {"accepted"},
			"page":   {strconv.Itoa(page)},
		}
		var list assetEditListResponse
		if err := c.getJSON(ctx, "/asset/edit?"+params.Encode(), &list); err != nil {
			return domain.Asset{}, fmt.Errorf("failed to list versions of asset %q: %w", assetID, err)
		}

		for _, item := range list.Result {
			if item.VersionString != version {
				continue
			}
			var edit assetEditResponse
			if err := c.getJSON(ctx, "/asset/edit/"+url.PathEscape(item.EditID), &edit); err != nil {
				return domain.Asset{}, fmt.Errorf("failed to fetch version %s of asset %q: %w", version, assetID, err)
			}
			asset := edit.Original.toDomain()
			asset.AssetID = assetID
			asset.Version = edit.VersionString
			if edit.GodotVersion != "" {
				asset.GodotVersion = edit.GodotVersion
			}
			if edit.DownloadURL != "" {
				asset.DownloadURL = edit.DownloadURL
			}
			return asset, nil
		}

		if page >= list.Pages || len(list.Result) == 0 {
			break
		}
	}
	return domain.Asset{}, fmt.Errorf("%w: asset %q has no version %q", domain.ErrVersionNotFound, assetID, version)
}

// Download streams url into the file at dst.
func (c *Client) Download(ctx context.Context, downloadURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("%w: invalid download URL %q: %v", domain.ErrDownloadFailed, downloadURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", domain.ErrDownloadFailed, downloadURL, resp.StatusCode)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create download file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to finish download file: %w", err)
	}
	return nil
}

// statusError carries a non-200 API response status for classification.
type statusError struct {
	status int
	url    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.url, e.status)
}

func isStatus(err error, status int) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == status
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{status: resp.StatusCode, url: c.baseURL + path}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return nil
}
