package domain

import "errors"

// Sentinel errors for the failure modes the CLI reports. Callers classify
// with errors.Is after any number of fmt.Errorf("...: %w", ...) wraps.
var (
	// ErrNotFound means a plugin name or catalog identity did not resolve.
	ErrNotFound = errors.New("not found")

	// ErrVersionNotFound means an explicit version is not offered by the catalog.
	ErrVersionNotFound = errors.New("version not found")

	// ErrRefNotFound means a git ref did not resolve on the remote.
	ErrRefNotFound = errors.New("git ref not found")

	// ErrDownloadFailed covers network and HTTP-level download failures.
	ErrDownloadFailed = errors.New("download failed")

	// ErrTransport covers git network/auth failures other than a missing ref.
	ErrTransport = errors.New("git transport failed")

	// ErrCorruptArchive means a downloaded archive could not be decompressed.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrEmptyAsset means a fetched tree contained no addon content at all.
	ErrEmptyAsset = errors.New("asset contains no addons")

	// ErrCorruptManifest means gdm.json exists but is not valid JSON.
	ErrCorruptManifest = errors.New("corrupt manifest")

	// ErrConfigParse means project.godot could not be read or parsed.
	ErrConfigParse = errors.New("project config parse failed")
)

// PluginFailure records a single plugin's failure within a batch operation.
type PluginFailure struct {
	Name string
	Err  error
}

// BatchResult is the outcome of a multi-plugin operation. Fetch-stage
// failures abort only the affected plugin; the rest of the batch completes.
type BatchResult struct {
	Succeeded []string
	Failed    []PluginFailure
}

// Err returns a single error summarizing the batch, or nil if every plugin
// succeeded.
func (r BatchResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}
