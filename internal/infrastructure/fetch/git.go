package fetch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gdm.sh/cli/internal/core/domain"
)

// GitFetcher materializes a repository ref by shelling out to the git
// binary: init, shallow fetch of the single ref, checkout of FETCH_HEAD.
// Only the ref's tree content is needed, never history.
type GitFetcher struct {
	gitBin string
}

// NewGitFetcher returns a fetcher using the git binary on PATH.
func NewGitFetcher() *GitFetcher {
	return &GitFetcher{gitBin: "git"}
}

// Fetch checks out url at ref inside stagingDir and relocates the addon
// content to stagingDir/addons. Ref resolution failures map to
// domain.ErrRefNotFound, everything else to domain.ErrTransport.
func (f *GitFetcher) Fetch(ctx context.Context, url, ref, stagingDir string) error {
	work := filepath.Join(stagingDir, "repo")
	if err := os.MkdirAll(work, 0o755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}

	if _, err := f.run(ctx, work, "init", "--quiet"); err != nil {
		return fmt.Errorf("%w: git init: %v", domain.ErrTransport, err)
	}
	if _, err := f.run(ctx, work, "remote", "add", "origin", url); err != nil {
		return fmt.Errorf("%w: git remote add: %v", domain.ErrTransport, err)
	}
	if stderr, err := f.run(ctx, work, "fetch", "--quiet", "--depth", "1", "origin", ref); err != nil {
		return classifyFetchError(url, ref, stderr, err)
	}
	if stderr, err := f.run(ctx, work, "checkout", "--quiet", "FETCH_HEAD"); err != nil {
		return fmt.Errorf("%w: git checkout %s: %v: %s", domain.ErrTransport, ref, err, stderr)
	}

	return relocateAddons(work, stagingDir, url)
}

// run executes one git command in dir, returning captured stderr.
func (f *GitFetcher) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, f.gitBin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// classifyFetchError distinguishes a missing ref from transport/auth
// failures using git's stderr.
func classifyFetchError(url, ref, stderr string, err error) error {
	lower := strings.ToLower(stderr)
	if strings.Contains(lower, "couldn't find remote ref") ||
		strings.Contains(lower, "could not find remote ref") ||
		strings.Contains(lower, "unknown revision") {
		return fmt.Errorf("%w: %q has no ref %q", domain.ErrRefNotFound, url, ref)
	}
	return fmt.Errorf("%w: fetching %q at %q: %v: %s", domain.ErrTransport, url, ref, err, strings.TrimSpace(stderr))
}

// relocateAddons moves the repository's addon content into
// stagingDir/addons. A repository either ships an addons/ tree, or is
// itself a single plugin (plugin.cfg at the root), which is staged under a
// folder named after the repository.
func relocateAddons(work, stagingDir, url string) error {
	dst := filepath.Join(stagingDir, "addons")

	repoAddons := filepath.Join(work, "addons")
	if info, err := os.Stat(repoAddons); err == nil && info.IsDir() {
		return os.Rename(repoAddons, dst)
	}

	if _, err := os.Stat(filepath.Join(work, "plugin.cfg")); err == nil {
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return fmt.Errorf("failed to create staging addons directory: %w", err)
		}
		if err := os.RemoveAll(filepath.Join(work, ".git")); err != nil {
			return fmt.Errorf("failed to drop git metadata: %w", err)
		}
		return os.Rename(work, filepath.Join(dst, domain.RepoName(url)))
	}

	return fmt.Errorf("%w: repository %q has no addons directory", domain.ErrEmptyAsset, url)
}
