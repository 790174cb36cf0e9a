// Package fetch materializes plugin sources — catalog archives and git
// refs — into staging directories for the layout resolver.
package fetch

import (
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nlepage/go-tarfs"

	"gdm.sh/cli/internal/core/domain"
	"gdm.sh/cli/internal/core/ports"
)

// ArchiveFetcher downloads a catalog asset into a staging directory and
// unpacks it under stagingDir/addons. Partial results never escape the
// staging scope.
type ArchiveFetcher struct {
	catalog ports.CatalogAPI
}

// NewArchiveFetcher wires the fetcher to a catalog client for downloads.
func NewArchiveFetcher(catalog ports.CatalogAPI) *ArchiveFetcher {
	return &ArchiveFetcher{catalog: catalog}
}

// Fetch downloads and unpacks one asset. The blob is removed once unpacked.
func (f *ArchiveFetcher) Fetch(ctx context.Context, asset domain.Asset, stagingDir string) error {
	blob := filepath.Join(stagingDir, "download.bin")
	if err := f.catalog.Download(ctx, asset.DownloadURL, blob); err != nil {
		return err
	}
	defer os.Remove(blob)

	dst := filepath.Join(stagingDir, "addons")
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("failed to create staging addons directory: %w", err)
	}

	kind, err := sniffArchive(blob)
	if err != nil {
		return err
	}
	switch kind {
	case archiveZip:
		err = unpackZip(blob, dst)
	case archiveTarGz:
		err = unpackTarGz(blob, dst)
	}
	if err != nil {
		return fmt.Errorf("asset %q: %w", asset.Title, err)
	}
	return nil
}

type archiveKind int

const (
	archiveZip archiveKind = iota
	archiveTarGz
)

// sniffArchive identifies the blob by magic bytes. The Asset Library serves
// zip almost exclusively; tar.gz shows up from custom download URLs.
func sniffArchive(path string) (archiveKind, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open downloaded archive: %w", err)
	}
	defer file.Close()

	var magic [2]byte
	if _, err := io.ReadFull(file, magic[:]); err != nil {
		return 0, fmt.Errorf("%w: archive too short", domain.ErrCorruptArchive)
	}
	switch {
	case magic[0] == 'P' && magic[1] == 'K':
		return archiveZip, nil
	case magic[0] == 0x1f && magic[1] == 0x8b:
		return archiveTarGz, nil
	default:
		return 0, fmt.Errorf("%w: unrecognized archive format", domain.ErrCorruptArchive)
	}
}

func unpackZip(blob, dst string) error {
	archive, err := zip.OpenReader(blob)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCorruptArchive, err)
	}
	defer archive.Close()

	for _, entry := range archive.File {
		rel, ok := stagePath(entry.Name)
		if !ok {
			continue
		}
		target, err := secureJoin(dst, rel)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		src, err := entry.Open()
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCorruptArchive, err)
		}
		err = writeEntry(target, src, entry.Mode())
		src.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func unpackTarGz(blob, dst string) error {
	file, err := os.Open(blob)
	if err != nil {
		return fmt.Errorf("failed to open downloaded archive: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCorruptArchive, err)
	}
	defer gz.Close()

	tfs, err := tarfs.New(gz)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCorruptArchive, err)
	}

	return fs.WalkDir(tfs, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCorruptArchive, err)
		}
		if name == "." || d.IsDir() {
			return nil
		}
		rel, ok := stagePath(name)
		if !ok {
			return nil
		}
		target, err := secureJoin(dst, rel)
		if err != nil {
			return err
		}
		src, err := tfs.Open(name)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCorruptArchive, err)
		}
		defer src.Close()

		mode := fs.FileMode(0o644)
		if info, err := d.Info(); err == nil {
			mode = info.Mode().Perm()
		}
		return writeEntry(target, src, mode)
	})
}

func writeEntry(target string, src io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0o200)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("%w: %v", domain.ErrCorruptArchive, err)
	}
	return out.Close()
}

// stagePath remaps an archive entry onto the staging addons tree:
// the archive's top-level folder is stripped, and when an addons component
// appears the path continues from just past it. Entries that resolve to
// the addons marker itself are dropped.
func stagePath(name string) (string, bool) {
	clean := path.Clean(filepath.ToSlash(name))
	if clean == "." || clean == "/" || strings.HasPrefix(clean, "../") {
		return "", false
	}
	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	if len(parts) == 1 {
		// A bare top-level file: stage it as a loose file so the layout
		// resolver can fold it into a synthesized plugin root.
		return parts[0], true
	}

	rest := parts[1:]
	for i, part := range rest {
		if part == "addons" {
			if i+1 >= len(rest) {
				return "", false
			}
			return path.Join(rest[i+1:]...), true
		}
	}
	return path.Join(rest...), true
}

// secureJoin rejects entries that would escape the staging destination.
func secureJoin(dst, rel string) (string, error) {
	target := filepath.Join(dst, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, filepath.Clean(dst)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: entry escapes archive root: %s", domain.ErrCorruptArchive, rel)
	}
	return target, nil
}
