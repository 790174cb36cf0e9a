// Package cache manages the .gdm scratch directory. Each fetch claims a
// uniquely named staging subdirectory so parallel fetches never collide,
// and releases it when the fetch's contents have been consumed.
package cache

import (
	"fmt"
	"os"
	"strings"
)

// Cache is a staging-directory factory rooted at an explicitly passed path,
// never ambient process state, so tests can inject an isolated root.
type Cache struct {
	root string
}

// New creates a cache rooted at root. The directory is created lazily on
// the first Claim.
func New(root string) *Cache {
	return &Cache{root: root}
}

// Root returns the cache root path.
func (c *Cache) Root() string { return c.root }

// Claim creates a fresh staging directory for one fetch. The slug only
// influences the directory name for debuggability; uniqueness comes from
// os.MkdirTemp. The returned release func removes the directory and must
// run on every exit path, success or failure.
func (c *Cache) Claim(slug string) (string, func(), error) {
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create cache directory %s: %w", c.root, err)
	}
	dir, err := os.MkdirTemp(c.root, sanitizeSlug(slug)+"-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	release := func() { os.RemoveAll(dir) }
	return dir, release, nil
}

// sanitizeSlug keeps the staging name filesystem-safe.
func sanitizeSlug(slug string) string {
	if slug == "" {
		return "fetch"
	}
	var b strings.Builder
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
