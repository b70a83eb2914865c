package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	assetsDirName     = "assets"
	thumbnailsDirName = "thumbnails"
	lockFileName      = "atelier.lock"
)

// AssetsDir returns the content pool directory holding <fingerprint>.png files.
func (c *Config) AssetsDir() string {
	return filepath.Join(c.Paths.DataDir, assetsDirName)
}

// ThumbnailsDir returns the directory holding <fingerprint>_thumb.png files.
func (c *Config) ThumbnailsDir() string {
	return filepath.Join(c.Paths.DataDir, thumbnailsDirName)
}

// LockPath returns the data directory lock shared by importers and held
// exclusively by the hash migration.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, lockFileName)
}

// EnsureDirectories creates every directory the data layout needs,
// including the parents of index and database files that live elsewhere.
func (c *Config) EnsureDirectories() error {
	for _, dir := range c.layoutDirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) layoutDirs() []string {
	candidates := []string{
		c.Paths.DataDir,
		c.AssetsDir(),
		c.ThumbnailsDir(),
		c.Paths.LogDir,
		filepath.Dir(c.Paths.CharactersIndex),
		filepath.Dir(c.Paths.LibraryIndex),
		filepath.Dir(c.Paths.Database),
	}
	dirs := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, dir := range candidates {
		if dir == "" || dir == "." || seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	return dirs
}
