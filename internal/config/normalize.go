package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeHashing()
	c.normalizeDecompose()
	c.normalizeThumbnails()
	c.normalizeSearch()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("ATELIER_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.CharactersIndex, err = c.resolveDataPath(c.Paths.CharactersIndex, defaultCharactersIndex); err != nil {
		return fmt.Errorf("paths.characters_index: %w", err)
	}
	if c.Paths.LibraryIndex, err = c.resolveDataPath(c.Paths.LibraryIndex, defaultLibraryIndex); err != nil {
		return fmt.Errorf("paths.library_index: %w", err)
	}
	if c.Paths.Database, err = c.resolveDataPath(c.Paths.Database, defaultDatabase); err != nil {
		return fmt.Errorf("paths.database: %w", err)
	}
	return nil
}

func (c *Config) resolveDataPath(value, fallback string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if !strings.HasPrefix(value, "~") && !filepath.IsAbs(value) {
		value = filepath.Join(c.Paths.DataDir, value)
	}
	return expandPath(value)
}

func (c *Config) normalizeHashing() {
	c.Hashing.Algorithm = strings.ToLower(strings.TrimSpace(c.Hashing.Algorithm))
	if c.Hashing.Algorithm == "" {
		c.Hashing.Algorithm = defaultHashAlgorithm
	}
	c.Hashing.LegacyAlgorithm = strings.ToLower(strings.TrimSpace(c.Hashing.LegacyAlgorithm))
	if c.Hashing.LegacyAlgorithm == "" {
		c.Hashing.LegacyAlgorithm = defaultLegacyAlgorithm
	}
}

func (c *Config) normalizeDecompose() {
	if c.Decompose.Workers <= 0 {
		c.Decompose.Workers = defaultDecomposeWorkers
	}
	// Each worker holds a whole layer tree in memory.
	if ceiling := runtime.GOMAXPROCS(0) / 2; ceiling >= 1 && c.Decompose.Workers > ceiling {
		c.Decompose.Workers = ceiling
	}
	c.Decompose.DefaultGroup = strings.TrimSpace(c.Decompose.DefaultGroup)
	if c.Decompose.DefaultGroup == "" {
		c.Decompose.DefaultGroup = defaultGroupName
	}
	exts := make([]string, 0, len(c.Decompose.AllowedExtensions))
	seen := make(map[string]struct{}, len(c.Decompose.AllowedExtensions))
	for _, ext := range c.Decompose.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultAllowedExtensions...)
	}
	c.Decompose.AllowedExtensions = exts
}

func (c *Config) normalizeThumbnails() {
	if c.Thumbnails.MaxEdge <= 0 {
		c.Thumbnails.MaxEdge = defaultThumbnailMaxEdge
	}
}

func (c *Config) normalizeSearch() {
	if c.Search.PageSize <= 0 {
		c.Search.PageSize = defaultSearchPageSize
	}
	if c.Search.PageSize > maxSearchPageSize {
		c.Search.PageSize = maxSearchPageSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
