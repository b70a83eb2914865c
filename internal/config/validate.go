package config

import (
	"errors"
	"fmt"
)

var knownAlgorithms = map[string]struct{}{
	"md5":    {},
	"sha256": {},
	"blake3": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateHashing(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Decompose.Workers < 1 {
		return errors.New("decompose.workers must be at least 1")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.CharactersIndex == c.Paths.LibraryIndex {
		return errors.New("paths.characters_index and paths.library_index must differ")
	}
	return nil
}

func (c *Config) validateHashing() error {
	if _, ok := knownAlgorithms[c.Hashing.Algorithm]; !ok {
		return fmt.Errorf("hashing.algorithm: unsupported value %q (use md5, sha256, or blake3)", c.Hashing.Algorithm)
	}
	if _, ok := knownAlgorithms[c.Hashing.LegacyAlgorithm]; !ok {
		return fmt.Errorf("hashing.legacy_algorithm: unsupported value %q", c.Hashing.LegacyAlgorithm)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
