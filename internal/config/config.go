package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig []byte

// Paths contains directory and file locations for persisted state.
// Relative index and database paths resolve against DataDir.
type Paths struct {
	DataDir         string `toml:"data_dir"`
	LogDir          string `toml:"log_dir"`
	CharactersIndex string `toml:"characters_index"`
	LibraryIndex    string `toml:"library_index"`
	Database        string `toml:"database"`
}

// Hashing selects the fingerprint algorithm for new assets and the legacy
// algorithm the migration rewrites from.
type Hashing struct {
	Algorithm       string `toml:"algorithm"`
	LegacyAlgorithm string `toml:"legacy_algorithm"`
}

type Decompose struct {
	Workers           int      `toml:"workers"`
	DefaultGroup      string   `toml:"default_group"`
	AllowedExtensions []string `toml:"allowed_extensions"`
}

type Thumbnails struct {
	Enabled bool `toml:"enabled"`
	MaxEdge int  `toml:"max_edge"`
}

type Search struct {
	PageSize int `toml:"page_size"`
}

type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for atelier.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Hashing    Hashing    `toml:"hashing"`
	Decompose  Decompose  `toml:"decompose"`
	Thumbnails Thumbnails `toml:"thumbnails"`
	Search     Search     `toml:"search"`
	Logging    Logging    `toml:"logging"`
}

// Source reports which file Load consulted. Found is false when no file
// existed and defaults were used.
type Source struct {
	Path  string
	Found bool
}

// DefaultConfigPath returns the per-user configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/atelier/config.toml")
}

// Load reads the configuration at path, or the first of the per-user and
// ./atelier.toml files that exists when path is empty, then applies
// defaults and validates the result. Unknown keys are rejected.
func Load(path string) (*Config, Source, error) {
	src, err := locate(path)
	if err != nil {
		return nil, Source{}, err
	}

	cfg := Default()
	if src.Found {
		if err := decodeFile(src.Path, &cfg); err != nil {
			return nil, src, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, src, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, src, err
	}
	return &cfg, src, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config %s: %s", path, strings.TrimSpace(strict.String()))
		}
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return fmt.Errorf("parse config %s:%d:%d: %w", path, row, col, err)
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func locate(path string) (Source, error) {
	if path = strings.TrimSpace(path); path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return Source{}, err
		}
		found, err := isFile(expanded)
		if err != nil {
			return Source{}, fmt.Errorf("stat config: %w", err)
		}
		return Source{Path: expanded, Found: found}, nil
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return Source{}, err
	}
	projectPath, err := filepath.Abs("atelier.toml")
	if err != nil {
		return Source{}, err
	}
	for _, candidate := range []string{userPath, projectPath} {
		if found, _ := isFile(candidate); found {
			return Source{Path: candidate, Found: true}, nil
		}
	}
	return Source{Path: userPath}, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	}
	return !info.IsDir(), nil
}

// ExpandPath applies the config path rules: a leading ~ expands to the home
// directory and the result is made absolute.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value, "~"))
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, sampleConfig, 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
