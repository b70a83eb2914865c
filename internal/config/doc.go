// Package config loads, normalizes, and validates atelier configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the ATELIER_DATA_DIR environment
// override. The Config type centralizes every knob the CLI and the asset
// pipeline need, so pool directories, index files, and the asset database are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
