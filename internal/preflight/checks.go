package preflight

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"

	"atelier/internal/config"
	"atelier/internal/datalock"
	"atelier/internal/fingerprint"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckIndexFile verifies a JSON index is absent or parseable. An absent
// file passes because it is created on first write.
func CheckIndexFile(name, path string) Result {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: read: %v)", path, err)}
	}
	if len(raw) > 0 && !json.Valid(raw) {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not valid JSON; it will load as empty)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d bytes)", path, len(raw))}
}

// CheckHashing verifies the configured algorithms and that the migration
// can tell their fingerprints apart by length.
func CheckHashing(cfg *config.Config) Result {
	const name = "Hashing"
	current, err := fingerprint.ParseAlgorithm(cfg.Hashing.Algorithm)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	legacy, err := fingerprint.ParseAlgorithm(cfg.Hashing.LegacyAlgorithm)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if legacy != current && legacy.HexLen() == current.HexLen() {
		return Result{Name: name, Detail: fmt.Sprintf("%s and %s fingerprints have the same length; migrate-hash cannot tell them apart", legacy, current)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (legacy %s)", current, legacy)}
}

// CheckDataLock reports whether another process currently holds the data
// directory.
func CheckDataLock(path string) Result {
	const name = "Data lock"
	free, err := datalock.Free(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if !free {
		return Result{Name: name, Detail: fmt.Sprintf("%s (held by another atelier process)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (free)", path)}
}
