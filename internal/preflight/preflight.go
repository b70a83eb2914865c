package preflight

import (
	"context"

	"atelier/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes every check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Asset pool", cfg.AssetsDir()),
		CheckDirectoryAccess("Thumbnails", cfg.ThumbnailsDir()),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckIndexFile("Character index", cfg.Paths.CharactersIndex),
		CheckIndexFile("Library index", cfg.Paths.LibraryIndex),
		CheckHashing(cfg),
		CheckDataLock(cfg.LockPath()),
	}
	if ctx.Err() != nil {
		results = append(results, Result{Name: "Preflight", Detail: ctx.Err().Error()})
	}
	return results
}
