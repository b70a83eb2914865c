package testsupport

import (
	"context"
	"testing"

	"atelier/internal/assetpool"
	"atelier/internal/assetstore"
	"atelier/internal/config"
)

// MustOpenStore opens an assetstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *assetstore.Store {
	t.Helper()

	store, err := assetstore.Open(cfg, nil)
	if err != nil {
		t.Fatalf("assetstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewAsset records an active asset for fp with a display name.
func NewAsset(t testing.TB, store *assetstore.Store, fp, name string) *assetstore.Asset {
	t.Helper()

	asset, _, err := store.UpsertFromDecomposition(context.Background(), fp, assetstore.Metadata{
		Name:     name,
		FilePath: assetpool.RelPath(fp),
		Width:    1,
		Height:   1,
	})
	if err != nil {
		t.Fatalf("store.UpsertFromDecomposition: %v", err)
	}
	return asset
}

// FP returns a deterministic lowercase hex fingerprint of length n built
// from seed, for tests that need well-formed keys without real content.
func FP(seed byte, n int) string {
	const hex = "0123456789abcdef"
	out := make([]byte, n)
	for i := range out {
		out[i] = hex[(int(seed)+i)%len(hex)]
	}
	return string(out)
}
