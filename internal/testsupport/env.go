package testsupport

import (
	"context"
	"image"
	"testing"

	"atelier/internal/assetpool"
	"atelier/internal/assetstore"
	"atelier/internal/characters"
	"atelier/internal/config"
	"atelier/internal/decompose"
	"atelier/internal/fingerprint"
	"atelier/internal/library"
)

// Env bundles every store rooted in one temp data directory.
type Env struct {
	Config     *config.Config
	Store      *assetstore.Store
	Pool       *assetpool.Pool
	Characters *characters.Index
	Library    *library.Index
}

// NewEnv builds a config and opens every store against it.
func NewEnv(t testing.TB, opts ...ConfigOption) *Env {
	t.Helper()

	cfg := NewConfig(t, opts...)
	return &Env{
		Config:     cfg,
		Store:      MustOpenStore(t, cfg),
		Pool:       assetpool.New(cfg.AssetsDir(), cfg.ThumbnailsDir(), nil),
		Characters: characters.New(cfg.Paths.CharactersIndex, nil),
		Library:    library.New(cfg.Paths.LibraryIndex, nil),
	}
}

// Seed pools img under the given algorithm, records an active row, and
// files a ref to it in the character index and in a library subfolder.
// It returns the fingerprint.
func (e *Env) Seed(t testing.TB, alg fingerprint.Algorithm, name string, img image.Image) string {
	t.Helper()
	ctx := context.Background()

	fp, err := fingerprint.New(alg).HashImage(img)
	if err != nil {
		t.Fatalf("hash image: %v", err)
	}
	if _, _, err := e.Pool.Store(fp, img); err != nil {
		t.Fatalf("pool store: %v", err)
	}
	if _, _, err := e.Pool.StoreThumbnail(fp, img, 8); err != nil {
		t.Fatalf("pool thumbnail: %v", err)
	}
	b := img.Bounds()
	if _, _, err := e.Store.UpsertFromDecomposition(ctx, fp, assetstore.Metadata{
		Name:          name,
		FilePath:      assetpool.RelPath(fp),
		ThumbnailPath: assetpool.ThumbnailRelPath(fp),
		Width:         b.Dx(),
		Height:        b.Dy(),
		CharacterName: "Seed",
	}); err != nil {
		t.Fatalf("store upsert: %v", err)
	}
	res := decompose.Result{
		GroupOrder: []string{"Root"},
		Groups:     map[string][]decompose.LayerRef{"Root": {{Name: name, Path: assetpool.RelPath(fp), Hash: fp}}},
	}
	if _, err := e.Characters.Merge(ctx, "Seed", res); err != nil {
		t.Fatalf("characters merge: %v", err)
	}
	cat := e.seedCategory(t)
	if _, err := e.Library.AddAsset(ctx, cat, "Seeded", name, fp); err != nil {
		t.Fatalf("library add: %v", err)
	}
	return fp
}

func (e *Env) seedCategory(t testing.TB) string {
	t.Helper()
	ctx := context.Background()
	for _, cat := range e.Library.Get().Categories {
		if cat.Name == "Seed" {
			return cat.ID
		}
	}
	cat, err := e.Library.CreateCategory(ctx, "Seed", 0)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if _, err := e.Library.CreateSubfolder(ctx, cat.ID, "Seeded"); err != nil {
		t.Fatalf("create subfolder: %v", err)
	}
	return cat.ID
}
