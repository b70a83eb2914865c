package coordinator_test

import (
	"context"
	"errors"
	"image/color"
	"os"
	"strings"
	"testing"

	"atelier/internal/assetstore"
	"atelier/internal/coordinator"
	"atelier/internal/fingerprint"
	"atelier/internal/services"
	"atelier/internal/testsupport"
)

func newCoordinator(env *testsupport.Env) *coordinator.Coordinator {
	return coordinator.New(env.Store, env.Pool, env.Characters, env.Library, nil)
}

func TestPurgeRequiresTrash(t *testing.T) {
	env := testsupport.NewEnv(t)
	coord := newCoordinator(env)
	ctx := context.Background()
	trashed := env.Seed(t, fingerprint.SHA256, "a", testsupport.Solid(4, 4, testsupport.Red))
	active := env.Seed(t, fingerprint.SHA256, "b", testsupport.Solid(4, 4, testsupport.Blue))

	if _, err := coord.SoftDelete(ctx, trashed); err != nil {
		t.Fatal(err)
	}
	_, err := coord.Purge(ctx, active)
	if !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("purge of never-deleted asset should be invalid state, got %v", err)
	}
	if !env.Pool.Exists(active) {
		t.Fatal("rejected purge must not touch the pool")
	}
	if _, err := coord.Purge(ctx, testsupport.FP(3, 64)); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPurgeCascadesEverywhere(t *testing.T) {
	env := testsupport.NewEnv(t)
	coord := newCoordinator(env)
	ctx := context.Background()
	fp := env.Seed(t, fingerprint.SHA256, "hat", testsupport.Solid(4, 4, testsupport.Green))
	keep := env.Seed(t, fingerprint.SHA256, "shoe", testsupport.Solid(4, 4, testsupport.Red))

	if _, err := coord.SoftDelete(ctx, strings.ToUpper(fp)); err != nil {
		t.Fatal(err)
	}
	if !env.Pool.Exists(fp) {
		t.Fatal("soft delete must keep the file")
	}
	if env.Characters.Fingerprints()[fp] != 1 {
		t.Fatal("soft delete must keep character refs")
	}

	report, err := coord.Purge(ctx, fp)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if !report.FileRemoved || !report.ThumbnailRemoved || report.CharacterRefs != 1 || report.LibraryRefs != 1 || !report.RowRemoved {
		t.Fatalf("unexpected report %+v", report)
	}

	if env.Pool.Exists(fp) || env.Pool.ThumbnailExists(fp) {
		t.Fatal("pool file and thumbnail should be removed")
	}
	for _, path := range []string{env.Config.Paths.CharactersIndex, env.Config.Paths.LibraryIndex} {
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(raw), fp) {
			t.Fatalf("%s still references purged fingerprint", path)
		}
		if !strings.Contains(string(raw), keep) {
			t.Fatalf("%s lost an unrelated reference", path)
		}
	}
	results, err := env.Store.Search(ctx, assetstore.Filter{IncludeTrashed: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range results {
		if a.Fingerprint == fp {
			t.Fatal("purged asset returned by search")
		}
	}
}

func TestPurgeResumesAfterPartialCascade(t *testing.T) {
	env := testsupport.NewEnv(t)
	coord := newCoordinator(env)
	ctx := context.Background()
	fp := env.Seed(t, fingerprint.SHA256, "glove", testsupport.Solid(3, 3, color.NRGBA{R: 9, A: 255}))
	if _, err := coord.SoftDelete(ctx, fp); err != nil {
		t.Fatal(err)
	}
	// Simulate a cascade that crashed after removing the file and the
	// character refs.
	if _, err := env.Pool.Remove(fp); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Characters.RemoveFingerprint(ctx, fp); err != nil {
		t.Fatal(err)
	}

	report, err := coord.Purge(ctx, fp)
	if err != nil {
		t.Fatalf("retry purge: %v", err)
	}
	if report.FileRemoved || report.CharacterRefs != 0 || report.LibraryRefs != 1 || !report.RowRemoved {
		t.Fatalf("unexpected retry report %+v", report)
	}
}

func TestRestoreKeepsReferences(t *testing.T) {
	env := testsupport.NewEnv(t)
	coord := newCoordinator(env)
	ctx := context.Background()
	fp := env.Seed(t, fingerprint.SHA256, "scarf", testsupport.Solid(2, 2, testsupport.Blue))

	if _, err := coord.SoftDelete(ctx, fp); err != nil {
		t.Fatal(err)
	}
	asset, err := coord.Restore(ctx, fp)
	if err != nil || asset.State != assetstore.StateActive {
		t.Fatalf("restore = %+v, %v", asset, err)
	}
	if env.Library.Fingerprints()[fp] != 1 || !env.Pool.Exists(fp) {
		t.Fatal("restore should find refs and file intact")
	}
}

func TestRestoreRefusesMissingFile(t *testing.T) {
	env := testsupport.NewEnv(t)
	coord := newCoordinator(env)
	ctx := context.Background()
	fp := env.Seed(t, fingerprint.SHA256, "cape", testsupport.Solid(2, 2, testsupport.Red))

	if _, err := coord.SoftDelete(ctx, fp); err != nil {
		t.Fatal(err)
	}
	// A purge that crashed after the file step leaves a trashed row.
	if _, err := env.Pool.Remove(fp); err != nil {
		t.Fatal(err)
	}

	if _, err := coord.Restore(ctx, fp); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("restore without a file should be invalid state, got %v", err)
	}
	asset, err := env.Store.Get(ctx, fp)
	if err != nil || asset.State != assetstore.StateTrashed {
		t.Fatalf("asset should stay trashed: %+v, %v", asset, err)
	}

	report, err := coord.Purge(ctx, fp)
	if err != nil || !report.RowRemoved || report.CharacterRefs != 1 {
		t.Fatalf("purge after refused restore = %+v, %v", report, err)
	}
}

func TestRestoreBlockedAfterPurgeStarted(t *testing.T) {
	env := testsupport.NewEnv(t)
	coord := newCoordinator(env)
	ctx := context.Background()
	fp := env.Seed(t, fingerprint.SHA256, "boot", testsupport.Solid(2, 2, testsupport.Green))

	if _, err := coord.SoftDelete(ctx, fp); err != nil {
		t.Fatal(err)
	}
	// The cascade has claimed the asset but not yet removed anything.
	if _, err := env.Store.BeginPurge(ctx, fp); err != nil {
		t.Fatal(err)
	}
	if _, err := coord.Restore(ctx, fp); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("restore during purge should be invalid state, got %v", err)
	}
	if _, err := coord.Purge(ctx, fp); err != nil {
		t.Fatalf("purge should finish the claimed asset: %v", err)
	}
	if _, err := env.Store.Get(ctx, fp); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected row gone, got %v", err)
	}
}

func TestAudit(t *testing.T) {
	env := testsupport.NewEnv(t)
	coord := newCoordinator(env)
	ctx := context.Background()
	fp := env.Seed(t, fingerprint.SHA256, "ok", testsupport.Solid(2, 2, testsupport.Red))

	report, err := coord.Audit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Clean() || report.Rows != 1 || report.PoolFiles != 1 {
		t.Fatalf("seeded env should be clean: %+v", report)
	}

	orphan := testsupport.FP(5, 64)
	if _, _, err := env.Pool.Store(orphan, testsupport.Solid(1, 1, testsupport.Green)); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Pool.Remove(fp); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Store.DeleteByFingerprint(ctx, fp); err != nil {
		t.Fatal(err)
	}
	missing := testsupport.NewAsset(t, env.Store, testsupport.FP(6, 64), "ghost").Fingerprint

	report, err = coord.Audit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.OrphanFiles) != 1 || report.OrphanFiles[0] != orphan {
		t.Fatalf("orphans = %v", report.OrphanFiles)
	}
	if len(report.MissingFiles) != 1 || report.MissingFiles[0] != missing {
		t.Fatalf("missing = %v", report.MissingFiles)
	}
	if len(report.DanglingCharRef) != 1 || len(report.DanglingLibRef) != 1 || report.DanglingCharRef[0] != fp {
		t.Fatalf("dangling refs = %v / %v", report.DanglingCharRef, report.DanglingLibRef)
	}
}
