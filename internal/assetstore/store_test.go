package assetstore_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"atelier/internal/assetstore"
	"atelier/internal/services"
	"atelier/internal/testsupport"
)

func TestOpenCreatesSchemaAndMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	applied, err := store.AppliedMigrations(context.Background())
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(applied) != 4 || applied[0] != "0001_asset_filters" || applied[3] != "0004_purge_pending" {
		t.Fatalf("unexpected migrations %v", applied)
	}
	if _, err := os.Stat(cfg.Paths.Database); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
	store.Close()

	// Reopening an existing database re-checks the version and is a no-op
	// for migrations.
	reopened := testsupport.MustOpenStore(t, cfg)
	again, err := reopened.AppliedMigrations(context.Background())
	if err != nil || len(again) != 4 {
		t.Fatalf("reopen migrations = %v, err=%v", again, err)
	}
}

func TestUpsertFromDecompositionIsInsertOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	fp := testsupport.FP(1, 64)

	first, created, err := store.UpsertFromDecomposition(ctx, fp, assetstore.Metadata{
		Name:          "eye",
		FilePath:      "assets/" + fp + ".png",
		Width:         100,
		Height:        100,
		FileSize:      321,
		CharacterName: "Alice",
	})
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}
	if first.State != assetstore.StateActive || first.Width != 100 || first.ID == "" {
		t.Fatalf("unexpected asset %+v", first)
	}

	second, created, err := store.UpsertFromDecomposition(ctx, fp, assetstore.Metadata{Name: "renamed", Width: 1})
	if err != nil || created {
		t.Fatalf("second upsert: created=%v err=%v", created, err)
	}
	if second.ID != first.ID || second.Name != "eye" || second.Width != 100 {
		t.Fatalf("existing metadata must not be overwritten: %+v", second)
	}

	upper, err := store.Get(ctx, " "+strings.ToUpper(fp))
	if err != nil || upper.ID != first.ID {
		t.Fatalf("lookup should be case-insensitive: %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	_, err := store.Get(context.Background(), testsupport.FP(2, 64))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	fp := testsupport.FP(3, 64)
	testsupport.NewAsset(t, store, fp, "hand")

	if err := store.Purge(ctx, fp); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("purge of active asset should fail with invalid state, got %v", err)
	}

	trashed, err := store.SoftDelete(ctx, fp)
	if err != nil || trashed.State != assetstore.StateTrashed {
		t.Fatalf("soft delete: %+v, %v", trashed, err)
	}
	again, err := store.SoftDelete(ctx, fp)
	if err != nil || !again.UpdatedAt.Equal(trashed.UpdatedAt) {
		t.Fatalf("second soft delete should be a no-op: %v", err)
	}

	restored, err := store.Restore(ctx, fp)
	if err != nil || restored.State != assetstore.StateActive {
		t.Fatalf("restore: %+v, %v", restored, err)
	}
	if _, err := store.Restore(ctx, fp); err != nil {
		t.Fatalf("restore of active asset should be a no-op: %v", err)
	}

	if _, err := store.SoftDelete(ctx, fp); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AppendVersion(ctx, fp, testsupport.FP(4, 64), "assets/v.png"); err != nil {
		t.Fatal(err)
	}
	if err := store.Purge(ctx, fp); err != nil {
		t.Fatalf("purge: %v", err)
	}

	results, err := store.Search(ctx, assetstore.Filter{IncludeTrashed: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("purged asset should never be returned, got %d", len(results))
	}
	if _, err := store.ListVersions(ctx, fp); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("versions of purged asset should be not found, got %v", err)
	}
	for _, op := range []func(context.Context, string) (*assetstore.Asset, error){store.SoftDelete, store.Restore} {
		if _, err := op(ctx, fp); !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if err := store.Purge(ctx, fp); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBeginPurgeBlocksRestore(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	fp := testsupport.FP(6, 64)
	testsupport.NewAsset(t, store, fp, "belt")

	if _, err := store.BeginPurge(ctx, fp); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("begin purge of active asset should be invalid state, got %v", err)
	}
	if _, err := store.BeginPurge(ctx, testsupport.FP(7, 64)); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.SoftDelete(ctx, fp); err != nil {
		t.Fatal(err)
	}
	marked, err := store.BeginPurge(ctx, fp)
	if err != nil || !marked.PurgePending {
		t.Fatalf("BeginPurge = %+v, %v", marked, err)
	}
	if _, err := store.BeginPurge(ctx, fp); err != nil {
		t.Fatalf("second BeginPurge should be a no-op: %v", err)
	}

	if _, err := store.Restore(ctx, fp); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("restore during purge should be invalid state, got %v", err)
	}
	got, err := store.Get(ctx, fp)
	if err != nil || got.State != assetstore.StateTrashed || !got.PurgePending {
		t.Fatalf("asset should stay trashed and pending: %+v, %v", got, err)
	}
	if err := store.Purge(ctx, fp); err != nil {
		t.Fatalf("purge: %v", err)
	}
}

func TestSearchFilters(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	z := 2
	rows := []assetstore.Metadata{
		{Name: "Left Eye", Category: "face", CharacterName: "Alice", ZIndex: 2},
		{Name: "right eye", Category: "face", CharacterName: "alice_v2", ZIndex: 3},
		{Name: "Hat", Category: "props", CharacterName: "Bob", ZIndex: 2},
		{Name: "100%_done", Category: "props", CharacterName: "Bob"},
	}
	fps := make([]string, len(rows))
	for i, meta := range rows {
		fps[i] = testsupport.FP(byte(10+i), 64)
		meta.FilePath = "assets/" + fps[i] + ".png"
		if _, _, err := store.UpsertFromDecomposition(ctx, fps[i], meta); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := store.SoftDelete(ctx, fps[1]); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		filter assetstore.Filter
		want   []string
	}{
		{"default excludes trashed newest first", assetstore.Filter{}, []string{fps[3], fps[2], fps[0]}},
		{"include trashed", assetstore.Filter{IncludeTrashed: true}, []string{fps[3], fps[2], fps[1], fps[0]}},
		{"name substring case-insensitive", assetstore.Filter{Name: "EYE", IncludeTrashed: true}, []string{fps[1], fps[0]}},
		{"category equality", assetstore.Filter{Category: "fac"}, nil},
		{"category", assetstore.Filter{Category: "props"}, []string{fps[3], fps[2]}},
		{"character substring", assetstore.Filter{Character: "ALICE", IncludeTrashed: true}, []string{fps[1], fps[0]}},
		{"z index", assetstore.Filter{ZIndex: &z}, []string{fps[2], fps[0]}},
		{"wildcards are literal", assetstore.Filter{Name: "%_"}, []string{fps[3]}},
		{"limit", assetstore.Filter{Limit: 1}, []string{fps[3]}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.Search(ctx, tc.filter)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d results, want %d", len(got), len(tc.want))
			}
			for i := range tc.want {
				if got[i].Fingerprint != tc.want[i] {
					t.Fatalf("result %d = %s (%s), want %s", i, got[i].Fingerprint, got[i].Name, tc.want[i])
				}
			}
		})
	}

	trash, err := store.ListTrash(ctx)
	if err != nil || len(trash) != 1 || trash[0].Fingerprint != fps[1] {
		t.Fatalf("ListTrash = %v, %v", trash, err)
	}
}

func TestSearchFoldsNonASCII(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	rows := []assetstore.Metadata{
		{Name: "Élan", CharacterName: "Ánh"},
		{Name: "Tóc Mái", CharacterName: "Đức"},
		{Name: "Straße", CharacterName: "Bob"},
	}
	fps := make([]string, len(rows))
	for i, meta := range rows {
		fps[i] = testsupport.FP(byte(40+i), 64)
		meta.FilePath = "assets/" + fps[i] + ".png"
		if _, _, err := store.UpsertFromDecomposition(ctx, fps[i], meta); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		name   string
		filter assetstore.Filter
		want   string
	}{
		{"exact case", assetstore.Filter{Name: "Élan"}, fps[0]},
		{"lower case", assetstore.Filter{Name: "élan"}, fps[0]},
		{"upper case", assetstore.Filter{Name: "ÉLAN"}, fps[0]},
		{"decomposed accent", assetstore.Filter{Name: "E\u0301lan"}, fps[0]},
		{"vietnamese substring", assetstore.Filter{Name: "TÓC"}, fps[1]},
		{"sharp s folds", assetstore.Filter{Name: "STRASSE"}, fps[2]},
		{"character exact", assetstore.Filter{Character: "Ánh"}, fps[0]},
		{"character lower", assetstore.Filter{Character: "đức"}, fps[1]},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.Search(ctx, tc.filter)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(got) != 1 || got[0].Fingerprint != tc.want {
				t.Fatalf("Search(%+v) = %d result(s), want %s", tc.filter, len(got), tc.want)
			}
		})
	}
}

func TestOpenBackfillsFoldedColumns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	fp := testsupport.FP(50, 64)
	if _, _, err := store.UpsertFromDecomposition(ctx, fp, assetstore.Metadata{Name: "Ánh Sáng", CharacterName: "Élan", FilePath: "assets/" + fp + ".png"}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	// Rows written before the folded columns existed carry empty values.
	db, err := sql.Open("sqlite", cfg.Paths.Database)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec(`UPDATE assets SET name_folded = '', character_folded = ''`); err != nil {
		t.Fatalf("clear folded columns: %v", err)
	}
	db.Close()

	reopened := testsupport.MustOpenStore(t, cfg)
	got, err := reopened.Search(ctx, assetstore.Filter{Name: "ánh sáng", Character: "ÉLAN"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Fingerprint != fp {
		t.Fatalf("expected backfilled row to match, got %d result(s)", len(got))
	}
}

func TestOpenRejectsForeignBaseVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.MustOpenStore(t, cfg).Close()

	db, err := sql.Open("sqlite", cfg.Paths.Database)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec(`UPDATE schema_version SET version = 7`); err != nil {
		t.Fatalf("stamp version: %v", err)
	}
	db.Close()

	store, err := assetstore.Open(cfg, nil)
	if err == nil {
		store.Close()
		t.Fatal("expected open to fail on a foreign base version")
	}
	if !errors.Is(err, assetstore.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestSearchPageSizeCap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Search.PageSize = 2
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		testsupport.NewAsset(t, store, testsupport.FP(byte(i), 64), "a")
	}
	got, err := store.Search(ctx, assetstore.Filter{})
	if err != nil || len(got) != 2 {
		t.Fatalf("expected page of 2, got %d (%v)", len(got), err)
	}
	got, err = store.Search(ctx, assetstore.Filter{Limit: 10 * assetstore.MaxPageSize})
	if err != nil || len(got) != 4 {
		t.Fatalf("explicit limit should be honoured up to the cap, got %d (%v)", len(got), err)
	}
}

func TestVersions(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	fp := testsupport.FP(5, 64)
	testsupport.NewAsset(t, store, fp, "arm")

	if _, err := store.AppendVersion(ctx, testsupport.FP(6, 64), fp, "x"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	versions, err := store.ListVersions(ctx, fp)
	if err != nil || len(versions) != 0 {
		t.Fatalf("new asset should have no versions: %v %v", versions, err)
	}
	for i := 0; i < 3; i++ {
		v, err := store.AppendVersion(ctx, fp, testsupport.FP(byte(20+i), 64), filepath.ToSlash("assets/v.png"))
		if err != nil {
			t.Fatal(err)
		}
		if v.Version != i+1 {
			t.Fatalf("version = %d, want %d", v.Version, i+1)
		}
	}
	versions, err = store.ListVersions(ctx, fp)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 3 || versions[0].Version != 3 || versions[2].Version != 1 {
		t.Fatalf("versions should be newest first: %+v", versions)
	}
}

func TestRekeyAndMigrationPrimitives(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	oldFP := testsupport.FP(7, 32)
	newFP := testsupport.FP(7, 64)
	if _, _, err := store.UpsertFromDecomposition(ctx, oldFP, assetstore.Metadata{
		Name: "legacy", FilePath: "assets/" + oldFP + ".png", ThumbnailPath: "thumbnails/" + oldFP + "_thumb.png",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AppendVersion(ctx, oldFP, oldFP, "assets/"+oldFP+".png"); err != nil {
		t.Fatal(err)
	}

	if err := store.Rekey(ctx, oldFP, newFP); err != nil {
		t.Fatalf("Rekey: %v", err)
	}
	asset, err := store.Get(ctx, newFP)
	if err != nil {
		t.Fatal(err)
	}
	if asset.FilePath != "assets/"+newFP+".png" || asset.ThumbnailPath != "thumbnails/"+newFP+"_thumb.png" {
		t.Fatalf("paths not rewritten: %+v", asset)
	}
	if n, err := store.RekeyVersions(ctx, oldFP, newFP); err != nil || n != 1 {
		t.Fatalf("RekeyVersions = %d, %v", n, err)
	}
	if err := store.Rekey(ctx, oldFP, newFP); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("rekey of missing row should be not found, got %v", err)
	}

	other := testsupport.FP(8, 32)
	testsupport.NewAsset(t, store, other, "dup")
	if err := store.Rekey(ctx, other, newFP); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("rekey onto existing row should be invalid state, got %v", err)
	}
	removed, err := store.DeleteByFingerprint(ctx, other)
	if err != nil || !removed {
		t.Fatalf("DeleteByFingerprint = %v, %v", removed, err)
	}

	minimal, err := store.InsertMinimal(ctx, testsupport.FP(9, 64), "migrated_12345678", assetstore.Metadata{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	if minimal.Name != "migrated_12345678" || minimal.FilePath != "assets/"+testsupport.FP(9, 64)+".png" {
		t.Fatalf("unexpected minimal row %+v", minimal)
	}

	all, err := store.ListFingerprints(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[newFP] != assetstore.StateActive {
		t.Fatalf("ListFingerprints = %v", all)
	}
}
