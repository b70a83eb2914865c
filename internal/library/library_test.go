package library_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"atelier/internal/library"
	"atelier/internal/services"
	"atelier/internal/testsupport"
)

func newIndex(t *testing.T) *library.Index {
	t.Helper()
	return library.New(filepath.Join(t.TempDir(), "library.json"), nil)
}

func TestCategoryCRUD(t *testing.T) {
	index := newIndex(t)
	ctx := context.Background()

	if got := index.Get(); got.Categories == nil || len(got.Categories) != 0 {
		t.Fatalf("empty library = %+v", got)
	}

	cat, err := index.CreateCategory(ctx, "Props", 5)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(cat.ID, "cat_") || len(cat.ID) != len("cat_")+8 {
		t.Fatalf("category id = %q", cat.ID)
	}

	name := "Accessories"
	updated, err := index.UpdateCategory(ctx, cat.ID, &name, nil)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Accessories" || updated.ZIndex != 5 {
		t.Fatalf("update = %+v", updated)
	}
	z := 9
	updated, err = index.UpdateCategory(ctx, cat.ID, nil, &z)
	if err != nil || updated.ZIndex != 9 || updated.Name != "Accessories" {
		t.Fatalf("update z = %+v, %v", updated, err)
	}

	if _, err := index.UpdateCategory(ctx, "cat_missing", &name, nil); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := index.CreateCategory(ctx, "  ", 0); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := index.DeleteCategory(ctx, cat.ID); err != nil {
		t.Fatal(err)
	}
	if err := index.DeleteCategory(ctx, cat.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestSubfolders(t *testing.T) {
	index := newIndex(t)
	ctx := context.Background()
	cat, err := index.CreateCategory(ctx, "Faces", 0)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := index.CreateSubfolder(ctx, cat.ID, "Happy"); err != nil {
		t.Fatal(err)
	}
	got, err := index.CreateSubfolder(ctx, cat.ID, "Happy")
	if err != nil {
		t.Fatalf("existing subfolder should be a no-op, got %v", err)
	}
	if len(got.Subfolders) != 1 {
		t.Fatalf("subfolder duplicated: %+v", got.Subfolders)
	}
	if _, err := index.CreateSubfolder(ctx, cat.ID, "Sad"); err != nil {
		t.Fatal(err)
	}

	if _, err := index.RenameSubfolder(ctx, cat.ID, "Happy", "Sad"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("rename onto existing name should be rejected, got %v", err)
	}
	renamed, err := index.RenameSubfolder(ctx, cat.ID, "Happy", "Joyful")
	if err != nil {
		t.Fatal(err)
	}
	if renamed.Subfolders[0].Name != "Joyful" {
		t.Fatalf("rename = %+v", renamed.Subfolders)
	}
	if _, err := index.RenameSubfolder(ctx, cat.ID, "Happy", "X"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	after, err := index.DeleteSubfolder(ctx, cat.ID, "Sad")
	if err != nil || len(after.Subfolders) != 1 {
		t.Fatalf("delete subfolder = %+v, %v", after, err)
	}
	if _, err := index.DeleteSubfolder(ctx, cat.ID, "Sad"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAssetRefs(t *testing.T) {
	index := newIndex(t)
	ctx := context.Background()
	cat, _ := index.CreateCategory(ctx, "Hats", 1)
	if _, err := index.CreateSubfolder(ctx, cat.ID, "Winter"); err != nil {
		t.Fatal(err)
	}
	if _, err := index.CreateSubfolder(ctx, cat.ID, "Summer"); err != nil {
		t.Fatal(err)
	}
	fp := testsupport.FP(1, 64)

	if _, err := index.AddAsset(ctx, cat.ID, "Winter", "beanie", strings.ToUpper(fp)); err != nil {
		t.Fatal(err)
	}
	got, err := index.AddAsset(ctx, cat.ID, "Winter", "beanie copy", fp)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Subfolders[0].Assets) != 1 || got.Subfolders[0].Assets[0].Hash != fp {
		t.Fatalf("duplicate hash should be ignored: %+v", got.Subfolders[0].Assets)
	}
	if _, err := index.AddAsset(ctx, cat.ID, "Summer", "sunhat", fp); err != nil {
		t.Fatal(err)
	}
	if _, err := index.AddAsset(ctx, cat.ID, "Spring", "x", fp); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := index.AddAsset(ctx, cat.ID, "Winter", "x", "not-a-hash"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if counts := index.Fingerprints(); counts[fp] != 2 {
		t.Fatalf("fingerprint count = %v", counts)
	}

	removedFromOne, err := index.RemoveAsset(ctx, cat.ID, "Summer", fp)
	if err != nil || len(removedFromOne.Subfolders[1].Assets) != 0 {
		t.Fatalf("remove asset = %+v, %v", removedFromOne, err)
	}
	if _, err := index.RemoveAsset(ctx, cat.ID, "Summer", fp); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	n, err := index.RemoveFingerprint(ctx, fp)
	if err != nil || n != 1 {
		t.Fatalf("RemoveFingerprint = %d, %v", n, err)
	}
	if counts := index.Fingerprints(); counts[fp] != 0 {
		t.Fatalf("fingerprint still referenced: %v", counts)
	}
}

func TestLibraryFileShape(t *testing.T) {
	index := newIndex(t)
	ctx := context.Background()
	cat, _ := index.CreateCategory(ctx, "Props", 2)
	if _, err := index.CreateSubfolder(ctx, cat.ID, "Misc"); err != nil {
		t.Fatal(err)
	}
	raw, err := index.Raw()
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"categories"`, `"z_index": 2`, `"subfolders"`, `"assets": []`} {
		if !strings.Contains(string(raw), key) {
			t.Fatalf("library file missing %s:\n%s", key, raw)
		}
	}
}
