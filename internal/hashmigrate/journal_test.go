package hashmigrate

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"atelier/internal/fileutil"
	"atelier/internal/fingerprint"
	"atelier/internal/testsupport"
)

func TestRunResumesJournaledPairs(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	img := testsupport.Solid(2, 2, testsupport.Red)
	old := env.Seed(t, fingerprint.MD5, "red", img)
	newFP, err := fingerprint.New(fingerprint.SHA256).HashImage(img)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	// Simulate a run that stopped after the rename stages.
	path := filepath.Join(env.Config.Paths.DataDir, "migrate-hash.journal.json")
	if err := writeJournal(path, fingerprint.MD5, fingerprint.SHA256, map[string]string{old: newFP}); err != nil {
		t.Fatalf("writeJournal: %v", err)
	}
	if _, err := env.Pool.Rename(old, newFP); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := env.Pool.RenameThumbnail(old, newFP); err != nil {
		t.Fatalf("rename thumbnail: %v", err)
	}

	m := New(env.Store, env.Pool, env.Characters, env.Library, nil, WithJournal(path))
	report, err := m.Run(ctx, Options{From: fingerprint.MD5, To: fingerprint.SHA256})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Scanned != 0 || report.Resumed != 1 || report.RowsRekeyed != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	chars, err := env.Characters.Raw()
	if err != nil {
		t.Fatalf("raw: %v", err)
	}
	if bytes.Contains(chars, []byte(old)) {
		t.Fatal("character index still references the old fingerprint")
	}
	if fileutil.Exists(path) {
		t.Fatal("journal should be removed after a clean run")
	}
}

func TestReadJournalIgnoresOtherAlgorithms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	if err := writeJournal(path, fingerprint.MD5, fingerprint.BLAKE3, map[string]string{"a": "b"}); err != nil {
		t.Fatalf("writeJournal: %v", err)
	}
	pairs, err := readJournal(path, fingerprint.MD5, fingerprint.SHA256)
	if err != nil {
		t.Fatalf("readJournal: %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("expected no pairs, got %v", pairs)
	}
}
