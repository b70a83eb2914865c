package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"atelier/internal/datalock"
	"atelier/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckIndexFile(t *testing.T) {
	dir := t.TempDir()
	missing := CheckIndexFile("idx", filepath.Join(dir, "missing.json"))
	if !missing.Passed {
		t.Fatalf("absent index should pass: %s", missing.Detail)
	}

	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(`{"categories": []}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckIndexFile("idx", good); !r.Passed {
		t.Fatalf("valid index should pass: %s", r.Detail)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"categories": [`), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckIndexFile("idx", bad); r.Passed {
		t.Fatal("corrupt index should fail")
	}
}

func TestCheckHashing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if r := CheckHashing(cfg); !r.Passed {
		t.Fatalf("default hashing should pass: %s", r.Detail)
	}
	cfg.Hashing.Algorithm = "blake3"
	cfg.Hashing.LegacyAlgorithm = "sha256"
	if r := CheckHashing(cfg); r.Passed {
		t.Fatal("same-length algorithms should fail")
	}
}

func TestRunAllWithLockHeld(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	release, err := datalock.Shared(cfg.LockPath())
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	results := RunAll(context.Background(), cfg)
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Data lock" {
		t.Fatalf("expected only the data lock check to fail, got %+v", failed)
	}
}
