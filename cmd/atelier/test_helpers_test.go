package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
)

type cliTestEnv struct {
	baseDir    string
	dataDir    string
	configPath string
}

// setupCLITestEnv isolates HOME and writes a config whose data and log
// directories live under a fresh temp dir.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("ATELIER_DATA_DIR", "")

	env := &cliTestEnv{
		baseDir:    base,
		dataDir:    filepath.Join(base, "data"),
		configPath: filepath.Join(base, "home", ".config", "atelier", "config.toml"),
	}
	writeTestConfig(t, env.configPath, map[string]any{
		"paths":      map[string]any{"data_dir": env.dataDir, "log_dir": filepath.Join(base, "logs")},
		"thumbnails": map[string]any{"max_edge": 16},
		"logging":    map[string]any{"level": "error"},
	})
	return env
}

func writeTestConfig(t *testing.T, path string, tables map[string]any) {
	t.Helper()
	data, err := toml.Marshal(tables)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// runCLI executes a fresh root command and returns stdout and stderr.
func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	root := newRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, output)
	}
}
