package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KilimcininKorOglu/obaidx/internal/config"
	"github.com/KilimcininKorOglu/obaidx/internal/key"
	"github.com/KilimcininKorOglu/obaidx/internal/logging"
	"github.com/KilimcininKorOglu/obaidx/internal/object"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obaidx.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

// =============================================================================
// Root and Version
// =============================================================================

func TestRun_NoArgs(t *testing.T) {
	code, out, _ := runCLI(t)
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.Contains(out, "Usage:") {
		t.Errorf("output = %q, want usage", out)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t, "unknown")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "unknown command") {
		t.Errorf("stderr = %q, want unknown command", stderr)
	}
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.Contains(out, "obaidx version "+version) {
		t.Errorf("output = %q, want version line", out)
	}

	code, out, _ = runCLI(t, "version", "--short")
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if out != version+"\n" {
		t.Errorf("short output = %q, want %q", out, version+"\n")
	}
}

// =============================================================================
// Config
// =============================================================================

func TestRun_ConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obaidx.yaml")

	if code, _, stderr := runCLI(t, "config", "init", "-o", path); code != 0 {
		t.Fatalf("config init exit code = %d, stderr %q", code, stderr)
	}
	if code, _, _ := runCLI(t, "config", "init", "-o", path); code != 1 {
		t.Errorf("config init over existing file exit code = %d, want 1", code)
	}
	if code, _, _ := runCLI(t, "config", "init", "-o", path, "--force"); code != 0 {
		t.Errorf("config init --force exit code = %d, want 0", code)
	}

	code, out, stderr := runCLI(t, "--config", path, "config", "validate")
	if code != 0 {
		t.Fatalf("config validate exit code = %d, stderr %q", code, stderr)
	}
	if !strings.Contains(out, "Configuration is valid") {
		t.Errorf("validate output = %q", out)
	}

	code, out, _ = runCLI(t, "--config", path, "config", "show")
	if code != 0 {
		t.Fatalf("config show exit code = %d", code)
	}
	if !strings.Contains(out, "backend: file") {
		t.Errorf("show output = %q, want backend: file", out)
	}
}

func TestRun_ConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad cursor mode", "index:\n  cursorMode: sometimes\n"},
		{"unknown field", "storage:\n  engine: btree\n"},
		{"bad backend", "storage:\n  backend: tape\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if code, _, _ := runCLI(t, "-c", path, "config", "validate"); code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
		})
	}

	if code, _, _ := runCLI(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"), "config", "validate"); code != 1 {
		t.Errorf("missing file exit code = %d, want 1", code)
	}
}

// =============================================================================
// Storage and Check
// =============================================================================

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  config.StorageConfig
	}{
		{"memory", config.StorageConfig{Backend: config.BackendMemory}},
		{"file", config.StorageConfig{Backend: config.BackendFile, Path: filepath.Join(dir, "data", "index.db"), CachePages: 8}},
		{"pebble", config.StorageConfig{Backend: config.BackendPebble, Path: filepath.Join(dir, "pebble")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openStore(tt.cfg)
			if err != nil {
				t.Fatalf("openStore failed: %v", err)
			}
			defer store.Close()

			id, err := store.Allocate()
			if err != nil {
				t.Fatalf("Allocate failed: %v", err)
			}
			if err := store.Write(id, []byte("page")); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			got, err := store.Read(id)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if string(got) != "page" {
				t.Errorf("Read = %q, want page", got)
			}
		})
	}

	if _, err := openStore(config.StorageConfig{Backend: "tape"}); err == nil {
		t.Error("openStore with unknown backend succeeded")
	}
}

func TestRun_Check(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "storage:\n  backend: file\n  path: "+filepath.Join(dir, "index.db")+"\n")

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	m, err := openManager(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("openManager failed: %v", err)
	}
	ix, err := m.CreateIndex("ages", key.TypeInt32, false)
	if err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}
	for i := int32(0); i < 50; i++ {
		if _, err := ix.Put(key.Int32(i%10), object.NewBlob([]byte{byte(i)})); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	code, out, stderr := runCLI(t, "-c", path, "check")
	if code != 0 {
		t.Fatalf("check exit code = %d, stderr %q", code, stderr)
	}
	if !strings.Contains(out, "ages") || !strings.Contains(out, "1 indexes OK") ||
		!strings.Contains(out, "page cache hit ratio") {
		t.Errorf("check output = %q", out)
	}
}

// =============================================================================
// Bench
// =============================================================================

func TestRun_Bench(t *testing.T) {
	for _, kt := range []string{"int64", "string", "decimal", "guid"} {
		t.Run(kt, func(t *testing.T) {
			code, out, stderr := runCLI(t, "bench", "-n", "500", "-k", kt, "--capacity", "8")
			if code != 0 {
				t.Fatalf("bench exit code = %d, stderr %q", code, stderr)
			}
			for _, phase := range []string{"insert", "lookup", "scan", "rank", "remove", "check"} {
				if !strings.Contains(out, phase) {
					t.Errorf("output missing phase %q:\n%s", phase, out)
				}
			}
			if !strings.Contains(out, "250 entries left") {
				t.Errorf("output = %q, want 250 entries left", out)
			}
		})
	}

	if code, _, _ := runCLI(t, "bench", "-k", "complex"); code != 1 {
		t.Errorf("bench with bad key type exit code = %d, want 1", code)
	}
}
