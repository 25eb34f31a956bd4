package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEncodeDecodeEnvPath(t *testing.T) {
	tests := []struct {
		env     string
		encoded string
	}{
		{"default", "default"},
		{"league/prod", "league__prod"},
		{"org/league/prod", "org__league__prod"},
	}

	for _, tt := range tests {
		if got := EncodeEnvPath(tt.env); got != tt.encoded {
			t.Errorf("EncodeEnvPath(%q) = %q, want %q", tt.env, got, tt.encoded)
		}
		if got := DecodeEnvPath(tt.encoded); got != tt.env {
			t.Errorf("DecodeEnvPath(%q) = %q, want %q", tt.encoded, got, tt.env)
		}
	}
}

func TestEnvDBPath(t *testing.T) {
	path := EnvDBPath("league/prod")

	if filepath.Base(path) != "scorebook.db" {
		t.Errorf("db file = %s, want scorebook.db", filepath.Base(path))
	}
	if !strings.Contains(path, "league__prod") {
		t.Errorf("path %s does not contain encoded environment", path)
	}
	if strings.Contains(filepath.Dir(path), "league/prod") {
		t.Errorf("path %s leaks raw path separators from the environment ID", path)
	}
}

func TestDefaultStoreRootOverride(t *testing.T) {
	t.Setenv("SCOREBOOK_STORE_ROOT", "/tmp/custom-root")

	if got := DefaultStoreRoot(); got != "/tmp/custom-root" {
		t.Errorf("DefaultStoreRoot() = %s, want /tmp/custom-root", got)
	}
	if got := EnvDBPath("league/prod"); !strings.HasPrefix(got, "/tmp/custom-root") {
		t.Errorf("EnvDBPath() = %s, want path under /tmp/custom-root", got)
	}
}

func TestListEnvs(t *testing.T) {
	root := t.TempDir()
	t.Setenv("SCOREBOOK_STORE_ROOT", root)

	for _, dir := range []string{"league__prod", "default", "dev"} {
		if err := os.Mkdir(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	// Stray files in the root are not environments.
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	envs, err := ListEnvs()
	if err != nil {
		t.Fatalf("ListEnvs() error: %v", err)
	}
	if len(envs) != 3 {
		t.Fatalf("ListEnvs() returned %d envs, want 3", len(envs))
	}

	wantIDs := []string{"default", "dev", "league/prod"}
	for i, want := range wantIDs {
		if envs[i].ID != want {
			t.Errorf("envs[%d].ID = %s, want %s", i, envs[i].ID, want)
		}
	}
	if !envs[0].Reserved {
		t.Error("default should be marked reserved")
	}
	if envs[1].Reserved || envs[2].Reserved {
		t.Error("non-reserved environments marked reserved")
	}
	if want := filepath.Join(root, "league__prod", "scorebook.db"); envs[2].Path != want {
		t.Errorf("envs[2].Path = %s, want %s", envs[2].Path, want)
	}
}

func TestListEnvs_MissingRoot(t *testing.T) {
	t.Setenv("SCOREBOOK_STORE_ROOT", filepath.Join(t.TempDir(), "nope"))

	envs, err := ListEnvs()
	if err != nil {
		t.Fatalf("ListEnvs() error: %v", err)
	}
	if envs != nil {
		t.Errorf("ListEnvs() = %v, want nil for a missing root", envs)
	}
}
