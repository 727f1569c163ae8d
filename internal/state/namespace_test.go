// internal/state/namespace_test.go
package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNamespaceStable(t *testing.T) {
	a := Namespace("/home/user/project")
	if a != Namespace("/home/user/project") {
		t.Error("expected namespace to be stable across calls")
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %q", a)
	}
	if a == Namespace("/home/user/project2") {
		t.Error("expected different paths to get different namespaces")
	}
}

func TestNamespaceDirIsPure(t *testing.T) {
	share := t.TempDir()
	dir := NamespaceDir(share, "/work")
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected NamespaceDir not to create %s", dir)
	}
	if want := filepath.Join(share, "sessions", Namespace("/work")); dir != want {
		t.Errorf("expected %s, got %s", want, dir)
	}
}

func TestEnsureNamespaceDirIdempotent(t *testing.T) {
	share := t.TempDir()
	for i := 0; i < 2; i++ {
		dir, err := EnsureNamespaceDir(share, "/work")
		if err != nil {
			t.Fatal(err)
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory at %s: %v", dir, err)
		}
	}
}

func TestCanonicalPath(t *testing.T) {
	dir := t.TempDir()
	got, err := CanonicalPath(filepath.Join(dir, "a", "..", "b") + string(filepath.Separator))
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "b"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
