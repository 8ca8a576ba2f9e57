package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestResolveQuotedPrefersCurrentDir(t *testing.T) {
	currentDir := t.TempDir()
	searchDir := t.TempDir()
	touch(t, currentDir, "a.h")
	touch(t, searchDir, "a.h")

	r := NewResolver([]SearchDir{{Path: searchDir}}, nil)
	path, dir, isSystem, found := r.Resolve(currentDir, "a.h", false)
	if !found {
		t.Fatal("want found")
	}
	if dir != currentDir {
		t.Fatalf("want resolved dir %q, got %q", currentDir, dir)
	}
	if isSystem {
		t.Fatal("current-dir match must not be system")
	}
	if filepath.Dir(path) != currentDir {
		t.Fatalf("want path under %q, got %q", currentDir, path)
	}
}

func TestResolveAngledSkipsCurrentDir(t *testing.T) {
	currentDir := t.TempDir()
	searchDir := t.TempDir()
	touch(t, currentDir, "a.h")
	touch(t, searchDir, "a.h")

	r := NewResolver([]SearchDir{{Path: searchDir}}, nil)
	_, dir, _, found := r.Resolve(currentDir, "a.h", true)
	if !found {
		t.Fatal("want found")
	}
	if dir != searchDir {
		t.Fatalf("angled include must skip current dir, got %q", dir)
	}
}

func TestResolveUserDirsBeforeSystemDirs(t *testing.T) {
	userDir := t.TempDir()
	systemDir := t.TempDir()
	touch(t, userDir, "a.h")
	touch(t, systemDir, "a.h")

	r := NewResolver([]SearchDir{{Path: userDir}}, []SearchDir{{Path: systemDir, IsSystem: true}})
	_, dir, isSystem, found := r.Resolve(t.TempDir(), "a.h", true)
	if !found {
		t.Fatal("want found")
	}
	if dir != userDir || isSystem {
		t.Fatalf("want user dir match, got dir=%q isSystem=%v", dir, isSystem)
	}
}

func TestResolveFallsBackToSystemDirs(t *testing.T) {
	userDir := t.TempDir()
	systemDir := t.TempDir()
	touch(t, systemDir, "only-system.h")

	r := NewResolver([]SearchDir{{Path: userDir}}, []SearchDir{{Path: systemDir, IsSystem: true}})
	_, dir, isSystem, found := r.Resolve(t.TempDir(), "only-system.h", true)
	if !found {
		t.Fatal("want found")
	}
	if dir != systemDir || !isSystem {
		t.Fatalf("want system dir match, got dir=%q isSystem=%v", dir, isSystem)
	}
}

func TestResolveNotFound(t *testing.T) {
	r := NewResolver(nil, nil)
	_, _, _, found := r.Resolve(t.TempDir(), "nope.h", true)
	if found {
		t.Fatal("want not found")
	}
}
