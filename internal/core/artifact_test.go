package core

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestArtifactStore_AllocateWriteRelease(t *testing.T) {
	dir := t.TempDir()
	store := NewArtifactStore(context.Background(), dir)

	a, err := store.Allocate()
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if filepath.Dir(a.Path) != dir {
		t.Errorf("artifact dir = %q, want %q", filepath.Dir(a.Path), dir)
	}
	if _, err := os.Stat(a.Path); !os.IsNotExist(err) {
		t.Errorf("allocated slot exists before Write (stat err = %v)", err)
	}

	if err := store.Write(a, []byte("png")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got, _ := os.ReadFile(a.Path); string(got) != "png" {
		t.Errorf("artifact content = %q, want %q", got, "png")
	}

	store.Release(a)
	if _, err := os.Stat(a.Path); !os.IsNotExist(err) {
		t.Errorf("artifact still exists after Release")
	}
	if got := store.Outstanding(); got != 0 {
		t.Errorf("Outstanding() = %d, want 0", got)
	}
}

func TestArtifactStore_UniqueNames(t *testing.T) {
	store := NewArtifactStore(context.Background(), t.TempDir())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		a, err := store.Allocate()
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		if seen[a.Path] {
			t.Fatalf("duplicate artifact path %s", a.Path)
		}
		seen[a.Path] = true
	}
}

func TestArtifactStore_ReleaseIsIdempotent(t *testing.T) {
	store := NewArtifactStore(context.Background(), t.TempDir())

	a, _ := store.Allocate()
	if err := store.Write(a, []byte("x")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	store.Release(a)
	store.Release(a)

	if got := store.ReleaseAll(); got != 0 {
		t.Errorf("ReleaseAll() after Release = %d, want 0", got)
	}
}

func TestArtifactStore_ReleaseSwallowsFailures(t *testing.T) {
	store := NewArtifactStore(context.Background(), t.TempDir())

	written, _ := store.Allocate()
	if err := store.Write(written, []byte("x")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	// Allocated but never written: the delete finds nothing.
	store.Allocate()
	// Removed behind the store's back.
	gone, _ := store.Allocate()
	store.Write(gone, []byte("y"))
	os.Remove(gone.Path)

	if got := store.ReleaseAll(); got != 3 {
		t.Errorf("ReleaseAll() = %d, want 3", got)
	}
	if got := store.Outstanding(); got != 0 {
		t.Errorf("Outstanding() = %d, want 0", got)
	}
}

func TestArtifactStore_WriteFailure(t *testing.T) {
	store := NewArtifactStore(context.Background(), filepath.Join(t.TempDir(), "missing"))

	a, err := store.Allocate()
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if err := store.Write(a, []byte("x")); err == nil {
		t.Fatal("Write() into missing dir error = nil")
	}
	if err := store.Write(Artifact{}, []byte("x")); err == nil {
		t.Fatal("Write() with zero artifact error = nil")
	}
}

func TestArtifactStore_ConcurrentAccounting(t *testing.T) {
	dir := t.TempDir()
	store := NewArtifactStore(context.Background(), dir)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := store.Allocate()
			if err != nil {
				t.Errorf("Allocate() error = %v", err)
				return
			}
			if err := store.Write(a, []byte("x")); err != nil {
				t.Errorf("Write() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := store.Allocated(); got != 32 {
		t.Errorf("Allocated() = %d, want 32", got)
	}
	if got := store.ReleaseAll(); got != 32 {
		t.Errorf("ReleaseAll() = %d, want 32", got)
	}
	assertDirEmpty(t, dir)
}

func TestArtifactStore_ReleaseIgnoresForeignHandles(t *testing.T) {
	dir := t.TempDir()
	owner := NewArtifactStore(context.Background(), dir)
	other := NewArtifactStore(context.Background(), dir)

	a, _ := owner.Allocate()
	if err := owner.Write(a, []byte("x")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	other.Release(a)
	other.Release(Artifact{ID: "unknown", Path: filepath.Join(dir, "unknown.png")})

	if _, err := os.Stat(a.Path); err != nil {
		t.Errorf("foreign Release removed the file: %v", err)
	}
	if got := other.Outstanding(); got != 0 {
		t.Errorf("other.Outstanding() = %d, want 0", got)
	}
	if got := other.Released(); got != 0 {
		t.Errorf("other.Released() = %d, want 0", got)
	}
	if got := owner.Outstanding(); got != 1 {
		t.Errorf("owner.Outstanding() = %d, want 1", got)
	}

	owner.Release(a)
	if got := owner.Released(); got != 1 {
		t.Errorf("owner.Released() = %d, want 1", got)
	}
}
