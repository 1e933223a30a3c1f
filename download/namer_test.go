package download

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestNamerClaimsFreePath(t *testing.T) {
	dir := t.TempDir()
	namer := NewNamer()

	path := namer.Claim(dir, "p", "0")
	if want := filepath.Join(dir, "p_0.jpg"); path != want {
		t.Fatalf("Claim = %q, want %q", path, want)
	}
}

func TestNamerSkipsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"p_0.jpg", "p_0_1.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seed file: %v", err)
		}
	}

	namer := NewNamer()
	path := namer.Claim(dir, "p", "0")
	if want := filepath.Join(dir, "p_0_2.jpg"); path != want {
		t.Fatalf("Claim = %q, want %q", path, want)
	}
}

func TestNamerSkipsInFlightClaims(t *testing.T) {
	dir := t.TempDir()
	namer := NewNamer()

	first := namer.Claim(dir, "p", "0")
	second := namer.Claim(dir, "p", "0")
	if first == second {
		t.Fatalf("two claims returned the same path %q", first)
	}
	if want := filepath.Join(dir, "p_0_1.jpg"); second != want {
		t.Fatalf("second Claim = %q, want %q", second, want)
	}
}

func TestNamerConcurrentClaimsAreUnique(t *testing.T) {
	dir := t.TempDir()
	namer := NewNamer()

	const workers = 16
	paths := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i] = namer.Claim(dir, "p", "0")
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, workers)
	for _, path := range paths {
		if _, dup := seen[path]; dup {
			t.Fatalf("duplicate claimed path %q", path)
		}
		seen[path] = struct{}{}
	}
}
