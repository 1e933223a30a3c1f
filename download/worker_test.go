package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fetchpix/fetchpix/models"
)

type fakeSession struct {
	data     map[string][]byte
	fetchErr error
	fetches  int
}

func (f *fakeSession) Open(ctx context.Context, pageURL string) error { return nil }

func (f *fakeSession) QueryMatching(fingerprint string) ([]string, error) { return nil, nil }

func (f *fakeSession) FetchBytes(ctx context.Context, imageURL string) ([]byte, error) {
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.data[imageURL], nil
}

func (f *fakeSession) Close() error { return nil }

type flagCanceller struct {
	set bool
}

func (c *flagCanceller) Cancelled() bool { return c.set }

func descriptor() models.ImageDescriptor {
	return models.ImageDescriptor{
		SourceURL:  "https://cdn.example/000000000001_front.jpg",
		Identifier: "000000000001",
		Suffix:     "front",
	}
}

func TestRunSavesImage(t *testing.T) {
	dir := t.TempDir()
	sess := &fakeSession{data: map[string][]byte{
		"https://cdn.example/000000000001_front.jpg": []byte("jpegbytes"),
	}}

	outcome := Run(context.Background(), sess, NewNamer(), &flagCanceller{}, descriptor(), dir, false)
	if !outcome.Success {
		t.Fatalf("outcome failed: %s", outcome.Error)
	}
	want := filepath.Join(dir, "000000000001_front.jpg")
	if outcome.SavedPath != want {
		t.Fatalf("saved path = %q, want %q", outcome.SavedPath, want)
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != "jpegbytes" {
		t.Fatalf("file contents = %q, %v", data, err)
	}
}

func TestRunPerIdentifierLayout(t *testing.T) {
	dir := t.TempDir()
	sess := &fakeSession{data: map[string][]byte{
		"https://cdn.example/000000000001_front.jpg": []byte("jpegbytes"),
	}}

	outcome := Run(context.Background(), sess, NewNamer(), nil, descriptor(), dir, true)
	if !outcome.Success {
		t.Fatalf("outcome failed: %s", outcome.Error)
	}
	want := filepath.Join(dir, "000000000001", "000000000001_front.jpg")
	if outcome.SavedPath != want {
		t.Fatalf("saved path = %q, want %q", outcome.SavedPath, want)
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	sess := &fakeSession{}

	outcome := Run(context.Background(), sess, NewNamer(), &flagCanceller{set: true}, descriptor(), dir, false)
	if outcome.Success {
		t.Fatalf("expected failure for cancelled download")
	}
	if sess.fetches != 0 {
		t.Fatalf("cancelled download performed %d fetches, want 0", sess.fetches)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("cancelled download wrote %d entries, want 0", len(entries))
	}
}

func TestRunFetchFailure(t *testing.T) {
	dir := t.TempDir()
	sess := &fakeSession{fetchErr: errors.New("connection refused")}

	outcome := Run(context.Background(), sess, NewNamer(), nil, descriptor(), dir, false)
	if outcome.Success {
		t.Fatalf("expected failure for fetch error")
	}
	if !strings.Contains(outcome.Error, "connection refused") {
		t.Fatalf("error %q does not mention the cause", outcome.Error)
	}
}

func TestRunEmptyBodyIsFailure(t *testing.T) {
	dir := t.TempDir()
	sess := &fakeSession{data: map[string][]byte{}}

	outcome := Run(context.Background(), sess, NewNamer(), nil, descriptor(), dir, false)
	if outcome.Success {
		t.Fatalf("expected failure for empty body")
	}
	if !strings.Contains(outcome.Error, "empty") {
		t.Fatalf("error = %q, want empty-body message", outcome.Error)
	}
}

func TestRunCollisionSuffixes(t *testing.T) {
	dir := t.TempDir()
	sess := &fakeSession{data: map[string][]byte{
		"https://cdn.example/000000000001_front.jpg": []byte("jpegbytes"),
	}}
	namer := NewNamer()

	first := Run(context.Background(), sess, namer, nil, descriptor(), dir, false)
	second := Run(context.Background(), sess, namer, nil, descriptor(), dir, false)
	if !first.Success || !second.Success {
		t.Fatalf("outcomes = %+v, %+v", first, second)
	}
	if first.SavedPath == second.SavedPath {
		t.Fatalf("both downloads saved to %q", first.SavedPath)
	}
	if want := filepath.Join(dir, "000000000001_front_1.jpg"); second.SavedPath != want {
		t.Fatalf("second saved path = %q, want %q", second.SavedPath, want)
	}
}

func TestDestination(t *testing.T) {
	root := t.TempDir()
	path, err := Destination(root, "shop.example")
	if err != nil {
		t.Fatalf("destination: %v", err)
	}
	if want := filepath.Join(root, "shop.example"); path != want {
		t.Fatalf("Destination = %q, want %q", path, want)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		t.Fatalf("destination folder missing: %v", err)
	}
}
