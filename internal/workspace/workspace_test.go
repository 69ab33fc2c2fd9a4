package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestSaveUploadWritesAndFingerprints checks content, size, and fingerprint.
func TestSaveUploadWritesAndFingerprints(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer ws.Close()

	saved, err := ws.SaveUpload("clip.mp4", strings.NewReader("video-bytes"))
	if err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}
	if saved.Size != int64(len("video-bytes")) {
		t.Fatalf("size = %d", saved.Size)
	}
	if saved.Path != filepath.Join(ws.Dir(), "clip.mp4") {
		t.Fatalf("path = %q", saved.Path)
	}
	if len(saved.Fingerprint) != 64 {
		t.Fatalf("fingerprint = %q, want 64 hex chars", saved.Fingerprint)
	}

	again, err := ws.SaveUpload("clip.mp4", strings.NewReader("video-bytes"))
	if err != nil {
		t.Fatalf("second SaveUpload() error = %v", err)
	}
	if again.Fingerprint != saved.Fingerprint {
		t.Fatal("fingerprint must be deterministic")
	}

	content, err := os.ReadFile(saved.Path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(content) != "video-bytes" {
		t.Fatalf("content = %q", string(content))
	}
}

// TestSaveUploadStripsDirectories checks path traversal is neutralized.
func TestSaveUploadStripsDirectories(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer ws.Close()

	saved, err := ws.SaveUpload("../../etc/passwd.mp4", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}
	if filepath.Dir(saved.Path) != ws.Dir() {
		t.Fatalf("path = %q escaped workspace %q", saved.Path, ws.Dir())
	}
}

// TestCloseRemovesDirectoryAndIsIdempotent checks cleanup.
func TestCloseRemovesDirectoryAndIsIdempotent(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := ws.SaveUpload("a.mkv", strings.NewReader("x")); err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}

	if err := ws.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(ws.Dir()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("workspace dir still exists, stat err = %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := ws.SaveUpload("b.mkv", strings.NewReader("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("SaveUpload after close error = %v, want ErrClosed", err)
	}
}

// TestNewPropagatesMkdirFailure checks creation errors.
func TestNewPropagatesMkdirFailure(t *testing.T) {
	mkdirTemp := func(dir, pattern string) (string, error) {
		return "", errors.New("disk full")
	}
	_, err := NewForTests("", mkdirTemp, os.RemoveAll)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("error = %v, want disk full", err)
	}
}

// TestCloseRemovesOnlyOnce checks removeAll is called once.
func TestCloseRemovesOnlyOnce(t *testing.T) {
	calls := 0
	ws, err := NewForTests(t.TempDir(), os.MkdirTemp, func(path string) error {
		calls++
		return os.RemoveAll(path)
	})
	if err != nil {
		t.Fatalf("NewForTests() error = %v", err)
	}

	_ = ws.Close()
	_ = ws.Close()
	if calls != 1 {
		t.Fatalf("removeAll calls = %d, want 1", calls)
	}
}

// TestSanitizeName covers degenerate names.
func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"video.mp4":            "video.mp4",
		`C:\Users\me\talk.mov`: "talk.mov",
		"dir/sub/clip.webm":    "clip.webm",
		"":                     "upload",
		"..":                   "upload",
		"  ":                   "upload",
	}
	for in, want := range tests {
		if got := SanitizeName(in); got != want {
			t.Fatalf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
