// Package workspace manages the temporary directory of one pipeline run.
package workspace

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"lukechampine.com/blake3"
)

const dirPattern = "video-transcriber-*"

// ErrClosed is returned when a closed workspace is used.
var ErrClosed = errors.New("workspace is closed")

// SavedFile describes an upload written into the workspace.
type SavedFile struct {
	Name        string
	Path        string
	Size        int64
	Fingerprint string
}

// Workspace is an ephemeral directory owned by exactly one run.
type Workspace struct {
	dir       string
	removeAll func(path string) error

	mu     sync.Mutex
	closed bool
}

// New creates a fresh directory under root (the OS temp dir when empty).
func New(root string) (*Workspace, error) {
	return NewForTests(root, os.MkdirTemp, os.RemoveAll)
}

// NewForTests creates a workspace with injectable filesystem hooks.
func NewForTests(
	root string,
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
) (*Workspace, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("prepare workspace root: %w", err)
		}
	}
	dir, err := mkdirTemp(root, dirPattern)
	if err != nil {
		return nil, fmt.Errorf("create temporary workspace: %w", err)
	}
	return &Workspace{dir: dir, removeAll: removeAll}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, SanitizeName(name))
}

// SaveUpload copies r into the workspace under the sanitized base name of name
// and fingerprints the content while writing.
func (w *Workspace) SaveUpload(name string, r io.Reader) (SavedFile, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return SavedFile{}, ErrClosed
	}

	clean := SanitizeName(name)
	path := filepath.Join(w.dir, clean)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return SavedFile{}, fmt.Errorf("create upload file: %w", err)
	}

	hasher := blake3.New(32, nil)
	size, copyErr := io.Copy(io.MultiWriter(file, hasher), r)
	closeErr := file.Close()
	if copyErr != nil {
		return SavedFile{}, fmt.Errorf("write upload file: %w", copyErr)
	}
	if closeErr != nil {
		return SavedFile{}, fmt.Errorf("close upload file: %w", closeErr)
	}

	return SavedFile{
		Name:        clean,
		Path:        path,
		Size:        size,
		Fingerprint: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Close removes the directory and everything in it. It is safe to call more than once.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.removeAll(w.dir); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

// SanitizeName reduces a client-supplied file name to a safe base name.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := strings.TrimSpace(filepath.Base(name))
	if base == "" || base == "." || base == ".." || base == "/" {
		return "upload"
	}
	return base
}
