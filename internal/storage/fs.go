// Package storage provides the local and object-store locations that
// conversion inputs are read from and outputs are published to.
package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/justapithecus/colbench/colbench"
)

// FS implements colbench.Store using the local filesystem.
//
// Put and Publish replace existing files atomically by renaming a
// temporary file created in the destination directory.
type FS struct {
	root string
}

// NewFS creates a filesystem-backed Store rooted at the given directory.
// The directory must exist.
func NewFS(root string) (*FS, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "open", Path: root, Err: errors.New("not a directory")}
	}
	return &FS{root: root}, nil
}

// Put writes data to the given path, replacing any existing file.
// Returns ErrInvalidPath if the path would escape the storage root or is empty.
func (f *FS) Put(_ context.Context, path string, r io.Reader) error {
	fullPath, err := f.safePathForFile(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".colbench-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fullPath)
}

// Publish moves the local file at src to path, replacing any existing file.
// Files on another device are copied instead.
func (f *FS) Publish(ctx context.Context, path, src string) error {
	fullPath, err := f.safePathForFile(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, fullPath); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	return f.Put(ctx, path, in)
}

// Get retrieves data from the given path.
// Returns ErrNotFound if the path does not exist.
// Returns ErrInvalidPath if the path would escape the storage root or is empty.
func (f *FS) Get(_ context.Context, path string) (io.ReadCloser, error) {
	fullPath, err := f.safePathForFile(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, colbench.ErrNotFound
		}
		return nil, err
	}
	return file, nil
}

// Exists checks whether a path exists.
// Returns ErrInvalidPath if the path would escape the storage root or is empty.
func (f *FS) Exists(_ context.Context, path string) (bool, error) {
	fullPath, err := f.safePathForFile(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(fullPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Delete removes the path if it exists.
// Safe to call on a missing path (idempotent).
// Returns ErrInvalidPath if the path would escape the storage root or is empty.
func (f *FS) Delete(_ context.Context, path string) error {
	fullPath, err := f.safePathForFile(path)
	if err != nil {
		return err
	}
	err = os.Remove(fullPath)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// LocalPath returns the filesystem path of a store path.
func (f *FS) LocalPath(path string) (string, error) {
	return f.safePathForFile(path)
}

// safePathForFile validates and resolves a file path, ensuring it stays within the root.
// Rejects empty path and "." since those would target the root directory itself.
//
// Note: This does not prevent symlink escapes.
func (f *FS) safePathForFile(path string) (string, error) {
	cleaned := filepath.Clean(path)

	if cleaned == "." || path == "" {
		return "", colbench.ErrInvalidPath
	}
	if filepath.IsAbs(cleaned) {
		return "", colbench.ErrInvalidPath
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", colbench.ErrInvalidPath
	}

	fullPath := filepath.Join(f.root, cleaned)

	absRoot, err := filepath.Abs(f.root)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}

	// Path must be strictly under root (not equal to root)
	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", colbench.ErrInvalidPath
	}

	return fullPath, nil
}

var _ colbench.Store = (*FS)(nil)
