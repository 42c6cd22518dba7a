package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"github.com/Ning0612/filesync/internal/adapter"
	"github.com/Ning0612/filesync/internal/domain"
)

// Adapter implements the adapter.Adapter interface on top of an afero filesystem
type Adapter struct {
	fs   afero.Fs
	root string
}

// New creates a new adapter over the operating system filesystem.
// root must be an existing directory; it is converted to an absolute path.
func New(root string) (*Adapter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return NewWithFs(afero.NewOsFs(), absRoot)
}

// NewWithFs creates an adapter rooted at root inside the given filesystem.
// Tests use it with afero.NewMemMapFs.
func NewWithFs(fsys afero.Fs, root string) (*Adapter, error) {
	root = filepath.Clean(root)

	info, err := fsys.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRootNotFound, root)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotDirectory, root)
	}

	return &Adapter{fs: fsys, root: root}, nil
}

// resolvePath safely resolves a relative path to absolute path within root
// Returns error if path attempts to escape root directory
func (a *Adapter) resolvePath(relPath string) (string, error) {
	// Handle empty path as root
	if relPath == "" || relPath == "." {
		return a.root, nil
	}

	relPath = filepath.Clean(filepath.FromSlash(relPath))

	// Reject absolute paths
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: absolute path %s", domain.ErrPermissionDenied, relPath)
	}

	fullPath := filepath.Join(a.root, relPath)

	// Use filepath.Rel to safely verify the path is within root
	// This handles edge cases like root="C:\root" and fullPath="C:\root2"
	rel, err := filepath.Rel(a.root, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes root", domain.ErrPermissionDenied, relPath)
	}

	return fullPath, nil
}

// List returns the immediate children of a directory, sorted by name
func (a *Adapter) List(ctx context.Context, path string) ([]domain.FileInfo, error) {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(a.fs, fullPath)
	if err != nil {
		return nil, a.mapError(err)
	}

	result := make([]domain.FileInfo, 0, len(entries))
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		entryPath := entry.Name()
		if path != "" && path != "." {
			entryPath = strings.TrimSuffix(filepath.ToSlash(path), "/") + "/" + entry.Name()
		}
		result = append(result, a.fileInfoFromOS(entryPath, entry))
	}

	return result, nil
}

// Read opens a file for reading
func (a *Adapter) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return nil, err
	}

	info, err := a.fs.Stat(fullPath)
	if err != nil {
		return nil, a.mapError(err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFile, path)
	}

	file, err := a.fs.Open(fullPath)
	if err != nil {
		return nil, a.mapError(err)
	}

	return file, nil
}

// Write creates or overwrites a file through a temp file and rename.
// Permission bits are applied before close and timestamps after close,
// because closing may bump the modification time.
func (a *Adapter) Write(ctx context.Context, path string, r io.Reader, attrs *domain.FileInfo) error {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return err
	}
	if fullPath == a.root {
		return fmt.Errorf("%w: cannot write to tree root", domain.ErrNotFile)
	}

	dir := filepath.Dir(fullPath)
	if err := a.fs.MkdirAll(dir, 0755); err != nil {
		return a.mapError(err)
	}

	file, err := afero.TempFile(a.fs, dir, adapter.TempPattern)
	if err != nil {
		return a.mapError(err)
	}
	tempPath := file.Name()
	defer func() {
		if tempPath != "" {
			a.fs.Remove(tempPath)
		}
	}()

	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return err
	}

	mode := os.FileMode(0644)
	if attrs != nil {
		mode = attrs.Mode.Perm()
	}
	if err := a.fs.Chmod(tempPath, mode); err != nil {
		file.Close()
		return a.mapError(err)
	}

	if err := file.Close(); err != nil {
		return err
	}

	if attrs != nil && !attrs.ModTime.IsZero() {
		if err := a.fs.Chtimes(tempPath, attrs.ModTime, attrs.ModTime); err != nil {
			return a.mapError(err)
		}
	}

	if err := a.fs.Rename(tempPath, fullPath); err != nil {
		return a.mapError(err)
	}
	tempPath = ""

	return nil
}

// Delete removes a file or empty directory
func (a *Adapter) Delete(ctx context.Context, path string) error {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return err
	}
	if fullPath == a.root {
		return fmt.Errorf("%w: cannot delete tree root", domain.ErrPermissionDenied)
	}

	return a.mapError(a.fs.Remove(fullPath))
}

// Stat returns metadata for a single path
func (a *Adapter) Stat(ctx context.Context, path string) (domain.FileInfo, error) {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return domain.FileInfo{}, err
	}

	info, err := a.fs.Stat(fullPath)
	if err != nil {
		return domain.FileInfo{}, a.mapError(err)
	}

	return a.fileInfoFromOS(filepath.ToSlash(path), info), nil
}

// Exists checks if a path exists
func (a *Adapter) Exists(ctx context.Context, path string) (bool, error) {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return false, err
	}

	return afero.Exists(a.fs, fullPath)
}

// Close releases any resources (no-op for local adapter)
func (a *Adapter) Close() error {
	return nil
}

// Root returns the root path of this adapter
func (a *Adapter) Root() string {
	return a.root
}

// Abs returns the native path of relPath below the root.
// Paths that would escape the root are returned joined but uncleaned.
func (a *Adapter) Abs(relPath string) string {
	fullPath, err := a.resolvePath(relPath)
	if err != nil {
		return a.root + string(filepath.Separator) + relPath
	}
	return fullPath
}

// fileInfoFromOS converts os.FileInfo to domain.FileInfo
func (a *Adapter) fileInfoFromOS(path string, info os.FileInfo) domain.FileInfo {
	fileType := domain.FileTypeRegular
	switch {
	case info.IsDir():
		fileType = domain.FileTypeDirectory
	case info.Mode()&os.ModeSymlink != 0:
		fileType = domain.FileTypeSymlink
	case !info.Mode().IsRegular():
		fileType = domain.FileTypeOther
	}

	return domain.FileInfo{
		Path:    filepath.ToSlash(path),
		Type:    fileType,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Mode:    info.Mode().Perm(),
	}
}

// mapError converts OS errors to domain errors
func (a *Adapter) mapError(err error) error {
	if err == nil {
		return nil
	}

	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	if os.IsPermission(err) {
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	}
	if errors.Is(err, syscall.ENOTDIR) {
		return fmt.Errorf("%w: %v", domain.ErrNotDirectory, err)
	}

	return err
}
