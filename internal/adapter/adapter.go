package adapter

import (
	"context"
	"io"
	"path"

	"github.com/Ning0612/filesync/internal/domain"
)

// TempPattern names in-flight writes. A file matching it after a run is
// debris from an interrupted copy.
const TempPattern = ".filesync-*.tmp"

// IsTempFile reports whether a basename matches TempPattern
func IsTempFile(name string) bool {
	ok, _ := path.Match(TempPattern, name)
	return ok
}

// Adapter gives rooted access to one directory tree.
// All paths are slash separated and relative to the adapter's root;
// implementations return domain-level errors for consistent error handling.
type Adapter interface {
	// List returns the immediate children of the given directory
	// Returns domain.ErrNotFound if path doesn't exist
	// Returns domain.ErrNotDirectory if path is a file
	List(ctx context.Context, path string) ([]domain.FileInfo, error)

	// Read opens a file for reading
	// Caller is responsible for closing the reader
	// Returns domain.ErrNotFile if path is a directory
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write creates or overwrites a file atomically.
	// Parent directories are created automatically. When attrs is non-nil
	// its permission bits and modification time are applied to the file.
	Write(ctx context.Context, path string, r io.Reader, attrs *domain.FileInfo) error

	// Delete removes a file or empty directory
	// Returns domain.ErrNotFound if path doesn't exist
	Delete(ctx context.Context, path string) error

	// Stat returns metadata for a single path
	// Returns domain.ErrNotFound if path doesn't exist
	Stat(ctx context.Context, path string) (domain.FileInfo, error)

	// Exists checks if a path exists
	Exists(ctx context.Context, path string) (bool, error)

	// Root returns the native root path of the tree
	Root() string

	// Abs returns the native absolute path for a relative path
	Abs(path string) string

	// Close releases any resources held by the adapter
	Close() error
}
