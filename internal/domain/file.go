package domain

import (
	"io/fs"
	"path"
	"sort"
	"time"
)

// ScanEntry is a single regular file observed while walking one root
type ScanEntry struct {
	// RelPath is the path relative to the scanned root, always slash separated
	RelPath string

	// AbsPath is the native absolute path of the file
	AbsPath string

	// Hash is the hex content digest, empty when hashing failed
	Hash string

	// Size in bytes as observed during the walk
	Size int64
}

// Known reports whether the entry carries a usable hash
func (e ScanEntry) Known() bool {
	return e.Hash != ""
}

// ScanResult maps relative paths to the entries found under one root
type ScanResult map[string]ScanEntry

// Paths returns the relative paths of the result in sorted order
func (r ScanResult) Paths() []string {
	paths := make([]string, 0, len(r))
	for p := range r {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// HashesEqual compares two content hashes.
// An unknown (empty) hash never equals anything, including another unknown.
func HashesEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b
}

// FileType represents the type of a filesystem entry
type FileType int

const (
	FileTypeRegular FileType = iota
	FileTypeDirectory
	FileTypeSymlink
	FileTypeOther
)

// FileInfo represents metadata about a file or directory inside a tree
type FileInfo struct {
	// Path is the slash separated path relative to the tree root
	Path string

	// Type indicates if this is a file, directory, or symlink
	Type FileType

	// Size in bytes (0 for directories)
	Size int64

	// ModTime is the last modification time
	ModTime time.Time

	// Mode holds the permission bits
	Mode fs.FileMode
}

// Name returns the last element of the path
func (f FileInfo) Name() string {
	return path.Base(f.Path)
}

// IsDir returns true if this is a directory
func (f FileInfo) IsDir() bool {
	return f.Type == FileTypeDirectory
}

// IsFile returns true if this is a regular file
func (f FileInfo) IsFile() bool {
	return f.Type == FileTypeRegular
}
