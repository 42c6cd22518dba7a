package diff

import "github.com/Ning0612/filesync/internal/domain"

// DiffResult represents the comparison result between two files
type DiffResult int

const (
	// FilesIdentical indicates both sides hold the same known hash
	FilesIdentical DiffResult = iota
	// FileModified indicates file exists in both but differs or cannot be compared
	FileModified
	// FileOnlyInSource indicates file only exists in source
	FileOnlyInSource
	// FileOnlyInTarget indicates file only exists in target
	FileOnlyInTarget
)

// String returns the string representation of the result
func (r DiffResult) String() string {
	switch r {
	case FilesIdentical:
		return "identical"
	case FileModified:
		return "modified"
	case FileOnlyInSource:
		return "only-in-source"
	case FileOnlyInTarget:
		return "only-in-target"
	default:
		return "unknown"
	}
}

// Comparer compares two scan entries and determines if sync is needed
type Comparer interface {
	// Compare compares source and target entries; either may be nil
	Compare(src, tgt *domain.ScanEntry) DiffResult
}

// HashComparer compares content hashes only.
// Size and mtime are ignored; an unknown hash on either side forces a copy.
type HashComparer struct{}

// NewHashComparer creates a new HashComparer
func NewHashComparer() *HashComparer {
	return &HashComparer{}
}

// Compare implements the Comparer interface
func (c *HashComparer) Compare(src, tgt *domain.ScanEntry) DiffResult {
	switch {
	case src == nil && tgt == nil:
		return FilesIdentical
	case tgt == nil:
		return FileOnlyInSource
	case src == nil:
		return FileOnlyInTarget
	case domain.HashesEqual(src.Hash, tgt.Hash):
		return FilesIdentical
	default:
		return FileModified
	}
}

// Engine classifies every path of two scans
type Engine struct {
	Comparer Comparer
}

// NewEngine creates an engine using hash comparison
func NewEngine() *Engine {
	return &Engine{Comparer: NewHashComparer()}
}

// Diff classifies paths. source is always the logical source, the side whose
// content should end up on the other side; the caller swaps trees for
// restore. Deleted is only filled for backup.
func (e *Engine) Diff(source, destination domain.ScanResult, dir domain.Direction) domain.DiffSummary {
	summary := domain.DiffSummary{
		SourceCount:      len(source),
		DestinationCount: len(destination),
		New:              []string{},
		Modified:         []string{},
		Deleted:          []string{},
	}

	classes := e.Classify(source, destination)
	for _, path := range source.Paths() {
		switch classes[path] {
		case FileOnlyInSource:
			summary.New = append(summary.New, path)
		case FileModified:
			summary.Modified = append(summary.Modified, path)
		}
	}
	if dir.AllowsDelete() {
		for _, path := range destination.Paths() {
			if classes[path] == FileOnlyInTarget {
				summary.Deleted = append(summary.Deleted, path)
			}
		}
	}

	return summary
}

// Classify returns the classification of every path present in either scan.
// Destination-only paths are reported as FileOnlyInTarget regardless of
// direction; Diff decides whether they count as deletions.
func (e *Engine) Classify(source, destination domain.ScanResult) map[string]DiffResult {
	out := make(map[string]DiffResult, len(source)+len(destination))
	for path, srcEntry := range source {
		src := srcEntry
		var tgt *domain.ScanEntry
		if d, ok := destination[path]; ok {
			tgt = &d
		}
		out[path] = e.Comparer.Compare(&src, tgt)
	}
	for path := range destination {
		if _, ok := source[path]; !ok {
			out[path] = FileOnlyInTarget
		}
	}
	return out
}
