package diff

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/Ning0612/filesync/internal/domain"
)

func entry(path, hash string) domain.ScanEntry {
	return domain.ScanEntry{RelPath: path, AbsPath: "/x/" + path, Hash: hash}
}

func scan(entries ...domain.ScanEntry) domain.ScanResult {
	r := make(domain.ScanResult)
	for _, e := range entries {
		r[e.RelPath] = e
	}
	return r
}

func TestHashComparer_FilesIdentical(t *testing.T) {
	c := NewHashComparer()
	src := entry("a.txt", "abc")
	tgt := entry("a.txt", "abc")

	if result := c.Compare(&src, &tgt); result != FilesIdentical {
		t.Errorf("Expected FilesIdentical, got %v", result)
	}
}

func TestHashComparer_FileModified(t *testing.T) {
	c := NewHashComparer()
	src := entry("a.txt", "abc")
	tgt := entry("a.txt", "def")

	if result := c.Compare(&src, &tgt); result != FileModified {
		t.Errorf("Expected FileModified, got %v", result)
	}
}

func TestHashComparer_UnknownNeverMatches(t *testing.T) {
	c := NewHashComparer()
	tests := []struct {
		name     string
		src, tgt string
	}{
		{"unknown source", "", "abc"},
		{"unknown target", "abc", ""},
		{"both unknown", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := entry("a.txt", tt.src)
			tgt := entry("a.txt", tt.tgt)
			if result := c.Compare(&src, &tgt); result != FileModified {
				t.Errorf("Expected FileModified, got %v", result)
			}
		})
	}
}

func TestHashComparer_OnlyInSource(t *testing.T) {
	src := entry("a.txt", "abc")
	if result := NewHashComparer().Compare(&src, nil); result != FileOnlyInSource {
		t.Errorf("Expected FileOnlyInSource, got %v", result)
	}
}

func TestHashComparer_OnlyInTarget(t *testing.T) {
	tgt := entry("a.txt", "abc")
	if result := NewHashComparer().Compare(nil, &tgt); result != FileOnlyInTarget {
		t.Errorf("Expected FileOnlyInTarget, got %v", result)
	}
}

func TestHashComparer_BothNil(t *testing.T) {
	if result := NewHashComparer().Compare(nil, nil); result != FilesIdentical {
		t.Errorf("Expected FilesIdentical, got %v", result)
	}
}

func TestDiff_Backup(t *testing.T) {
	src := scan(
		entry("new.txt", "n"),
		entry("same.txt", "s"),
		entry("changed.txt", "c1"),
		entry("dir/broken.txt", ""),
	)
	dst := scan(
		entry("same.txt", "s"),
		entry("changed.txt", "c2"),
		entry("dir/broken.txt", "b"),
		entry("old.txt", "o"),
		entry("dir/old2.txt", "o2"),
	)

	summary := NewEngine().Diff(src, dst, domain.DirectionBackup)

	if summary.SourceCount != 4 || summary.DestinationCount != 5 {
		t.Errorf("counts = %d/%d, want 4/5", summary.SourceCount, summary.DestinationCount)
	}
	if want := []string{"new.txt"}; !reflect.DeepEqual(summary.New, want) {
		t.Errorf("New = %v, want %v", summary.New, want)
	}
	if want := []string{"changed.txt", "dir/broken.txt"}; !reflect.DeepEqual(summary.Modified, want) {
		t.Errorf("Modified = %v, want %v", summary.Modified, want)
	}
	if want := []string{"dir/old2.txt", "old.txt"}; !reflect.DeepEqual(summary.Deleted, want) {
		t.Errorf("Deleted = %v, want %v", summary.Deleted, want)
	}
	if summary.Changes() != 5 {
		t.Errorf("Changes() = %d, want 5", summary.Changes())
	}
}

func TestDiff_RestoreNeverDeletes(t *testing.T) {
	src := scan(entry("a.txt", "a"))
	dst := scan(entry("a.txt", "a"), entry("extra.txt", "e"))

	summary := NewEngine().Diff(src, dst, domain.DirectionRestore)

	if len(summary.Deleted) != 0 {
		t.Errorf("restore produced deletions: %v", summary.Deleted)
	}
	if summary.DestinationCount != 2 {
		t.Errorf("DestinationCount = %d, want 2", summary.DestinationCount)
	}
}

func TestDiff_EmptyScans(t *testing.T) {
	summary := NewEngine().Diff(domain.ScanResult{}, domain.ScanResult{}, domain.DirectionBackup)

	if summary.Changes() != 0 || summary.New == nil || summary.Modified == nil || summary.Deleted == nil {
		t.Errorf("unexpected summary for empty scans: %+v", summary)
	}
}

// TestClassify_Exhaustive checks every path lands in exactly one class and
// identical paths are exactly those with equal known hashes.
func TestClassify_Exhaustive(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	hashes := []string{"", "h1", "h2"}

	for round := 0; round < 50; round++ {
		src, dst := domain.ScanResult{}, domain.ScanResult{}
		for i := 0; i < 20; i++ {
			path := fmt.Sprintf("f%d", i)
			switch rng.Intn(3) {
			case 0:
				src[path] = entry(path, hashes[rng.Intn(3)])
			case 1:
				dst[path] = entry(path, hashes[rng.Intn(3)])
			default:
				src[path] = entry(path, hashes[rng.Intn(3)])
				dst[path] = entry(path, hashes[rng.Intn(3)])
			}
		}

		engine := NewEngine()
		classes := engine.Classify(src, dst)
		summary := engine.Diff(src, dst, domain.DirectionBackup)

		seen := make(map[string]int)
		for _, list := range [][]string{summary.New, summary.Modified, summary.Deleted} {
			for _, p := range list {
				seen[p]++
			}
		}

		for path, class := range classes {
			s, inSrc := src[path]
			d, inDst := dst[path]
			identical := inSrc && inDst && s.Hash != "" && s.Hash == d.Hash

			if (class == FilesIdentical) != identical {
				t.Fatalf("round %d: %s classified %v, identical=%v", round, path, class, identical)
			}
			if identical && seen[path] != 0 {
				t.Fatalf("round %d: unchanged %s appears in summary", round, path)
			}
			if !identical && seen[path] != 1 {
				t.Fatalf("round %d: %s appears %d times in summary", round, path, seen[path])
			}
		}
	}
}
