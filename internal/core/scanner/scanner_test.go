package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Ning0612/filesync/internal/adapter/local"
	"github.com/Ning0612/filesync/internal/core/checksum"
	"github.com/Ning0612/filesync/internal/domain"
	"github.com/Ning0612/filesync/internal/hashdb"
	"github.com/Ning0612/filesync/internal/testutil"
)

func newScanner(notifier domain.Notifier, opts Options) *Scanner {
	return New(checksum.NewHasher(checksum.NewCalculator(checksum.Options{}), checksum.SHA256), notifier, opts)
}

func TestScan_NestedFiles(t *testing.T) {
	tree, _ := testutil.MemTree(t, "/src", map[string]string{
		"a.txt":         "hi",
		"dir/b.txt":     "bee",
		"dir/sub/c.txt": "sea",
	})

	result, err := newScanner(nil, Options{}).Scan(context.Background(), tree, hashdb.New(), "src")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []string{"a.txt", "dir/b.txt", "dir/sub/c.txt"}
	if got := result.Paths(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Paths() = %v, want %v", got, want)
	}

	entry := result["dir/sub/c.txt"]
	if entry.Hash != testutil.SHA256Hex("sea") {
		t.Errorf("hash = %s, want %s", entry.Hash, testutil.SHA256Hex("sea"))
	}
	if entry.AbsPath != filepath.Join("/src", "dir", "sub", "c.txt") {
		t.Errorf("AbsPath = %s", entry.AbsPath)
	}
	if entry.Size != 3 {
		t.Errorf("Size = %d, want 3", entry.Size)
	}
}

func TestScan_SkipsDatabaseFile(t *testing.T) {
	tree, _ := testutil.MemTree(t, "/src", map[string]string{
		"a.txt":                         "hi",
		hashdb.DefaultFilename:          "{}",
		"dir/" + hashdb.DefaultFilename: "{}",
	})

	result, err := newScanner(nil, Options{}).Scan(context.Background(), tree, hashdb.New(), "src")
	if err != nil {
		t.Fatal(err)
	}
	if got := result.Paths(); !reflect.DeepEqual(got, []string{"a.txt"}) {
		t.Errorf("Paths() = %v", got)
	}
}

func TestScan_CustomDatabaseName(t *testing.T) {
	tree, _ := testutil.MemTree(t, "/src", map[string]string{
		"a.txt":                "hi",
		"hashes.json":          "{}",
		hashdb.DefaultFilename: "{}",
	})

	result, err := newScanner(nil, Options{DBFilename: "hashes.json"}).Scan(context.Background(), tree, hashdb.New(), "src")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{hashdb.DefaultFilename, "a.txt"}
	if got := result.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
}

func TestScan_IgnoredDirectoriesArePruned(t *testing.T) {
	tree, _ := testutil.MemTree(t, "/src", map[string]string{
		"keep.txt":            "k",
		".git/HEAD":           "ref",
		".git/objects/ab/cd":  "blob",
		"nested/.git/config":  "cfg",
		"nested/file.txt":     "f",
		"node_modules/x/y.js": "js",
		"git/notignored.txt":  "n",
	})

	s := newScanner(nil, Options{IgnoreDirs: []string{".git", "node_modules"}})
	result, err := s.Scan(context.Background(), tree, hashdb.New(), "src")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"git/notignored.txt", "keep.txt", "nested/file.txt"}
	if got := result.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
}

func TestScan_IgnoreMatchesDirectoriesOnly(t *testing.T) {
	tree, _ := testutil.MemTree(t, "/src", map[string]string{
		"build": "a file named like an ignored dir",
	})

	result, err := newScanner(nil, Options{IgnoreDirs: []string{"build"}}).Scan(context.Background(), tree, hashdb.New(), "src")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := result["build"]; !ok {
		t.Error("regular file named like an ignored directory should be scanned")
	}
}

func TestScan_CacheHitIsTrusted(t *testing.T) {
	tree, _ := testutil.MemTree(t, "/src", map[string]string{
		"a.txt": "changed content",
		"b.txt": "bee",
	})

	cache := hashdb.Cache{
		"a.txt": "stale-hash",
		"b.txt": "",
	}

	result, err := newScanner(nil, Options{}).Scan(context.Background(), tree, cache, "src")
	if err != nil {
		t.Fatal(err)
	}

	if result["a.txt"].Hash != "stale-hash" {
		t.Errorf("cached hash not reused: %s", result["a.txt"].Hash)
	}
	if result["b.txt"].Hash != testutil.SHA256Hex("bee") {
		t.Errorf("empty cache entry should be re-hashed, got %s", result["b.txt"].Hash)
	}
	if cache["b.txt"] != "" {
		t.Error("scan must not mutate the cache")
	}
}

func TestScan_ParallelMatchesSequential(t *testing.T) {
	files := make(map[string]string)
	for i := 0; i < 50; i++ {
		files[fmt.Sprintf("d%d/f%02d.txt", i%5, i)] = strings.Repeat("x", i)
	}
	tree, _ := testutil.MemTree(t, "/src", files)
	ctx := context.Background()

	seq, err := newScanner(nil, Options{Workers: 1}).Scan(ctx, tree, hashdb.New(), "src")
	if err != nil {
		t.Fatal(err)
	}
	par, err := newScanner(nil, Options{Workers: 8}).Scan(ctx, tree, hashdb.New(), "src")
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(seq, par) {
		t.Error("parallel scan differs from sequential scan")
	}
}

func TestScan_PerFileNotifications(t *testing.T) {
	tree, _ := testutil.MemTree(t, "/dst", map[string]string{
		"a.txt":     "a",
		"dir/b.txt": "b",
	})
	rec := &testutil.RecordingNotifier{}

	if _, err := newScanner(rec, Options{}).Scan(context.Background(), tree, hashdb.New(), "dest"); err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, n := range rec.All() {
		if n.Tier != domain.TierDetailed {
			t.Errorf("notification %q at tier %d, want detailed", n.Msg, n.Tier)
		}
		got = append(got, n.Msg)
	}
	want := []string{"[scan dest] a.txt", "[scan dest] dir/b.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("notifications = %v, want %v", got, want)
	}
}

func TestScan_EmptyTree(t *testing.T) {
	tree, _ := testutil.MemTree(t, "/empty", nil)

	result, err := newScanner(nil, Options{}).Scan(context.Background(), tree, hashdb.New(), "src")
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 0 {
		t.Errorf("expected empty result, got %v", result)
	}
}

func TestScan_RootRemoved(t *testing.T) {
	tree, fsys := testutil.MemTree(t, "/src", map[string]string{"a.txt": "a"})
	fsys.RemoveAll("/src")

	_, err := newScanner(nil, Options{}).Scan(context.Background(), tree, hashdb.New(), "src")
	if err == nil {
		t.Fatal("expected error when the root disappears")
	}
}

func TestScan_Cancelled(t *testing.T) {
	tree, _ := testutil.MemTree(t, "/src", map[string]string{"a.txt": "a", "d/b.txt": "b"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newScanner(nil, Options{}).Scan(ctx, tree, hashdb.New(), "src"); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestScan_UnreadableFileGetsUnknownHash(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	dir := t.TempDir()
	testutil.CreateTestFile(t, dir, "ok.txt", []byte("ok"))
	locked := testutil.CreateTestFile(t, dir, "locked.txt", []byte("secret"))
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(locked, 0644)

	tree, err := local.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	rec := &testutil.RecordingNotifier{}

	result, err := newScanner(rec, Options{}).Scan(context.Background(), tree, hashdb.New(), "src")
	if err != nil {
		t.Fatalf("per-file failure must not abort the scan: %v", err)
	}

	if result["locked.txt"].Known() {
		t.Error("unreadable file should carry an unknown hash")
	}
	if !result["ok.txt"].Known() {
		t.Error("readable file should be hashed")
	}
	if errs := rec.ByCategory(domain.CategoryError); len(errs) != 1 || !strings.HasPrefix(errs[0], "[!] Error hashing") {
		t.Errorf("error notifications = %v", errs)
	}
}

func TestScan_SkipsTempDebris(t *testing.T) {
	tree, _ := testutil.MemTree(t, "/src", map[string]string{
		"a.txt":                       "a",
		".filesync-123456.tmp":        "partial",
		"dir/.filesync-987.tmp":       "partial",
		"dir/.filesync-notes.txt":     "kept",
		"dir/real.filesync-1.tmp.bak": "kept",
	})

	result, err := newScanner(nil, Options{}).Scan(context.Background(), tree, hashdb.New(), "src")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.txt", "dir/.filesync-notes.txt", "dir/real.filesync-1.tmp.bak"}
	if got := result.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
}

func TestScan_FollowsLinksToFiles(t *testing.T) {
	outside := t.TempDir()
	real := testutil.CreateTestFile(t, outside, "real.txt", []byte("linked content"))
	if err := os.Mkdir(filepath.Join(outside, "somedir"), 0755); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	testutil.CreateTestFile(t, dir, "a.txt", []byte("a"))
	links := map[string]string{
		"link.txt":   real,
		"dirlink":    filepath.Join(outside, "somedir"),
		"broken.txt": filepath.Join(outside, "missing.txt"),
	}
	for name, target := range links {
		if err := os.Symlink(target, filepath.Join(dir, name)); err != nil {
			t.Skipf("symlinks not supported: %v", err)
		}
	}

	tree, err := local.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	rec := &testutil.RecordingNotifier{}

	result, err := newScanner(rec, Options{}).Scan(context.Background(), tree, hashdb.New(), "src")
	if err != nil {
		t.Fatal(err)
	}

	if got := result.Paths(); !reflect.DeepEqual(got, []string{"a.txt", "link.txt"}) {
		t.Fatalf("Paths() = %v", got)
	}
	entry := result["link.txt"]
	if entry.Hash != testutil.SHA256Hex("linked content") {
		t.Errorf("link should be hashed through its target, got %s", entry.Hash)
	}
	if entry.Size != int64(len("linked content")) {
		t.Errorf("Size = %d, want target size", entry.Size)
	}

	var skipped []string
	for _, n := range rec.All() {
		if strings.HasPrefix(n.Msg, "[!] Skipped") {
			if n.Tier != domain.TierNormal {
				t.Errorf("%q at tier %d, want normal", n.Msg, n.Tier)
			}
			skipped = append(skipped, n.Msg)
		}
	}
	if len(skipped) != 2 ||
		!strings.Contains(strings.Join(skipped, "\n"), "broken.txt: broken symlink") ||
		!strings.Contains(strings.Join(skipped, "\n"), "dirlink: symlink to a directory") {
		t.Errorf("skip notices = %v", skipped)
	}
}
