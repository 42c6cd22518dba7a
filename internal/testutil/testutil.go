package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/Ning0612/filesync/internal/adapter/local"
	"github.com/Ning0612/filesync/internal/domain"
)

// CreateTestFile creates a test file with the given content.
// name may contain slashes; parent directories are created.
func CreateTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create parent dir: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	return path
}

// CreateTree writes every name → content pair below dir
func CreateTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		CreateTestFile(t, dir, name, []byte(content))
	}
}

// ReadTestFile returns the content of a file, failing the test if unreadable
func ReadTestFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// MemTree creates an in-memory tree rooted at root holding the given files
func MemTree(t *testing.T, root string, files map[string]string) (*local.Adapter, afero.Fs) {
	t.Helper()
	return MemTreeOn(t, afero.NewMemMapFs(), root, files)
}

// MemTreeOn creates a tree rooted at root on an existing filesystem
func MemTreeOn(t *testing.T, fsys afero.Fs, root string, files map[string]string) (*local.Adapter, afero.Fs) {
	t.Helper()

	if err := fsys.MkdirAll(root, 0755); err != nil {
		t.Fatalf("failed to create root %s: %v", root, err)
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create parent dir: %v", err)
		}
		if err := afero.WriteFile(fsys, path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}

	tree, err := local.NewWithFs(fsys, root)
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}
	return tree, fsys
}

// SHA256Hex returns the hex SHA-256 digest of s
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Notification is one recorded Notify call
type Notification struct {
	Msg      string
	Tier     domain.Tier
	Category domain.Category
}

// RecordingNotifier stores notifications for assertions
type RecordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

// Notify implements domain.Notifier
func (r *RecordingNotifier) Notify(msg string, tier domain.Tier, category domain.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Msg: msg, Tier: tier, Category: category})
}

// All returns a copy of the recorded notifications
func (r *RecordingNotifier) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// ByCategory returns the messages recorded with the given category
func (r *RecordingNotifier) ByCategory(c domain.Category) []string {
	var out []string
	for _, n := range r.All() {
		if n.Category == c {
			out = append(out, n.Msg)
		}
	}
	return out
}

// ScriptedConfirmer answers prompts from a fixed list and records them.
// When the answers run out it returns Default.
type ScriptedConfirmer struct {
	Answers []bool
	Default bool
	Err     error
	Prompts []string
}

// Confirm implements domain.Confirmer
func (c *ScriptedConfirmer) Confirm(prompt string) (bool, error) {
	c.Prompts = append(c.Prompts, prompt)
	if c.Err != nil {
		return false, c.Err
	}
	if len(c.Answers) == 0 {
		return c.Default, nil
	}
	answer := c.Answers[0]
	c.Answers = c.Answers[1:]
	return answer, nil
}

// SortedKeys returns the keys of a string map in order
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RandomString generates a random string of the given length
func RandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
