package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ning0612/filesync/internal/lock"
	"github.com/Ning0612/filesync/internal/testutil"
)

type cli struct {
	dir        string
	configFile string
	stdout     bytes.Buffer
	stderr     bytes.Buffer
}

// newCLI writes a config that keeps logs, history and locks inside the test dir
func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	content := "log:\n" +
		"  file: " + filepath.ToSlash(filepath.Join(dir, "filesync.log")) + "\n" +
		"history:\n" +
		"  dir: " + filepath.ToSlash(filepath.Join(dir, "history")) + "\n" +
		"lock:\n" +
		"  dir: " + filepath.ToSlash(filepath.Join(dir, "locks")) + "\n"
	path := testutil.CreateTestFile(t, dir, "config.yaml", []byte(content))
	return &cli{dir: dir, configFile: path}
}

func (c *cli) run(t *testing.T, stdin string, args ...string) int {
	t.Helper()
	c.stdout.Reset()
	c.stderr.Reset()
	args = append([]string{"--config", c.configFile}, args...)
	return execute(context.Background(), args, strings.NewReader(stdin), &c.stdout, &c.stderr)
}

func TestBackup_CopiesAfterConfirmation(t *testing.T) {
	c := newCLI(t)
	src, dest := t.TempDir(), t.TempDir()
	testutil.CreateTree(t, src, map[string]string{"a.txt": "hi"})

	code := c.run(t, "y\n", "--src", src, "--dest", dest)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, c.stderr.String())
	}

	out := c.stdout.String()
	for _, want := range []string{
		"[=] Backing up from source: " + src,
		"  -> to backup: " + dest,
		"=== SCAN SUMMARY ===",
		"New files:         1",
		"[?] Proceed with sync? [y/n]: ",
		"[✓] Sync complete. Hash DBs updated.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if got := testutil.ReadTestFile(t, filepath.Join(dest, "a.txt")); got != "hi" {
		t.Errorf("dest a.txt = %q", got)
	}
}

func TestBackup_DeclinedLeavesDestination(t *testing.T) {
	c := newCLI(t)
	src, dest := t.TempDir(), t.TempDir()
	testutil.CreateTree(t, src, map[string]string{"a.txt": "hi"})

	if code := c.run(t, "n\n", "--src", src, "--dest", dest); code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(c.stdout.String(), "[=] Sync cancelled.") {
		t.Errorf("missing cancel notice:\n%s", c.stdout.String())
	}
	if _, err := os.Stat(filepath.Join(dest, "a.txt")); !os.IsNotExist(err) {
		t.Error("declined sync must not copy")
	}
}

func TestScanOnly(t *testing.T) {
	c := newCLI(t)
	src, dest := t.TempDir(), t.TempDir()
	testutil.CreateTree(t, src, map[string]string{"a.txt": "hi"})

	if code := c.run(t, "", "--src", src, "--dest", dest, "--scan"); code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(c.stdout.String(), "[=] Scan-only mode: no changes applied.") {
		t.Errorf("missing scan-only notice:\n%s", c.stdout.String())
	}
	if _, err := os.Stat(filepath.Join(dest, "a.txt")); !os.IsNotExist(err) {
		t.Error("scan must not copy")
	}
}

func TestRestore_Banner(t *testing.T) {
	c := newCLI(t)
	src, dest := t.TempDir(), t.TempDir()
	testutil.CreateTree(t, dest, map[string]string{"a.txt": "A"})

	if code := c.run(t, "", "--src", src, "--dest", dest, "--restore", "--yes"); code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, c.stderr.String())
	}
	out := c.stdout.String()
	if !strings.Contains(out, "[=] Restoring from backup: "+dest) ||
		!strings.Contains(out, "[*] Running in RESTORE mode") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if got := testutil.ReadTestFile(t, filepath.Join(src, "a.txt")); got != "A" {
		t.Errorf("src a.txt = %q", got)
	}
}

func TestMissingRoots(t *testing.T) {
	c := newCLI(t)
	existing := t.TempDir()
	missing := filepath.Join(t.TempDir(), "missing")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"source", []string{"--src", missing, "--dest", existing}, "[!] Source folder does not exist: " + missing},
		{"backup", []string{"--src", existing, "--dest", missing}, "[!] Backup folder does not exist: " + missing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := c.run(t, "", tt.args...); code != exitFailure {
				t.Errorf("exit code = %d, want %d", code, exitFailure)
			}
			out := c.stdout.String()
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
			if strings.Contains(out, "SCAN SUMMARY") || strings.Contains(out, "Backing up") {
				t.Errorf("nothing should run after a missing root:\n%s", out)
			}
		})
	}
}

func TestRequiredFlags(t *testing.T) {
	c := newCLI(t)
	dir := t.TempDir()

	if code := c.run(t, "", "--dest", dir); code != exitFailure {
		t.Errorf("missing --src: exit code = %d", code)
	}
	if !strings.Contains(c.stderr.String(), "--src is required") {
		t.Errorf("stderr = %q", c.stderr.String())
	}

	if code := c.run(t, "", "--src", dir); code != exitFailure {
		t.Errorf("missing --dest: exit code = %d", code)
	}
}

func TestInvalidAlgorithmFlag(t *testing.T) {
	c := newCLI(t)
	src, dest := t.TempDir(), t.TempDir()

	if code := c.run(t, "", "--src", src, "--dest", dest, "--algorithm", "md5"); code != exitFailure {
		t.Errorf("exit code = %d, want %d", code, exitFailure)
	}
	if !strings.Contains(c.stderr.String(), "unsupported hash algorithm") {
		t.Errorf("stderr = %q", c.stderr.String())
	}
}

func TestPartialFailureExitCode(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	c := newCLI(t)
	src, dest := t.TempDir(), t.TempDir()
	testutil.CreateTree(t, src, map[string]string{"a.txt": "A", "ro/b.txt": "B"})
	ro := filepath.Join(dest, "ro")
	if err := os.Mkdir(ro, 0555); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	defer os.Chmod(ro, 0755)

	if code := c.run(t, "", "--src", src, "--dest", dest, "--yes"); code != exitPartial {
		t.Errorf("exit code = %d, want %d", code, exitPartial)
	}
}

func TestHistoryCommand(t *testing.T) {
	c := newCLI(t)
	src, dest := t.TempDir(), t.TempDir()
	testutil.CreateTree(t, src, map[string]string{"a.txt": "A"})

	if code := c.run(t, "", "history"); code != exitOK {
		t.Fatalf("history exit code = %d", code)
	}
	if !strings.Contains(c.stdout.String(), "No runs recorded.") {
		t.Errorf("unexpected output: %s", c.stdout.String())
	}

	if code := c.run(t, "", "--src", src, "--dest", dest, "--yes"); code != exitOK {
		t.Fatalf("sync exit code = %d, stderr: %s", code, c.stderr.String())
	}
	if code := c.run(t, "", "--src", src, "--dest", dest, "--scan"); code != exitOK {
		t.Fatalf("scan exit code = %d", code)
	}

	if code := c.run(t, "", "history", "--limit", "5"); code != exitOK {
		t.Fatalf("history exit code = %d", code)
	}
	out := c.stdout.String()
	if !strings.Contains(out, "success (scan)") || !strings.Contains(out, "backup") {
		t.Errorf("unexpected history:\n%s", out)
	}
	if lines := strings.Count(strings.TrimSpace(out), "\n") + 1; lines != 3 {
		t.Errorf("expected header + 2 runs, got %d lines:\n%s", lines, out)
	}

	if code := c.run(t, "", "history", "--limit", "0"); code != exitFailure {
		t.Errorf("--limit 0 exit code = %d", code)
	}
}

func TestBackup_OnlyYProceeds(t *testing.T) {
	c := newCLI(t)
	src, dest := t.TempDir(), t.TempDir()
	testutil.CreateTree(t, src, map[string]string{"a.txt": "hi"})

	if code := c.run(t, "maybe\ny\n", "--src", src, "--dest", dest); code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	out := c.stdout.String()
	if n := strings.Count(out, "[?] Proceed with sync? [y/n]: "); n != 1 {
		t.Errorf("proceed prompt shown %d times:\n%s", n, out)
	}
	if !strings.Contains(out, "[=] Sync cancelled.") {
		t.Errorf("missing cancel notice:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dest, "a.txt")); !os.IsNotExist(err) {
		t.Error("cancelled sync must not copy")
	}
}

func TestBackup_AnnouncesLastSuccess(t *testing.T) {
	c := newCLI(t)
	src, dest := t.TempDir(), t.TempDir()
	testutil.CreateTree(t, src, map[string]string{"a.txt": "hi"})

	if code := c.run(t, "", "--src", src, "--dest", dest, "--yes", "-v", "--no-color"); code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, c.stderr.String())
	}
	if !strings.Contains(c.stdout.String(), "[=] No previous successful sync for this pair.") {
		t.Errorf("first run output:\n%s", c.stdout.String())
	}

	if code := c.run(t, "", "--src", src, "--dest", dest, "--yes", "-v", "--no-color"); code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	out := c.stdout.String()
	if !strings.Contains(out, "[=] Last successful backup: ") {
		t.Errorf("second run output:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("--no-color output contains escape codes:\n%q", out)
	}

	if code := c.run(t, "", "--src", src, "--dest", dest, "--yes"); code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	if strings.Contains(c.stdout.String(), "Last successful") {
		t.Error("last success line should need -v")
	}
}

func TestHistoryCommand_PairFilter(t *testing.T) {
	c := newCLI(t)
	src, destA, destB := t.TempDir(), t.TempDir(), t.TempDir()
	testutil.CreateTree(t, src, map[string]string{"a.txt": "A"})

	for _, dest := range []string{destA, destB, destB} {
		if code := c.run(t, "", "--src", src, "--dest", dest, "--scan"); code != exitOK {
			t.Fatalf("scan exit code = %d", code)
		}
	}

	if code := c.run(t, "", "history", "--src", src, "--dest", destB); code != exitOK {
		t.Fatalf("history exit code = %d, stderr: %s", code, c.stderr.String())
	}
	out := c.stdout.String()
	if lines := strings.Count(strings.TrimSpace(out), "\n") + 1; lines != 3 {
		t.Errorf("expected header + 2 runs, got %d lines:\n%s", lines, out)
	}
	if strings.Contains(out, destA) {
		t.Errorf("other pair listed:\n%s", out)
	}

	if code := c.run(t, "", "history", "--src", src); code != exitFailure {
		t.Errorf("--src without --dest: exit code = %d", code)
	}
}

func writeLiveLock(t *testing.T, lockDir, src, dest string) string {
	t.Helper()
	pairLock, err := lock.New(lockDir, src, dest)
	if err != nil {
		t.Fatalf("lock.New failed: %v", err)
	}
	hostname, _ := os.Hostname()
	data, _ := json.Marshal(lock.Info{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartTime: time.Now(),
		Source:    src,
		Label:     "backup",
	})
	if err := os.WriteFile(pairLock.Path(), data, 0644); err != nil {
		t.Fatalf("write lock failed: %v", err)
	}
	return pairLock.Path()
}

func TestUnlock(t *testing.T) {
	c := newCLI(t)
	src, dest := t.TempDir(), t.TempDir()
	testutil.CreateTree(t, src, map[string]string{"a.txt": "A"})
	lockPath := writeLiveLock(t, filepath.Join(c.dir, "locks"), src, dest)

	if code := c.run(t, "", "--src", src, "--dest", dest, "--yes"); code != exitFailure {
		t.Fatalf("locked sync exit code = %d", code)
	}
	if !strings.Contains(c.stderr.String(), "filesync unlock --force") {
		t.Errorf("missing unlock hint: %s", c.stderr.String())
	}

	if code := c.run(t, "", "unlock", "--src", src, "--dest", dest); code != exitFailure {
		t.Errorf("unlock without --force: exit code = %d", code)
	}
	if !strings.Contains(c.stderr.String(), "pass --force") {
		t.Errorf("stderr = %q", c.stderr.String())
	}
	if _, err := os.Stat(lockPath); err != nil {
		t.Fatal("live lock must survive without --force")
	}

	if code := c.run(t, "", "unlock", "--force", "--src", src, "--dest", dest); code != exitOK {
		t.Fatalf("unlock --force exit code = %d, stderr: %s", code, c.stderr.String())
	}
	if !strings.Contains(c.stdout.String(), "Lock removed: "+lockPath) {
		t.Errorf("stdout = %q", c.stdout.String())
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("lock file should be gone")
	}

	if code := c.run(t, "", "unlock", "--src", src, "--dest", dest); code != exitOK {
		t.Fatalf("second unlock exit code = %d", code)
	}
	if !strings.Contains(c.stdout.String(), "No lock held for this pair.") {
		t.Errorf("stdout = %q", c.stdout.String())
	}

	if code := c.run(t, "", "--src", src, "--dest", dest, "--yes"); code != exitOK {
		t.Errorf("sync after unlock: exit code = %d, stderr: %s", code, c.stderr.String())
	}
}
