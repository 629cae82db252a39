package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestChatDirIsDeterministicAndCreated(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}

	dir, err := store.ChatDir("-100123")
	if err != nil {
		t.Fatalf("ChatDir error: %v", err)
	}

	if got := filepath.Base(dir); got != "downloads_-100123" {
		t.Fatalf("ChatDir base = %q, want %q", got, "downloads_-100123")
	}
	if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
		t.Fatalf("chat directory missing: %v", statErr)
	}

	again, err := store.ChatDir("-100123")
	if err != nil {
		t.Fatalf("ChatDir second call error: %v", err)
	}
	if again != dir {
		t.Fatalf("ChatDir = %q, want stable %q", again, dir)
	}
}

func TestChatDirNameSanitizes(t *testing.T) {
	if got := ChatDirName(" ../x "); got != "downloads_.._x" {
		t.Fatalf("ChatDirName = %q, want %q", got, "downloads_.._x")
	}
	if got := ChatDirName(""); got != "downloads_unknown" {
		t.Fatalf("ChatDirName empty = %q, want %q", got, "downloads_unknown")
	}
}

func TestResolveRootExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	root, err := ResolveRoot("~/files")
	if err != nil {
		t.Fatalf("ResolveRoot error: %v", err)
	}

	want, err := filepath.EvalSymlinks(filepath.Join(home, "files"))
	if err != nil {
		t.Fatalf("EvalSymlinks error: %v", err)
	}
	if root != want {
		t.Fatalf("ResolveRoot = %q, want %q", root, want)
	}
}

func TestContainRejectsEscapes(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"..", "../x.pdf", "/etc/passwd", "", "."} {
		if _, err := Contain(dir, name); err == nil {
			t.Fatalf("Contain(%q) expected error", name)
		}
	}

	_, err := Contain(dir, "../escape.pdf")
	if CategoryFromError(err) != ErrorOutsideDirectory {
		t.Fatalf("category = %q, want %q", CategoryFromError(err), ErrorOutsideDirectory)
	}
}

func TestContainAcceptsPlainName(t *testing.T) {
	dir := t.TempDir()

	path, err := Contain(dir, "report.pdf")
	if err != nil {
		t.Fatalf("Contain error: %v", err)
	}
	if path != filepath.Join(dir, "report.pdf") {
		t.Fatalf("Contain = %q, want %q", path, filepath.Join(dir, "report.pdf"))
	}
}

func TestStageUploadRemovesFileOnCleanup(t *testing.T) {
	path, cleanup, err := StageUpload(strings.NewReader("https://x.test/a.pdf"), "links.txt")
	if err != nil {
		t.Fatalf("StageUpload error: %v", err)
	}

	if !strings.HasSuffix(path, ".txt") {
		t.Fatalf("staged path = %q, want .txt suffix", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if string(content) != "https://x.test/a.pdf" {
		t.Fatalf("staged content = %q", content)
	}

	cleanup()
	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("staged file still present after cleanup: %v", err)
	}
}
