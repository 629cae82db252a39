package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const chatDirPrefix = "downloads_"

// Store resolves per-chat download directories under one root and keeps
// every written path inside its directory.
type Store struct {
	root string
}

// NewStore resolves root to an absolute path and creates it when missing.
//
// An empty root means the current working directory.
func NewStore(root string) (*Store, error) {
	resolved, err := ResolveRoot(root)
	if err != nil {
		return nil, err
	}

	return &Store{root: resolved}, nil
}

// ResolveRoot normalizes root input, expands "~", and creates the directory.
func ResolveRoot(root string) (string, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		trimmed = "."
	}

	expanded, err := expandHome(trimmed)
	if err != nil {
		return "", err
	}

	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve absolute download root: %w", err)
	}

	cleanPath := filepath.Clean(absPath)
	if err := os.MkdirAll(cleanPath, 0o755); err != nil {
		return "", fmt.Errorf("create download root: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		return "", fmt.Errorf("resolve download root: %w", err)
	}

	return filepath.Clean(resolved), nil
}

// Root returns the absolute download root.
func (s *Store) Root() string {
	if s == nil {
		return ""
	}

	return s.root
}

// ChatDirName returns the deterministic directory name for one chat.
func ChatDirName(chatID string) string {
	name := sanitizeSegment(strings.TrimSpace(chatID))
	if name == "" {
		name = "unknown"
	}

	return chatDirPrefix + name
}

// ChatDir returns the destination directory for chatID, creating it when absent.
// The directory is never removed by fetchbot.
func (s *Store) ChatDir(chatID string) (string, error) {
	if s == nil {
		return "", NewError(ErrorIO, "store is nil")
	}

	dir := filepath.Join(s.root, ChatDirName(chatID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create chat directory: %w", err)
	}

	return dir, nil
}

// Contain joins name onto dir and rejects results that leave dir.
func Contain(dir string, name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", NewError(ErrorInvalidPath, "file name must not be empty")
	}
	if filepath.IsAbs(trimmed) {
		return "", NewError(ErrorOutsideDirectory, "absolute file name")
	}

	cleanDir := filepath.Clean(dir)
	target := filepath.Clean(filepath.Join(cleanDir, trimmed))
	if !isWithin(cleanDir, target) || target == cleanDir {
		return "", NewError(ErrorOutsideDirectory, "file name escapes destination directory")
	}

	return target, nil
}

// StageUpload copies r into a fresh temp file and returns its path with a
// cleanup func that removes it. Cleanup is safe to call more than once.
func StageUpload(r io.Reader, name string) (string, func(), error) {
	pattern := "fetchbot-upload-*"
	if ext := filepath.Ext(sanitizeSegment(name)); ext != "" {
		pattern += ext
	}

	file, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", func() {}, fmt.Errorf("create staging file: %w", err)
	}
	path := file.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("write staging file: %w", err)
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close staging file: %w", err)
	}

	return path, cleanup, nil
}

func sanitizeSegment(value string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, value)
}

func expandHome(path string) (string, error) {
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home, nil
	}

	prefix := "~" + string(filepath.Separator)
	if strings.HasPrefix(path, prefix) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, prefix)), nil
	}

	return path, nil
}

func isWithin(root string, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}

	return !filepath.IsAbs(rel)
}
