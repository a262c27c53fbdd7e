package project_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bbtrace/bbtrace/internal/project"
)

func TestSourceCacheLoadsOnceAndServesLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.cpp")
	content := "line one\nline two\nline three\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	c := project.NewSourceCache()

	line, ok, err := c.Line(path, 2)
	if err != nil || !ok || line != "line two" {
		t.Fatalf("got %q, ok=%v, err=%v", line, ok, err)
	}

	// Mutate the file on disk; the cache must keep serving the first read.
	if err := os.WriteFile(path, []byte("replaced\n"), 0o644); err != nil {
		t.Fatalf("rewrite temp file: %v", err)
	}
	line, ok, err = c.Line(path, 1)
	if err != nil || !ok || line != "line one" {
		t.Fatalf("cache did not hold the first read: got %q, ok=%v, err=%v", line, ok, err)
	}
}

func TestSourceCacheOutOfRangeLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.cpp")
	if err := os.WriteFile(path, []byte("only line\n"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	c := project.NewSourceCache()
	if _, ok, err := c.Line(path, 5); err != nil || ok {
		t.Fatalf("expected ok=false for an out-of-range line, got ok=%v, err=%v", ok, err)
	}
	if _, ok, err := c.Line(path, 0); err != nil || ok {
		t.Fatalf("expected ok=false for line 0, got ok=%v, err=%v", ok, err)
	}
}

func TestSourceCacheMissingFile(t *testing.T) {
	c := project.NewSourceCache()
	if _, _, err := c.Line("/nonexistent/file.cpp", 1); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestSourceCacheEvictForcesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.cpp")
	if err := os.WriteFile(path, []byte("v1\n"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	c := project.NewSourceCache()
	if line, _, _ := c.Line(path, 1); line != "v1" {
		t.Fatalf("got %q, want v1", line)
	}

	if err := os.WriteFile(path, []byte("v2\n"), 0o644); err != nil {
		t.Fatalf("rewrite temp file: %v", err)
	}
	c.Evict(path)

	if line, _, _ := c.Line(path, 1); line != "v2" {
		t.Fatalf("got %q, want v2 after evict", line)
	}
}
