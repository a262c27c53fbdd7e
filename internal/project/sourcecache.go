package project

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

// SourceCache lazily loads source files the first time a hit resolves
// against them, and serves individual lines out of memory afterward. It is
// keyed so multiple files can be cached concurrently by the receiver.
type SourceCache struct {
	mu    sync.Mutex
	files map[string][]string
}

// NewSourceCache returns an empty SourceCache.
func NewSourceCache() *SourceCache {
	return &SourceCache{files: make(map[string][]string)}
}

// Line returns the one-based line from path, loading and caching the whole
// file on first access. Line numbers outside the file's range report ok=false.
func (c *SourceCache) Line(path string, line uint32) (string, bool, error) {
	lines, err := c.load(path)
	if err != nil {
		return "", false, err
	}
	if line == 0 || int(line) > len(lines) {
		return "", false, nil
	}
	return lines[line-1], true, nil
}

func (c *SourceCache) load(path string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if lines, ok := c.files[path]; ok {
		return lines, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("project: open %q: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("project: read %q: %w", path, err)
	}

	c.files[path] = lines
	return lines, nil
}

// Evict drops path from the cache, forcing the next Line call to reload it.
func (c *SourceCache) Evict(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, path)
}
