// ABOUTME: Local cache for generated greeting videos
// ABOUTME: Downloads video URIs once and serves them from disk afterwards
package media

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Cache manages video downloads
type Cache struct {
	dir    string
	apiKey string
	client *http.Client
}

// NewCache creates a cache rooted at dir.
// apiKey is sent with downloads from the generation service; may be empty.
func NewCache(dir, apiKey string) (*Cache, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "greetcast-media")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Cache{
		dir:    dir,
		apiKey: apiKey,
		client: &http.Client{},
	}, nil
}

// Dir returns the cache directory
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns where uri is cached, whether or not it has been fetched
func (c *Cache) Path(uri string) string {
	if local, ok := localPath(uri); ok {
		return local
	}
	hash := sha256.Sum256([]byte(uri))
	return filepath.Join(c.dir, fmt.Sprintf("%x%s", hash[:8], getExtension(uri)))
}

// Fetch downloads uri into the cache and returns the local path.
// Local paths and file:// URIs are returned as-is when they exist.
func (c *Cache) Fetch(ctx context.Context, uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("empty video uri")
	}

	cachePath := c.Path(uri)
	if _, err := os.Stat(cachePath); err == nil {
		log.Printf("Video cache hit: %s", cachePath)
		return cachePath, nil
	}
	if _, ok := localPath(uri); ok {
		return "", fmt.Errorf("video file not found: %s", cachePath)
	}

	log.Printf("Downloading video: %s", uri)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("video download failed: HTTP %d", resp.StatusCode)
	}

	// Write to a temp name so a partial download never looks cached
	tmp := cachePath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to save video: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to save video: %w", err)
	}
	if err := os.Rename(tmp, cachePath); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to save video: %w", err)
	}

	log.Printf("Video saved: %s", cachePath)
	return cachePath, nil
}

// Remove deletes the cached copy of uri; local files are left alone
func (c *Cache) Remove(uri string) error {
	if _, ok := localPath(uri); ok {
		return nil
	}
	if err := os.Remove(c.Path(uri)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Cleanup removes every cached video
func (c *Cache) Cleanup() error {
	return os.RemoveAll(c.dir)
}

func localPath(uri string) (string, bool) {
	if strings.HasPrefix(uri, "file://") {
		return strings.TrimPrefix(uri, "file://"), true
	}
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return "", false
	}
	return uri, true
}

// getExtension extracts file extension from URL
func getExtension(uri string) string {
	uri = strings.Split(uri, "?")[0]
	uri = strings.Split(uri, ":download")[0]

	ext := filepath.Ext(uri)
	if ext == "" || len(ext) > 5 {
		ext = ".mp4"
	}
	return ext
}
