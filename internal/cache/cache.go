// Package cache stores token streams on disk, keyed by a BLAKE3 digest of
// the file content and the settings that shaped the stream.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
)

// formatVersion is mixed into every key; bump it when TokenStream changes shape.
const formatVersion = "cda-tokens-v1"

// Cache provides file-based caching of tokenization results.
// A disabled cache is a valid no-op value.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
}

// Entry represents a cached item on disk.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// TokenStream is the compact, normalized token sequence of one file.
// The slices are parallel: Texts[i] spans lines Lines[i]..EndLines[i].
type TokenStream struct {
	Texts         []string `json:"texts"`
	Kinds         []uint8  `json:"kinds"`
	Lines         []int32  `json:"lines"`
	EndLines      []int32  `json:"end_lines"`
	NonBlankLines int      `json:"non_blank_lines"`
}

// New creates a new cache instance.
func New(dir string, ttlHours int, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}

	// Ensure cache directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
	}, nil
}

// Enabled reports whether reads and writes hit the disk.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// Key derives a cache key from file content and the settings that affect
// tokenization (normalization level, language).
func Key(content []byte, settings ...string) string {
	h := blake3.New()
	_, _ = h.WriteString(formatVersion)
	for _, s := range settings {
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(s)
	}
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Get retrieves a cached entry if it exists and is not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}

	path := c.keyPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}

	// Check TTL
	if c.ttl > 0 && time.Since(entry.Timestamp) > c.ttl {
		os.Remove(path)
		return nil, false
	}

	return entry.Data, true
}

// Set stores data in the cache. data must be valid JSON.
// The entry is written to a temp file and renamed so concurrent writers
// of the same key never leave a torn file behind.
func (c *Cache) Set(key string, data []byte) error {
	if !c.Enabled() {
		return nil
	}

	entryData, err := json.Marshal(Entry{
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, "entry-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(entryData); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.keyPath(key))
}

// GetTokens returns a cached token stream.
func (c *Cache) GetTokens(key string) (*TokenStream, bool) {
	data, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	var ts TokenStream
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, false
	}
	if len(ts.Kinds) != len(ts.Texts) || len(ts.Lines) != len(ts.Texts) || len(ts.EndLines) != len(ts.Texts) {
		return nil, false
	}
	return &ts, true
}

// SetTokens stores a token stream.
func (c *Cache) SetTokens(key string, ts *TokenStream) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(ts)
	if err != nil {
		return err
	}
	return c.Set(key, data)
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.Enabled() {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// keyPath converts a key to a filesystem path.
func (c *Cache) keyPath(key string) string {
	// Use BLAKE3 hash of key for filename to avoid path issues
	hash := blake3.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(hash[:])+".json")
}

// Stats returns cache statistics.
type Stats struct {
	Entries   int           `json:"entries"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.Enabled() {
		return &Stats{}, nil
	}

	stats := &Stats{}
	var oldest, newest time.Time

	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		stats.Entries++
		stats.TotalSize += info.Size()

		modTime := info.ModTime()
		if oldest.IsZero() || modTime.Before(oldest) {
			oldest = modTime
		}
		if newest.IsZero() || modTime.After(newest) {
			newest = modTime
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}

	return stats, nil
}
