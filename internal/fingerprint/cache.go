package fingerprint

import (
	"io/fs"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 8192

type cacheEntry struct {
	size        int64
	mtimeUnixNs int64
	fingerprint string
}

// Cache memoizes fingerprints keyed by path. A cached value is reused only
// while the file's size and mtime are unchanged, so a stale hit requires an
// in-place edit that preserves both - the same tradeoff every sync tool makes
// to avoid re-hashing an entire tree on each pass.
type Cache struct {
	entries *lru.Cache[string, cacheEntry]
}

func NewCache(size int) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	// error only fires for size <= 0
	entries, _ := lru.New[string, cacheEntry](size)
	return &Cache{entries: entries}
}

// File returns the fingerprint for path, hashing only when the cached entry
// no longer matches info.
func (c *Cache) File(path string, info fs.FileInfo) (string, error) {
	mtime := info.ModTime().UnixNano()

	if entry, ok := c.entries.Get(path); ok {
		if entry.size == info.Size() && entry.mtimeUnixNs == mtime {
			return entry.fingerprint, nil
		}
	}

	fp, err := File(path)
	if err != nil {
		return "", err
	}

	c.entries.Add(path, cacheEntry{
		size:        info.Size(),
		mtimeUnixNs: mtime,
		fingerprint: fp,
	})
	return fp, nil
}

// Forget drops the cached entry for path.
func (c *Cache) Forget(path string) {
	c.entries.Remove(path)
}
