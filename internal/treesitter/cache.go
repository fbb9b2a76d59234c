package treesitter

import (
	"hash/fnv"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

const (
	defaultTreeCacheEntries  = 1000
	defaultTreeCacheMaxBytes = 64 * 1024 * 1024
	minEstimatedTreeBytes    = 32 * 1024
)

type cacheEntry struct {
	tree           *tree_sitter.Tree
	estimatedBytes int64
}

// Cache stores master parsed trees and hands out clones, so cached trees
// are never closed underneath a caller.
type Cache struct {
	mu         sync.Mutex
	entries    *lru.Cache[string, *cacheEntry]
	maxBytes   int64
	totalBytes int64
	closed     bool
}

// NewCache creates a tree cache; zero limits select defaults.
func NewCache(maxEntries int, maxBytes int64) *Cache {
	if maxEntries <= 0 {
		maxEntries = defaultTreeCacheEntries
	}
	if maxBytes <= 0 {
		maxBytes = defaultTreeCacheMaxBytes
	}
	c := &Cache{maxBytes: maxBytes}
	c.entries, _ = lru.NewWithEvict[string, *cacheEntry](maxEntries, c.onEvicted)
	return c
}

func (c *Cache) onEvicted(_ string, entry *cacheEntry) {
	if entry == nil {
		return
	}
	c.totalBytes -= entry.estimatedBytes
	entry.tree.Close()
}

// estimateTreeBytes approximates one parsed tree's memory footprint.
func estimateTreeBytes(content []byte) int64 {
	est := int64(len(content)) * 10
	if est < minEstimatedTreeBytes {
		return minEstimatedTreeBytes
	}
	return est
}

// Get returns a clone of the cached tree for key, if present.
func (c *Cache) Get(key string) (*tree_sitter.Tree, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false
	}
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return entry.tree.Clone(), true
}

// Put stores a master tree, taking ownership of it. Oversized entries
// evict older trees until the byte budget holds.
func (c *Cache) Put(key string, tree *tree_sitter.Tree, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		tree.Close()
		return
	}
	if old, ok := c.entries.Peek(key); ok && old != nil {
		// Replacing an entry evicts the old tree via onEvicted.
		c.entries.Remove(key)
	}
	entry := &cacheEntry{tree: tree, estimatedBytes: estimateTreeBytes(content)}
	c.entries.Add(key, entry)
	c.totalBytes += entry.estimatedBytes
	for c.totalBytes > c.maxBytes && c.entries.Len() > 1 {
		c.entries.RemoveOldest()
	}
}

// Close evicts every cached tree and rejects further use.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.entries.Purge()
	return nil
}

// treeCacheKey keys a parse result by path, content length, and content
// hash.
func treeCacheKey(path string, content []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(content)

	buf := make([]byte, 0, len(path)+1+19+1+16)
	buf = append(buf, path...)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(len(content)), 10)
	buf = append(buf, ':')
	buf = strconv.AppendUint(buf, h.Sum64(), 16)
	return string(buf)
}
