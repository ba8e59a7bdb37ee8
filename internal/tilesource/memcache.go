package tilesource

import (
	"container/list"
	"context"
	"sync"

	"mapmaker/internal/geo"
	"mapmaker/internal/metrics"
)

// DefaultMemoryTiles MemoryCache の既定容量
const DefaultMemoryTiles = 100

type memoryEntry struct {
	tile    geo.Tile
	token   string
	data    []byte
	element *list.Element
}

// MemoryCache 直近に使ったタイルを保持する LRU。
// 鮮度は確認せず、ヒットすれば下位の Source を呼ばない
type MemoryCache struct {
	next  Source
	size  int
	mu    sync.Mutex
	items map[geo.Tile]*memoryEntry
	order *list.List
}

// NewMemoryCache size <= 0 なら DefaultMemoryTiles
func NewMemoryCache(next Source, size int) *MemoryCache {
	if size <= 0 {
		size = DefaultMemoryTiles
	}
	return &MemoryCache{
		next:  next,
		size:  size,
		items: make(map[geo.Tile]*memoryEntry),
		order: list.New(),
	}
}

func (c *MemoryCache) Fetch(ctx context.Context, tile geo.Tile, token string) (string, []byte, error) {
	if tok, data, ok := c.get(tile); ok {
		metrics.CacheLookups.WithLabelValues("memory", "hit").Inc()
		return tok, data, nil
	}
	metrics.CacheLookups.WithLabelValues("memory", "miss").Inc()

	newToken, data, err := c.next.Fetch(ctx, tile, token)
	if err != nil {
		return "", nil, err
	}
	if data != nil {
		c.put(tile, newToken, data)
	}
	return newToken, data, nil
}

// Len 保持しているタイル数
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *MemoryCache) get(tile geo.Tile) (string, []byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.items[tile]
	if !ok {
		return "", nil, false
	}
	c.order.MoveToFront(entry.element)
	return entry.token, entry.data, true
}

func (c *MemoryCache) put(tile geo.Tile, token string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[tile]; ok {
		existing.token = token
		existing.data = data
		c.order.MoveToFront(existing.element)
		return
	}

	entry := &memoryEntry{tile: tile, token: token, data: data}
	entry.element = c.order.PushFront(entry)
	c.items[tile] = entry

	for c.order.Len() > c.size {
		back := c.order.Back()
		victim := back.Value.(*memoryEntry)
		c.order.Remove(back)
		delete(c.items, victim.tile)
		metrics.CacheEvictedBytes.WithLabelValues("memory").Add(float64(len(victim.data)))
	}
}
