package tilesource

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mapmaker/internal/geo"
	"mapmaker/internal/logger"
	"mapmaker/internal/metrics"
)

// redisStore *redis.Client のうち RedisCache が使う部分
type redisStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache 複数プロセスで共有するタイルキャッシュ。
// TTL が信頼期間の代わりで、期限内のエントリは再検証せずに返す
type RedisCache struct {
	next    Source
	store   redisStore
	service string
	ttl     time.Duration
}

// OpenRedis addr が空なら nil
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// NewRedisCache ttl <= 0 なら DefaultTrustWindow
func NewRedisCache(next Source, store redisStore, service string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTrustWindow
	}
	return &RedisCache{next: next, store: store, service: service, ttl: ttl}
}

func (c *RedisCache) key(tile geo.Tile) string {
	return fmt.Sprintf("mapmaker:tile:%s:%d:%d:%d", c.service, tile.Z, tile.X, tile.Y)
}

func (c *RedisCache) Fetch(ctx context.Context, tile geo.Tile, token string) (string, []byte, error) {
	key := c.key(tile)
	raw, err := c.store.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if tok, data, ok := decodeRedisValue(raw); ok {
			metrics.CacheLookups.WithLabelValues("redis", "hit").Inc()
			return tok, data, nil
		}
		logger.L().Warn("corrupt redis tile entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		metrics.CacheLookups.WithLabelValues("redis", "io_error").Inc()
		logger.L().Warn("redis tile lookup failed", "key", key, "error", fmt.Errorf("%w: %v", ErrCacheIO, err))
	}
	metrics.CacheLookups.WithLabelValues("redis", "miss").Inc()

	newToken, data, err := c.next.Fetch(ctx, tile, token)
	if err != nil || data == nil {
		return newToken, data, err
	}
	if err := c.store.Set(ctx, key, encodeRedisValue(newToken, data), c.ttl).Err(); err != nil {
		metrics.CacheLookups.WithLabelValues("redis", "io_error").Inc()
		logger.L().Warn("redis tile store failed", "key", key, "error", fmt.Errorf("%w: %v", ErrCacheIO, err))
	}
	return newToken, data, nil
}

// 値の形式: uvarint(len(token)) | token | data
func encodeRedisValue(token string, data []byte) []byte {
	buf := make([]byte, 0, binary.MaxVarintLen64+len(token)+len(data))
	buf = binary.AppendUvarint(buf, uint64(len(token)))
	buf = append(buf, token...)
	return append(buf, data...)
}

func decodeRedisValue(raw []byte) (string, []byte, bool) {
	n, w := binary.Uvarint(raw)
	if w <= 0 || uint64(len(raw)-w) < n {
		return "", nil, false
	}
	token := string(raw[w : w+int(n)])
	data := raw[w+int(n):]
	if len(data) == 0 {
		return "", nil, false
	}
	return token, data, true
}
