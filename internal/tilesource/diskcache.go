package tilesource

import (
	"context"
	"encoding/base64"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"mapmaker/internal/geo"
	"mapmaker/internal/logger"
	"mapmaker/internal/metrics"
)

const (
	// DefaultTrustWindow この期間内のキャッシュは再検証せずに使う
	DefaultTrustWindow = 24 * time.Hour

	// vacuumOvershoot 書き込みのたびに掃除が走らないよう、超過分より少し多めに消す
	vacuumOvershoot = 1.1
)

// DiskCacheOptions DiskCache の設定
type DiskCacheOptions struct {
	// Service キャッシュディレクトリを分けるためのサービス名
	Service string
	// Dir キャッシュのルート。空ならユーザーキャッシュディレクトリ
	Dir string
	// TrustWindow 0 なら DefaultTrustWindow
	TrustWindow time.Duration
	// Limit 全サービス合計の上限 (bytes)。0 以下なら無制限
	Limit int64
}

// DiskCache タイルをディスクに保存し、ETag で再検証する Source。
//
// レイアウト: <dir>/<service>/<zz>/<xxxxxx>/<yyyyyy>.<base64url(etag)>.<ext>
// 1タイルにつきファイルは1つだけ
type DiskCache struct {
	next    Source
	service string
	dir     string
	trust   time.Duration
	limit   int64
	now     func() time.Time

	vacuumMu sync.Mutex
}

// DefaultCacheDir ~/.cache/mapmaker/tiles (OS依存)
func DefaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "mapmaker", "tiles")
}

// NewDiskCache next をディスクキャッシュで包む
func NewDiskCache(next Source, opts DiskCacheOptions) *DiskCache {
	c := &DiskCache{
		next:    next,
		service: opts.Service,
		dir:     opts.Dir,
		trust:   opts.TrustWindow,
		limit:   opts.Limit,
		now:     time.Now,
	}
	if c.service == "" {
		c.service = "default"
	}
	if c.dir == "" {
		c.dir = DefaultCacheDir()
	}
	if c.trust <= 0 {
		c.trust = DefaultTrustWindow
	}
	return c
}

// Dir キャッシュのルートディレクトリ
func (c *DiskCache) Dir() string { return c.dir }

type cacheEntry struct {
	path    string
	token   string
	modTime time.Time
}

func (c *DiskCache) Fetch(ctx context.Context, tile geo.Tile, token string) (string, []byte, error) {
	entry := c.find(tile)

	// トークン指定なし: 信頼期間内ならネットワークに出ない
	if token == "" && entry != nil {
		if c.now().Sub(entry.modTime) < c.trust {
			data, err := os.ReadFile(entry.path)
			if err == nil {
				metrics.CacheLookups.WithLabelValues("disk", "hit").Inc()
				return entry.token, data, nil
			}
			c.ioFailure("read", entry.path, err)
			entry = nil
		} else {
			token = entry.token
		}
	}
	metrics.CacheLookups.WithLabelValues("disk", "miss").Inc()

	newToken, data, err := c.next.Fetch(ctx, tile, token)
	if err != nil {
		return "", nil, err
	}

	if data == nil {
		if entry != nil && entry.token == token {
			cached, err := os.ReadFile(entry.path)
			if err == nil {
				metrics.CacheLookups.WithLabelValues("disk", "revalidated").Inc()
				c.touch(entry.path)
				return token, cached, nil
			}
			c.ioFailure("read", entry.path, err)
		}
		// 手元に使えるデータがないので条件なしで取り直す
		newToken, data, err = c.next.Fetch(ctx, tile, "")
		if err != nil {
			return "", nil, err
		}
		if data == nil {
			return "", nil, fmt.Errorf("%w: tile %s: not modified without a token", ErrTileFetch, tile)
		}
	}

	c.put(tile, newToken, data)
	return newToken, data, nil
}

func (c *DiskCache) tileDir(tile geo.Tile) string {
	return filepath.Join(c.dir, c.service, fmt.Sprintf("%02d", tile.Z), fmt.Sprintf("%06d", tile.X))
}

func tilePrefix(tile geo.Tile) string {
	return fmt.Sprintf("%06d.", tile.Y)
}

func (c *DiskCache) path(tile geo.Tile, token string, data []byte) string {
	name := tilePrefix(tile) + base64.RawURLEncoding.EncodeToString([]byte(token)) + "." + imageExt(data)
	return filepath.Join(c.tileDir(tile), name)
}

// find タイルの現在のエントリ。複数ある場合 (他プロセスとの競合) は新しい方
func (c *DiskCache) find(tile geo.Tile) *cacheEntry {
	dir := c.tileDir(tile)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			c.ioFailure("list", dir, err)
		}
		return nil
	}

	prefix := tilePrefix(tile)
	var found *cacheEntry
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		i := strings.LastIndex(rest, ".")
		if i < 0 {
			continue
		}
		token, err := base64.RawURLEncoding.DecodeString(rest[:i])
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if found == nil || info.ModTime().After(found.modTime) {
			found = &cacheEntry{
				path:    filepath.Join(dir, name),
				token:   string(token),
				modTime: info.ModTime(),
			}
		}
	}
	return found
}

// put 新しいエントリを書き、同じタイルの古いエントリを消してから掃除する
func (c *DiskCache) put(tile geo.Tile, token string, data []byte) {
	path := c.path(tile, token, data)
	if err := writeFileAtomic(path, data); err != nil {
		c.ioFailure("write", path, err)
		return
	}

	dir := c.tileDir(tile)
	prefix := tilePrefix(tile)
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.ioFailure("list", dir, err)
		return
	}
	for _, e := range entries {
		stale := filepath.Join(dir, e.Name())
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || stale == path {
			continue
		}
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			c.ioFailure("remove", stale, err)
		}
	}

	if _, err := c.Vacuum(); err != nil {
		c.ioFailure("vacuum", c.dir, err)
	}
}

func (c *DiskCache) touch(path string) {
	now := c.now()
	if err := os.Chtimes(path, now, now); err != nil {
		c.ioFailure("touch", path, err)
	}
}

type cachedFile struct {
	path    string
	size    int64
	modTime time.Time
}

// Vacuum 合計サイズが上限を超えていれば更新日時の古い順に削除する。
// 削除したバイト数を返す
func (c *DiskCache) Vacuum() (int64, error) {
	if c.limit <= 0 {
		return 0, nil
	}
	c.vacuumMu.Lock()
	defer c.vacuumMu.Unlock()

	var (
		files []cachedFile
		used  int64
	)
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// 走査中に他のワーカーが消したファイルは無視
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, cachedFile{path: path, size: info.Size(), modTime: info.ModTime()})
		used += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: walk %s: %v", ErrCacheIO, c.dir, err)
	}

	excess := used - c.limit
	if excess <= 0 {
		return 0, nil
	}
	excess = int64(float64(excess) * vacuumOvershoot)

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	var removed int64
	for _, f := range files {
		if excess <= 0 {
			break
		}
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			c.ioFailure("remove", f.path, err)
			continue
		}
		excess -= f.size
		removed += f.size
	}
	metrics.CacheEvictedBytes.WithLabelValues("disk").Add(float64(removed))
	logger.L().Info("tile cache vacuumed", "dir", c.dir, "used", used, "limit", c.limit, "removed", removed)
	return removed, nil
}

func (c *DiskCache) ioFailure(op, path string, err error) {
	metrics.CacheLookups.WithLabelValues("disk", "io_error").Inc()
	logger.L().Warn("tile cache io failure", "op", op, "path", path, "error", fmt.Errorf("%w: %v", ErrCacheIO, err))
}

// imageExt 内容から拡張子を決める
func imageExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	}
	return "bin"
}

// writeFileAtomic 一時ファイルに書いてから rename する。
// 一時ファイル名はドットで始め、キャッシュの検索に引っかからないようにする
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	ok = true
	return nil
}
