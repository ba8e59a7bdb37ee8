// Package mapmaker はスタイル名と範囲から地図画像を作る。
//
// 設定のサービス一覧からタイル取得の層を組み立て (Fallback → Memory → Redis → Disk → Network)、
// render.Engine で貼り合わせ、compose.Composer で余白と装飾を付ける
package mapmaker

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
	xdraw "golang.org/x/image/draw"

	"mapmaker/internal/compose"
	"mapmaker/internal/config"
	"mapmaker/internal/logger"
	"mapmaker/internal/render"
	"mapmaker/internal/tilegrid"
	"mapmaker/internal/tilesource"
)

// HillshadingStyle 陰影として重ねるスタイル名
const HillshadingStyle = "hillshading"

// Renderer スタイルごとのタイル取得元を保持し、何枚でも地図を作れる
type Renderer struct {
	cfg      *config.Config
	client   *http.Client
	limiter  *tilesource.HostLimiter
	redis    *redis.Client
	ownRedis bool
	cacheDir string

	mu      sync.Mutex
	sources map[string]*styleSource
}

type styleSource struct {
	source   tilesource.Source
	template string
}

// Option Renderer の設定項目
type Option func(*Renderer)

// WithHTTPClient タイル取得に使うクライアント
func WithHTTPClient(c *http.Client) Option {
	return func(r *Renderer) { r.client = c }
}

// WithRedis 共有キャッシュに使うクライアント。呼び出し側が閉じる
func WithRedis(c *redis.Client) Option {
	return func(r *Renderer) { r.redis = c }
}

// WithCacheDir 設定より優先するディスクキャッシュの場所
func WithCacheDir(dir string) Option {
	return func(r *Renderer) { r.cacheDir = dir }
}

// New cfg の [redis] が設定されていれば接続を開く (Close で閉じる)
func New(cfg *config.Config, opts ...Option) *Renderer {
	r := &Renderer{
		cfg:      cfg,
		cacheDir: cfg.Cache.Dir,
		sources:  make(map[string]*styleSource),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = tilesource.NewHTTPClient()
	}
	if cfg.RequestsPerSecond > 0 {
		r.limiter = tilesource.NewHostLimiter(cfg.RequestsPerSecond)
	}
	if r.redis == nil && cfg.Redis.Addr != "" {
		r.redis = tilesource.OpenRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		r.ownRedis = true
		logger.L().Info("shared tile cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
	}
	return r
}

func (r *Renderer) diskDir() string {
	if r.cacheDir == "" {
		return tilesource.DefaultCacheDir()
	}
	return r.cacheDir
}

// Close レート制限のワーカーと自分で開いた Redis 接続を閉じる
func (r *Renderer) Close() error {
	if r.limiter != nil {
		r.limiter.Close()
	}
	if r.ownRedis && r.redis != nil {
		return r.redis.Close()
	}
	return nil
}

// source スタイルごとに一度だけ組み立てる。メモリキャッシュは描画をまたいで効く
func (r *Renderer) source(style string) (*styleSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sources[style]; ok {
		return s, nil
	}
	template, err := r.cfg.Service(style)
	if err != nil {
		return nil, err
	}
	network, err := tilesource.NewNetwork(tilesource.NetworkOptions{
		Name:        style,
		URLTemplate: template,
		APIKeys:     r.cfg.Keys,
		UserAgent:   r.cfg.UserAgent,
		Client:      r.client,
		Limiter:     r.limiter,
	})
	if err != nil {
		return nil, fmt.Errorf("style %s: %w", style, err)
	}

	disk := tilesource.NewDiskCache(network, tilesource.DiskCacheOptions{
		Service:     style,
		Dir:         r.cacheDir,
		TrustWindow: r.cfg.Cache.TrustWindow,
		Limit:       r.cfg.Cache.Limit,
	})
	var src tilesource.Source = disk
	if r.redis != nil {
		src = tilesource.NewRedisCache(src, r.redis, style, r.cfg.Redis.TTL)
	}
	src = tilesource.NewFallback(tilesource.NewMemoryCache(src, r.cfg.Cache.MemoryTiles))

	logger.L().Debug("tile source ready", "style", style, "host", network.Host(), "cache", disk.Dir(), "redis", r.redis != nil)
	s := &styleSource{source: src, template: template}
	r.sources[style] = s
	return s, nil
}

// Render タイルを取得して装飾まで済ませた画像を返す
func (r *Renderer) Render(ctx context.Context, req Request) (*image.NRGBA, error) {
	req.applyDefaults()
	grid, err := tilegrid.FromBBox(req.BBox, req.Zoom)
	if err != nil {
		return nil, err
	}
	src, err := r.source(req.Style)
	if err != nil {
		return nil, err
	}
	_, _, mapSize := render.Estimate(grid)
	composer, err := r.composer(req, src.template, mapSize)
	if err != nil {
		return nil, err
	}
	var shading *styleSource
	if req.Hillshading {
		if shading, err = r.source(HillshadingStyle); err != nil {
			return nil, fmt.Errorf("hillshading: %w", err)
		}
	}

	engine := render.New(src.source, r.cfg.ParallelDownloads,
		render.WithOverlays(req.Overlays...),
		render.WithProgress(req.Progress),
	)
	logger.L().Info("rendering map", "style", req.Style, "bbox", req.BBox.String(), "zoom", req.Zoom, "tiles", grid.NumTiles())
	res, err := engine.Build(ctx, grid)
	if err != nil {
		return nil, fmt.Errorf("style %s: %w", req.Style, err)
	}

	if shading != nil {
		if err := r.shade(ctx, shading, res.Image, grid); err != nil {
			return nil, err
		}
	}
	return composer.Compose(res.Image, res)
}

// shade 陰影のタイルを同じグリッドで作り、地図の上に重ねる
func (r *Renderer) shade(ctx context.Context, src *styleSource, dst *image.NRGBA, grid tilegrid.Grid) error {
	res, err := render.New(src.source, r.cfg.ParallelDownloads).Build(ctx, grid)
	if err != nil {
		return fmt.Errorf("hillshading: %w", err)
	}

	shade := image.Image(res.Image)
	if res.Image.Bounds().Size() != dst.Bounds().Size() {
		// タイルサイズが違うスタイル同士
		scaled := image.NewNRGBA(dst.Bounds())
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), res.Image, res.Image.Bounds(), xdraw.Src, nil)
		shade = scaled
	}
	draw.Draw(dst, dst.Bounds(), shade, image.Point{}, draw.Over)
	return nil
}

// composer リクエストの装飾を Composer に並べる
func (r *Renderer) composer(req Request, template string, mapSize image.Point) (*compose.Composer, error) {
	c := compose.New()
	c.SetBackground(req.Background)
	if err := c.SetMargin(req.Margins); err != nil {
		return nil, err
	}
	if err := c.SetFrame(req.Frame); err != nil {
		return nil, err
	}

	var margin, onMap []compose.Decoration
	if req.Title != nil {
		margin = append(margin, req.Title)
	}
	if req.Comment != nil {
		margin = append(margin, req.Comment)
	}
	if req.Copyright {
		tld := tilesource.TopLevelDomain(template)
		if text := r.cfg.Copyright(tld); text != "" {
			margin = append(margin, compose.NewCartouche(text, compose.ENE, 8))
		} else {
			logger.L().Warn("no copyright notice configured", "domain", tld)
		}
	}
	if req.Compass != nil {
		onMap = append(onMap, req.Compass)
	}
	if req.ScaleBar {
		onMap = append(onMap, compose.NewScaleBar(compose.SW, req.BBox, mapSize.X))
	}

	for _, d := range margin {
		if err := c.Add(compose.AreaMargin, d); err != nil {
			return nil, err
		}
	}
	for _, d := range onMap {
		if err := c.Add(compose.AreaMap, d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Info ダウンロードせずに地図の見積もりを出す
func (r *Renderer) Info(req Request) (*Info, error) {
	req.applyDefaults()
	grid, err := tilegrid.FromBBox(req.BBox, req.Zoom)
	if err != nil {
		return nil, err
	}
	template, err := r.cfg.Service(req.Style)
	if err != nil {
		return nil, err
	}
	tiles, canvas, mapSize := render.Estimate(grid)
	composer, err := r.composer(req, template, mapSize)
	if err != nil {
		return nil, err
	}

	m := composer.Margins(mapSize)
	size := mapSize.Add(image.Pt(m.Left+m.Right, m.Top+m.Bottom))
	if req.Frame != nil && req.Frame.Width > 0 {
		size = size.Add(image.Pt(2*req.Frame.Width, 2*req.Frame.Width))
	}
	return &Info{
		Style:        req.Style,
		URLTemplate:  template,
		BBox:         req.BBox,
		Zoom:         req.Zoom,
		Tiles:        tiles,
		WidthMeters:  req.BBox.WidthMeters(),
		HeightMeters: req.BBox.HeightMeters(),
		Canvas:       canvas,
		MapSize:      mapSize,
		ImageSize:    size,
		CacheDir:     r.diskDir(),
		CacheLimit:   r.cfg.Cache.Limit,
	}, nil
}

// WritePNG Render した画像を PNG で書き出す
func (r *Renderer) WritePNG(ctx context.Context, req Request, w io.Writer) error {
	img, err := r.Render(ctx, req)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// SaveFile dst に一時ファイル経由で PNG を保存する
func (r *Renderer) SaveFile(ctx context.Context, req Request, dst string) error {
	img, err := r.Render(ctx, req)
	if err != nil {
		return err
	}
	return savePNG(dst, img)
}

func savePNG(dst string, img image.Image) error {
	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".map-*.png")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// Gallery 設定されたすべてのスタイルで dir/<style>.png を作る。
// 失敗したスタイルは記録して次へ進む
func (r *Renderer) Gallery(ctx context.Context, req Request, dir string) (saved []string, failed map[string]error) {
	failed = make(map[string]error)
	for _, style := range r.cfg.Styles() {
		if ctx.Err() != nil {
			failed[style] = ctx.Err()
			continue
		}
		styled := req
		styled.Style = style
		dst := filepath.Join(dir, style+".png")
		if err := r.SaveFile(ctx, styled, dst); err != nil {
			logger.L().Error("gallery style failed", "style", style, "error", err)
			failed[style] = err
			continue
		}
		saved = append(saved, dst)
	}
	return saved, failed
}
