// Package render はタイルを並列に取得して1枚のキャンバスに貼り合わせ、BBox で切り抜く
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	_ "golang.org/x/image/webp"

	"mapmaker/internal/geo"
	"mapmaker/internal/logger"
	"mapmaker/internal/metrics"
	"mapmaker/internal/tilegrid"
	"mapmaker/internal/tilesource"
)

const (
	// DefaultWorkers 並列ダウンロード数の既定値
	DefaultWorkers = 8
	// DefaultTileTimeout タイル1枚 (リトライとフォールバックを含む) の制限時間
	DefaultTileTimeout = 90 * time.Second
)

// DefaultTileSize 最初のタイルが届くまでの仮のタイルサイズ
var DefaultTileSize = image.Pt(256, 256)

// ErrDecode タイル画像を解釈できない
var ErrDecode = errors.New("tile decode failed")

// Projection 緯度経度をピクセル座標に変換する
type Projection interface {
	Project(lat, lon float64) (x, y float64)
}

// Overlay キャンバスに重ねる描画物 (緯度経度で定義)
type Overlay interface {
	Draw(dc *gg.Context, p Projection)
}

// ProgressFunc タイル1枚の貼り付けごとに呼ばれる。done は単調増加
type ProgressFunc func(done, total int)

// Engine タイル取得と貼り合わせの設定
type Engine struct {
	source      tilesource.Source
	workers     int
	tileTimeout time.Duration
	overlays    []Overlay
	progress    ProgressFunc
}

// Option Engine の設定項目
type Option func(*Engine)

// WithOverlays 取得後に重ねる描画物
func WithOverlays(overlays ...Overlay) Option {
	return func(e *Engine) { e.overlays = append(e.overlays, overlays...) }
}

// WithProgress 進捗コールバック
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// WithTileTimeout タイル1枚あたりの制限時間。0 以下で無制限
func WithTileTimeout(d time.Duration) Option {
	return func(e *Engine) { e.tileTimeout = d }
}

// New workers <= 0 なら DefaultWorkers
func New(source tilesource.Source, workers int, opts ...Option) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	e := &Engine{source: source, workers: workers, tileTimeout: DefaultTileTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// canvas ワーカー間で共有する状態。mu の下でのみ触る
type canvas struct {
	mu       sync.Mutex
	grid     tilegrid.Grid
	tileSize image.Point // 最初のタイルで一度だけ決まる
	img      *image.NRGBA
	done     int
	total    int
	progress ProgressFunc
}

// paste 最初の呼び出しでタイルサイズを確定してキャンバスを確保する
func (c *canvas) paste(tile geo.Tile, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.img == nil {
		c.tileSize = img.Bounds().Size()
		c.img = image.NewNRGBA(image.Rectangle{Max: c.grid.CanvasSize(c.tileSize)})
	}
	col, row := c.grid.Offset(tile)
	dp := image.Pt(col*c.tileSize.X, row*c.tileSize.Y)
	dst := image.Rectangle{Min: dp, Max: dp.Add(c.tileSize)}
	draw.Draw(c.img, dst, img, img.Bounds().Min, draw.Src)

	c.done++
	metrics.TilesPasted.Inc()
	if c.progress != nil {
		c.progress(c.done, c.total)
	}
}

// Build グリッドの全タイルを取得して貼り合わせ、重ね描きして切り抜く。
// 1枚でも失敗したら全体を中止し、部分的な画像は返さない
func (e *Engine) Build(ctx context.Context, grid tilegrid.Grid) (*Result, error) {
	start := time.Now()
	res, err := e.build(ctx, grid)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.BuildDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return res, err
}

func (e *Engine) build(ctx context.Context, grid tilegrid.Grid) (*Result, error) {
	tiles := grid.Tiles()
	if len(tiles) == 0 {
		return nil, fmt.Errorf("%w: grid has no tiles", geo.ErrInvalidBBox)
	}

	c := &canvas{grid: grid, total: len(tiles), progress: e.progress}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan geo.Tile, len(tiles))
	for _, t := range tiles {
		queue <- t
	}
	close(queue)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	workers := min(e.workers, len(tiles))
	logger.L().Debug("acquiring tiles", "tiles", len(tiles), "workers", workers, "zoom", grid.Zoom)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tile := range queue {
				if ctx.Err() != nil {
					return
				}
				img, err := e.acquire(ctx, tile)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
						cancel()
					}
					mu.Unlock()
					return
				}
				c.paste(tile, img)
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.drawOverlays(c)

	crop := grid.CropBox(c.tileSize)
	if crop.Empty() {
		return nil, fmt.Errorf("%w: %s is smaller than one pixel at zoom %d", geo.ErrInvalidBBox, grid.BBox, grid.Zoom)
	}
	out := image.NewNRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(out, out.Bounds(), c.img, crop.Min, draw.Src)

	logger.L().Debug("map assembled", "tiles", c.done, "tile_size", c.tileSize, "crop", crop)
	return &Result{Image: out, Grid: grid, TileSize: c.tileSize, Crop: crop}, nil
}

func (e *Engine) acquire(ctx context.Context, tile geo.Tile) (image.Image, error) {
	if e.tileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.tileTimeout)
		defer cancel()
	}

	_, data, err := e.source.Fetch(ctx, tile, "")
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", tile, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: tile %s: empty response", tilesource.ErrTileFetch, tile)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: tile %s: %v", ErrDecode, tile, err)
	}
	return img, nil
}

// drawOverlays 描画物ごとに透明レイヤーを作って重ねる
func (e *Engine) drawOverlays(c *canvas) {
	size := c.img.Bounds().Size()
	proj := canvasProjection{grid: c.grid, tileSize: c.tileSize}
	for _, o := range e.overlays {
		dc := gg.NewContext(size.X, size.Y)
		o.Draw(dc, proj)
		draw.Draw(c.img, c.img.Bounds(), dc.Image(), image.Point{}, draw.Over)
	}
}

// canvasProjection 切り抜き前のキャンバス座標
type canvasProjection struct {
	grid     tilegrid.Grid
	tileSize image.Point
}

func (p canvasProjection) Project(lat, lon float64) (float64, float64) {
	fx, fy := p.grid.PixelFraction(lat, lon)
	return fx * float64(p.tileSize.X), fy * float64(p.tileSize.Y)
}

// Result 切り抜いた地図と、その上の座標変換
type Result struct {
	Image    *image.NRGBA
	Grid     tilegrid.Grid
	TileSize image.Point
	// Crop キャンバス上の切り抜き範囲
	Crop image.Rectangle
}

// Project 切り抜いた画像上のピクセル座標
func (r *Result) Project(lat, lon float64) (float64, float64) {
	fx, fy := r.Grid.PixelFraction(lat, lon)
	return fx*float64(r.TileSize.X) - float64(r.Crop.Min.X), fy*float64(r.TileSize.Y) - float64(r.Crop.Min.Y)
}

// BBox 地図の範囲
func (r *Result) BBox() geo.BBox { return r.Grid.BBox }

// Estimate ダウンロード前の見積もり。タイルサイズは仮の値を使う
func Estimate(grid tilegrid.Grid) (tiles int, canvasSize, crop image.Point) {
	crop = grid.CropBox(DefaultTileSize).Size()
	return grid.NumTiles(), grid.CanvasSize(DefaultTileSize), crop
}
