package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fogleman/gg"

	"mapmaker/internal/geo"
	"mapmaker/internal/tilegrid"
	"mapmaker/internal/tilesource"
)

// tileColor タイル座標ごとに異なる色
func tileColor(t geo.Tile) color.NRGBA {
	return color.NRGBA{R: uint8(40 + 100*t.X%256), G: uint8(40 + 100*t.Y%256), B: 200, A: 255}
}

func solidPNG(t *testing.T, size int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// stubSource 座標に応じた単色タイルを返す
func stubSource(t *testing.T, size int, calls *int32) tilesource.Source {
	var mu sync.Mutex
	cache := map[geo.Tile][]byte{}
	return tilesource.SourceFunc(func(_ context.Context, tile geo.Tile, _ string) (string, []byte, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		mu.Lock()
		defer mu.Unlock()
		if data, ok := cache[tile]; ok {
			return "", data, nil
		}
		data := solidPNG(t, size, tileColor(tile))
		cache[tile] = data
		return "", data, nil
	})
}

func TestBuild_TwoByTwoGrid(t *testing.T) {
	box := geo.BBox{MinLat: -10, MinLon: -10, MaxLat: 10, MaxLon: 10}
	grid, err := tilegrid.FromBBox(box, 1)
	if err != nil {
		t.Fatal(err)
	}
	if cols, rows := grid.Size(); cols != 2 || rows != 2 {
		t.Fatalf("grid size = %dx%d, want 2x2", cols, rows)
	}

	var (
		calls int32
		mu    sync.Mutex
		seen  []int
	)
	progress := func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if total != 4 {
			t.Errorf("progress total = %d", total)
		}
		seen = append(seen, done)
	}

	e := New(stubSource(t, 256, &calls), 4, WithProgress(progress))
	res, err := e.Build(context.Background(), grid)
	if err != nil {
		t.Fatal(err)
	}

	if calls != 4 {
		t.Errorf("source calls = %d, want 4", calls)
	}
	if len(seen) != 4 {
		t.Fatalf("progress called %d times, want 4", len(seen))
	}
	for i, d := range seen {
		if d != i+1 {
			t.Errorf("progress sequence = %v, want 1..4", seen)
			break
		}
	}

	// 切り抜き後の四隅は4枚それぞれのタイルから来る
	b := res.Image.Bounds()
	corners := map[image.Point]geo.Tile{
		{b.Min.X, b.Min.Y}:         {X: 0, Y: 0, Z: 1},
		{b.Max.X - 1, b.Min.Y}:     {X: 1, Y: 0, Z: 1},
		{b.Min.X, b.Max.Y - 1}:     {X: 0, Y: 1, Z: 1},
		{b.Max.X - 1, b.Max.Y - 1}: {X: 1, Y: 1, Z: 1},
	}
	for p, tile := range corners {
		if got := res.Image.NRGBAAt(p.X, p.Y); got != tileColor(tile) {
			t.Errorf("pixel %v = %v, want color of tile %v", p, got, tile)
		}
	}
	if res.TileSize != image.Pt(256, 256) {
		t.Errorf("tile size = %v", res.TileSize)
	}
}

func TestBuild_EndToEndCropSize(t *testing.T) {
	box := geo.BBox{MinLat: 47.37, MinLon: 10.95, MaxLat: 47.44, MaxLon: 11.13}
	grid, err := tilegrid.FromBBox(box, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, size := range []int{256, 512} {
		res, err := New(stubSource(t, size, nil), 8).Build(context.Background(), grid)
		if err != nil {
			t.Fatal(err)
		}

		left, bottom := grid.ToPixels(box.MinLat, box.MinLon, image.Pt(size, size))
		right, top := grid.ToPixels(box.MaxLat, box.MaxLon, image.Pt(size, size))
		want := image.Pt(right-left, bottom-top)
		if got := res.Image.Bounds().Size(); got != want {
			t.Errorf("tile size %d: image size = %v, want %v", size, got, want)
		}

		// 北西角は切り抜いた画像の原点付近
		x, y := res.Project(box.MaxLat, box.MinLon)
		if x < -1 || x > 1 || y < -1 || y > 1 {
			t.Errorf("Project(NW corner) = %v,%v", x, y)
		}
	}
}

func TestBuild_TileFailureAborts(t *testing.T) {
	box := geo.BBox{MinLat: -10, MinLon: -10, MaxLat: 10, MaxLon: 10}
	grid, _ := tilegrid.FromBBox(box, 1)

	good := stubSource(t, 256, nil)
	src := tilesource.SourceFunc(func(ctx context.Context, tile geo.Tile, token string) (string, []byte, error) {
		if tile.X == 1 && tile.Y == 1 {
			return "", nil, &tilesource.StatusError{Tile: tile, Status: 404}
		}
		return good.Fetch(ctx, tile, token)
	})

	res, err := New(src, 2).Build(context.Background(), grid)
	if res != nil {
		t.Error("partial result returned")
	}
	if !errors.Is(err, tilesource.ErrTileFetch) {
		t.Errorf("error = %v, want ErrTileFetch", err)
	}
}

func TestBuild_DecodeFailure(t *testing.T) {
	box := geo.BBox{MinLat: 1, MinLon: 1, MaxLat: 2, MaxLon: 2}
	grid, _ := tilegrid.FromBBox(box, 3)
	src := tilesource.SourceFunc(func(context.Context, geo.Tile, string) (string, []byte, error) {
		return "", []byte("not an image"), nil
	})
	if _, err := New(src, 1).Build(context.Background(), grid); !errors.Is(err, ErrDecode) {
		t.Errorf("error = %v, want ErrDecode", err)
	}
}

func TestBuild_Cancelled(t *testing.T) {
	box := geo.BBox{MinLat: -10, MinLon: -10, MaxLat: 10, MaxLon: 10}
	grid, _ := tilegrid.FromBBox(box, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(stubSource(t, 256, nil), 4).Build(ctx, grid); err == nil {
		t.Error("Build succeeded with a cancelled context")
	}
}

type dotOverlay struct {
	lat, lon float64
}

func (d dotOverlay) Draw(dc *gg.Context, p Projection) {
	x, y := p.Project(d.lat, d.lon)
	dc.SetRGB(1, 0, 0)
	dc.DrawRectangle(x-3, y-3, 6, 6)
	dc.Fill()
}

func TestBuild_Overlays(t *testing.T) {
	box := geo.BBox{MinLat: 47.37, MinLon: 10.95, MaxLat: 47.44, MaxLon: 11.13}
	grid, _ := tilegrid.FromBBox(box, 10)
	lat, lon := box.Center()

	res, err := New(stubSource(t, 256, nil), 2, WithOverlays(dotOverlay{lat, lon})).Build(context.Background(), grid)
	if err != nil {
		t.Fatal(err)
	}
	x, y := res.Project(lat, lon)
	got := res.Image.NRGBAAt(int(x), int(y))
	if got.R != 255 || got.G != 0 || got.B != 0 {
		t.Errorf("overlay pixel = %v, want red", got)
	}
	// 重ねていない場所はタイルの色のまま
	if got := res.Image.NRGBAAt(0, 0); got != tileColor(grid.TopLeft) {
		t.Errorf("background pixel = %v", got)
	}
}

func TestEstimate(t *testing.T) {
	box := geo.BBox{MinLat: -10, MinLon: -10, MaxLat: 10, MaxLon: 10}
	grid, _ := tilegrid.FromBBox(box, 1)
	tiles, canvas, crop := Estimate(grid)
	if tiles != 4 || canvas != image.Pt(512, 512) {
		t.Errorf("Estimate = %d, %v", tiles, canvas)
	}
	if crop.X <= 0 || crop.Y <= 0 {
		t.Errorf("crop = %v", crop)
	}
}
