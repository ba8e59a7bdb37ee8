package tilegrid

import (
	"errors"
	"image"
	"math"
	"testing"

	"mapmaker/internal/geo"
)

func TestFromBBox_ContainsBBox(t *testing.T) {
	boxes := []geo.BBox{
		{MinLat: 47.37, MinLon: 10.95, MaxLat: 47.44, MaxLon: 11.13},
		{MinLat: 35.60, MinLon: 139.65, MaxLat: 35.75, MaxLon: 139.85},
		{MinLat: -34.0, MinLon: 151.0, MaxLat: -33.7, MaxLon: 151.3},
		{MinLat: -1, MinLon: -1, MaxLat: 1, MaxLon: 1},
	}
	for _, box := range boxes {
		for _, zoom := range []int{0, 5, 10, 14} {
			g, err := FromBBox(box, zoom)
			if err != nil {
				t.Fatalf("FromBBox(%s, %d): %v", box, zoom, err)
			}
			nw := geo.TileBounds(g.TopLeft.X, g.TopLeft.Y, zoom)
			se := geo.TileBounds(g.BottomRight.X, g.BottomRight.Y, zoom)
			covered := nw.Combine(se)
			if covered.Combine(box) != covered {
				t.Errorf("zoom %d: grid %s does not contain %s", zoom, covered, box)
			}
			cols, rows := g.Size()
			if g.NumTiles() != cols*rows || len(g.Tiles()) != cols*rows {
				t.Errorf("zoom %d: tile count mismatch", zoom)
			}
		}
	}
}

func TestFromBBox_Errors(t *testing.T) {
	box := geo.BBox{MinLat: 10, MinLon: 10, MaxLat: 20, MaxLon: 20}
	if _, err := FromBBox(box, 25); !errors.Is(err, geo.ErrUnsupportedZoom) {
		t.Errorf("zoom 25: error = %v", err)
	}
	polar := geo.BBox{MinLat: 80, MinLon: 10, MaxLat: 89, MaxLon: 20}
	if _, err := FromBBox(polar, 5); !errors.Is(err, geo.ErrInvalidBBox) {
		t.Errorf("polar box: error = %v", err)
	}
}

func TestGrid_PixelFraction(t *testing.T) {
	box := geo.BBox{MinLat: 47.0, MinLon: 10.0, MaxLat: 48.0, MaxLon: 12.0}
	g, err := FromBBox(box, 8)
	if err != nil {
		t.Fatal(err)
	}

	// 左上タイルの北西角は (0, 0)
	nw := geo.TileBounds(g.TopLeft.X, g.TopLeft.Y, g.Zoom)
	fx, fy := g.PixelFraction(nw.MaxLat, nw.MinLon)
	if math.Abs(fx) > 1e-9 || math.Abs(fy) > 1e-9 {
		t.Errorf("PixelFraction(top left corner) = %v,%v", fx, fy)
	}

	// 右下タイルの南東角は (cols, rows)
	se := geo.TileBounds(g.BottomRight.X, g.BottomRight.Y, g.Zoom)
	fx, fy = g.PixelFraction(se.MinLat, se.MaxLon)
	cols, rows := g.Size()
	if math.Abs(fx-float64(cols)) > 1e-9 || math.Abs(fy-float64(rows)) > 1e-9 {
		t.Errorf("PixelFraction(bottom right corner) = %v,%v want %d,%d", fx, fy, cols, rows)
	}
}

func TestGrid_CropBox(t *testing.T) {
	box := geo.BBox{MinLat: 47.37, MinLon: 10.95, MaxLat: 47.44, MaxLon: 11.13}
	g, err := FromBBox(box, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, size := range []image.Point{{256, 256}, {512, 512}} {
		crop := g.CropBox(size)
		canvas := image.Rectangle{Max: g.CanvasSize(size)}
		if crop.Empty() {
			t.Fatalf("empty crop box for tile size %v", size)
		}
		if !crop.In(canvas) {
			t.Errorf("crop %v not inside canvas %v", crop, canvas)
		}
	}

	small := g.CropBox(image.Pt(256, 256))
	large := g.CropBox(image.Pt(512, 512))
	if d := large.Dx() - 2*small.Dx(); d < -2 || d > 2 {
		t.Errorf("crop width does not scale with tile size: %d vs %d", small.Dx(), large.Dx())
	}
}

func TestFitZoom(t *testing.T) {
	karwendel := geo.BBox{MinLat: 47.37, MinLon: 10.95, MaxLat: 47.44, MaxLon: 11.13}
	tests := []struct {
		name     string
		maxZoom  int
		maxTiles int
	}{
		{"small budget", 16, 4},
		{"medium budget", 16, 20},
		{"capped by max zoom", 9, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z, err := FitZoom(karwendel, tt.maxZoom, tt.maxTiles)
			if err != nil {
				t.Fatal(err)
			}
			if z > tt.maxZoom {
				t.Fatalf("zoom %d above max %d", z, tt.maxZoom)
			}
			g, _ := FromBBox(karwendel, z)
			if g.NumTiles() > tt.maxTiles {
				t.Errorf("zoom %d needs %d tiles, budget %d", z, g.NumTiles(), tt.maxTiles)
			}
			// 1段上げると予算を超えるか、上限に達している
			if z < tt.maxZoom {
				up, _ := FromBBox(karwendel, z+1)
				if up.NumTiles() <= tt.maxTiles {
					t.Errorf("zoom %d is not the highest fitting zoom", z)
				}
			}
		})
	}

	if _, err := FitZoom(karwendel, 16, 0); err == nil {
		t.Error("zero tile budget accepted")
	}
	if _, err := FitZoom(karwendel, 30, 4); !errors.Is(err, geo.ErrUnsupportedZoom) {
		t.Errorf("max zoom 30 error = %v", err)
	}
}
