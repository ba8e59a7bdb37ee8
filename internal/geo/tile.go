package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	// MinMercatorLat / MaxMercatorLat Webメルカトルで扱える緯度の範囲
	MinMercatorLat = -85.0511
	MaxMercatorLat = 85.0511

	// MaxZoom 対応する最大ズームレベル
	MaxZoom = 19
)

// Tile スリッピーマップのタイル番号
type Tile struct {
	X int
	Y int
	Z int
}

func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Parent 1段低いズームで t を含むタイル
func (t Tile) Parent() Tile {
	p := t.maptile().Parent()
	return Tile{X: int(p.X), Y: int(p.Y), Z: int(p.Z)}
}

func (t Tile) maptile() maptile.Tile {
	return maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Z))
}

// ValidZoom ズームレベルを検証
func ValidZoom(zoom int) error {
	if zoom < 0 || zoom > MaxZoom {
		return fmt.Errorf("%w: %d (expected 0..%d)", ErrUnsupportedZoom, zoom, MaxZoom)
	}
	return nil
}

// ClampMercatorLat 緯度をメルカトル有効範囲に収める
func ClampMercatorLat(lat float64) float64 {
	return math.Max(MinMercatorLat, math.Min(MaxMercatorLat, lat))
}

// TileIndex 緯度経度を含むタイル番号を返す
func TileIndex(lat, lon float64, zoom int) (Tile, error) {
	if err := ValidZoom(zoom); err != nil {
		return Tile{}, err
	}
	if math.IsNaN(lat) || lat < MinMercatorLat || lat > MaxMercatorLat {
		return Tile{}, fmt.Errorf("%w: latitude %v outside mercator range", ErrInvalidBBox, lat)
	}
	if !ValidLon(lon) {
		return Tile{}, fmt.Errorf("%w: longitude %v out of range", ErrInvalidBBox, lon)
	}

	t := maptile.At(orb.Point{lon, lat}, maptile.Zoom(zoom))
	// 東端 (180度) は次のタイル番号になるので最後のタイルに寄せる
	last := uint32(1)<<uint(zoom) - 1
	if t.X > last {
		t.X = last
	}
	if t.Y > last {
		t.Y = last
	}
	return Tile{X: int(t.X), Y: int(t.Y), Z: zoom}, nil
}

// TileBounds タイルの範囲を BBox で返す (北西角と南東角)
func TileBounds(x, y, zoom int) BBox {
	b := Tile{X: x, Y: y, Z: zoom}.maptile().Bound()
	return BBox{
		MinLat: b.Min.Lat(),
		MinLon: b.Min.Lon(),
		MaxLat: b.Max.Lat(),
		MaxLon: b.Max.Lon(),
	}
}

// TileFraction ワールド座標をタイル単位 (小数) で返す
func TileFraction(lat, lon float64, zoom int) (float64, float64) {
	p := maptile.Fraction(orb.Point{lon, ClampMercatorLat(lat)}, maptile.Zoom(zoom))
	return p.X(), p.Y()
}
