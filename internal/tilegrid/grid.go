// Package tilegrid はBBoxを覆うタイルの矩形集合とローカルなピクセル座標を扱う
package tilegrid

import (
	"fmt"
	"image"
	"math"

	"mapmaker/internal/geo"
)

// Grid ズーム固定のタイル矩形。生成後は不変
type Grid struct {
	TopLeft     geo.Tile
	BottomRight geo.Tile
	Zoom        int
	BBox        geo.BBox
}

// FromBBox BBox の北西角と南東角のタイルから Grid を作る
func FromBBox(bbox geo.BBox, zoom int) (Grid, error) {
	if err := bbox.Validate(); err != nil {
		return Grid{}, err
	}
	nw, err := geo.TileIndex(bbox.MaxLat, bbox.MinLon, zoom)
	if err != nil {
		return Grid{}, fmt.Errorf("north west corner: %w", err)
	}
	se, err := geo.TileIndex(bbox.MinLat, bbox.MaxLon, zoom)
	if err != nil {
		return Grid{}, fmt.Errorf("south east corner: %w", err)
	}

	return Grid{
		TopLeft:     geo.Tile{X: min(nw.X, se.X), Y: min(nw.Y, se.Y), Z: zoom},
		BottomRight: geo.Tile{X: max(nw.X, se.X), Y: max(nw.Y, se.Y), Z: zoom},
		Zoom:        zoom,
		BBox:        bbox,
	}, nil
}

// Size 列数と行数
func (g Grid) Size() (cols, rows int) {
	return g.BottomRight.X - g.TopLeft.X + 1, g.BottomRight.Y - g.TopLeft.Y + 1
}

// NumTiles タイル総数
func (g Grid) NumTiles() int {
	cols, rows := g.Size()
	return cols * rows
}

// Tiles 取得すべきタイルを行優先で返す
func (g Grid) Tiles() []geo.Tile {
	tiles := make([]geo.Tile, 0, g.NumTiles())
	for y := g.TopLeft.Y; y <= g.BottomRight.Y; y++ {
		for x := g.TopLeft.X; x <= g.BottomRight.X; x++ {
			tiles = append(tiles, geo.Tile{X: x, Y: y, Z: g.Zoom})
		}
	}
	return tiles
}

// Offset タイルの左上がキャンバス上で何タイル目にあるか
func (g Grid) Offset(t geo.Tile) (int, int) {
	return t.X - g.TopLeft.X, t.Y - g.TopLeft.Y
}

// PixelFraction 点をグリッド左上タイルからの相対位置 (タイル単位の小数) で返す。
// ピクセル座標にはタイルサイズを掛ける必要があるが、サイズは最初のタイル取得まで分からない
func (g Grid) PixelFraction(lat, lon float64) (float64, float64) {
	fx, fy := geo.TileFraction(lat, lon, g.Zoom)
	return fx - float64(g.TopLeft.X), fy - float64(g.TopLeft.Y)
}

// ToPixels キャンバス上のピクセル座標 (切り上げ)
func (g Grid) ToPixels(lat, lon float64, tileSize image.Point) (int, int) {
	fx, fy := g.PixelFraction(lat, lon)
	return int(math.Ceil(fx * float64(tileSize.X))), int(math.Ceil(fy * float64(tileSize.Y)))
}

// CropBox BBox に相当するキャンバス上の矩形
func (g Grid) CropBox(tileSize image.Point) image.Rectangle {
	left, bottom := g.ToPixels(g.BBox.MinLat, g.BBox.MinLon, tileSize)
	right, top := g.ToPixels(g.BBox.MaxLat, g.BBox.MaxLon, tileSize)
	return image.Rect(left, top, right, bottom)
}

// CanvasSize グリッド全体のピクセルサイズ
func (g Grid) CanvasSize(tileSize image.Point) image.Point {
	cols, rows := g.Size()
	return image.Pt(cols*tileSize.X, rows*tileSize.Y)
}

// FitZoom タイル数が maxTiles 以下に収まる最も高いズーム (maxZoom まで)
func FitZoom(bbox geo.BBox, maxZoom, maxTiles int) (int, error) {
	if maxTiles < 1 {
		return 0, fmt.Errorf("%w: tile budget %d", geo.ErrUnsupportedZoom, maxTiles)
	}
	if err := geo.ValidZoom(maxZoom); err != nil {
		return 0, err
	}
	for z := maxZoom; z > 0; z-- {
		g, err := FromBBox(bbox, z)
		if err != nil {
			return 0, err
		}
		if g.NumTiles() <= maxTiles {
			return z, nil
		}
	}
	if _, err := FromBBox(bbox, 0); err != nil {
		return 0, err
	}
	return 0, nil
}
