package mapmaker

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"mapmaker/internal/compose"
	"mapmaker/internal/geo"
	"mapmaker/internal/render"
)

const (
	// DefaultZoom ズーム指定がないときの既定値
	DefaultZoom = 8
	// DefaultStyle スタイル指定がないときの既定値
	DefaultStyle = "osm"
)

// Request 地図1枚の注文
type Request struct {
	BBox  geo.BBox
	Zoom  int
	Style string

	// Hillshading 陰影スタイルを重ねる
	Hillshading bool
	// Copyright [copyright] の表示を右上の余白に入れる
	Copyright bool

	Background color.Color
	Margins    compose.Margins
	Frame      *compose.Frame
	Title      *compose.Cartouche
	Comment    *compose.Cartouche
	Compass    *compose.CompassRose
	ScaleBar   bool

	Overlays []render.Overlay
	Progress render.ProgressFunc
}

func (r *Request) applyDefaults() {
	if r.Style == "" {
		r.Style = DefaultStyle
	}
	if r.Background == nil {
		r.Background = color.White
	}
}

// Info ダウンロード前の見積もり
type Info struct {
	Style        string
	URLTemplate  string
	BBox         geo.BBox
	Zoom         int
	Tiles        int
	WidthMeters  float64
	HeightMeters float64
	// Canvas 貼り合わせるタイル全体の大きさ
	Canvas image.Point
	// MapSize 切り抜いた地図の大きさ
	MapSize image.Point
	// ImageSize 余白と枠を含めた出力の大きさ
	ImageSize image.Point

	CacheDir   string
	CacheLimit int64
}

// Area 範囲の幅と高さ。どちらかが 1km を超えたら km で 0.1 単位に切り捨てる
func (i *Info) Area() string {
	w, h := i.WidthMeters, i.HeightMeters
	if w > 1000 || h > 1000 {
		return fmt.Sprintf("%.1f x %.1f km", float64(int(w/100))/10, float64(int(h/100))/10)
	}
	return fmt.Sprintf("%d x %d m", int(w), int(h))
}

// Write 人が読む形式で出力する
func (i *Info) Write(w io.Writer) error {
	lines := []string{
		"-------------------------------",
		fmt.Sprintf("Area:        %s", i.Area()),
		fmt.Sprintf("Zoom Level:  %d", i.Zoom),
		fmt.Sprintf("Dimensions:  %d x %d px", i.MapSize.X, i.MapSize.Y),
		fmt.Sprintf("Image:       %d x %d px", i.ImageSize.X, i.ImageSize.Y),
		fmt.Sprintf("Tiles:       %d", i.Tiles),
		fmt.Sprintf("Map Style:   %s", i.Style),
		fmt.Sprintf("URL Pattern: %s", i.URLTemplate),
		fmt.Sprintf("Tile Cache:  %s (%s)", i.CacheDir, cacheLimit(i.CacheLimit)),
		"-------------------------------",
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func cacheLimit(limit int64) string {
	if limit <= 0 {
		return "no limit"
	}
	return fmt.Sprintf("limit %d MB", limit/1000000)
}
