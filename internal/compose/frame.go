package compose

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/fogleman/gg"
)

// FrameStyle 枠の描き方
type FrameStyle int

const (
	// FrameSolid 単色の枠
	FrameSolid FrameStyle = iota
	// FrameCoordinates 区切りのよい緯度経度ごとに色を交互に変える枠
	FrameCoordinates
)

func (s FrameStyle) String() string {
	if s == FrameCoordinates {
		return "coordinates"
	}
	return "solid"
}

// ParseFrameStyle "solid" または "coordinates"
func ParseFrameStyle(raw string) (FrameStyle, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "solid":
		return FrameSolid, nil
	case "coordinates", "coords":
		return FrameCoordinates, nil
	}
	return 0, fmt.Errorf("%w: unknown frame style %q", ErrLayout, raw)
}

// DefaultTickCount 枠の1辺あたりの目標の区切り数
const DefaultTickCount = 5

// Frame 地図と余白の間の枠。幅の分だけ四辺とも画像が大きくなる
type Frame struct {
	Width    int
	Color    color.Color
	AltColor color.Color
	Style    FrameStyle
}

// NewFrame 黒と白の枠
func NewFrame(width int, style FrameStyle) *Frame {
	return &Frame{Width: width, Color: color.Black, AltColor: color.White, Style: style}
}

func (f *Frame) validate() error {
	if f.Width < 0 {
		return fmt.Errorf("%w: negative frame width %d", ErrLayout, f.Width)
	}
	if f.Color == nil {
		f.Color = color.Black
	}
	if f.AltColor == nil {
		f.AltColor = color.White
	}
	return nil
}

// draw dc は地図に枠の幅を足した大きさ
func (f *Frame) draw(dc *gg.Context, proj Projector, mapSize image.Point) {
	if f.Style == FrameCoordinates && proj != nil {
		f.drawCoordinates(dc, proj, mapSize)
		return
	}
	f.drawSolid(dc)
}

func (f *Frame) drawSolid(dc *gg.Context) {
	w, h, fw := float64(dc.Width()), float64(dc.Height()), float64(f.Width)
	dc.SetColor(f.Color)
	dc.DrawRectangle(0, 0, w, fw)
	dc.DrawRectangle(0, h-fw, w, fw)
	dc.DrawRectangle(0, fw, fw, h-2*fw)
	dc.DrawRectangle(w-fw, fw, fw, h-2*fw)
	dc.Fill()
}

func (f *Frame) drawCoordinates(dc *gg.Context, proj Projector, mapSize image.Point) {
	bbox := proj.BBox()
	fw := float64(f.Width)
	w, h := float64(dc.Width()), float64(dc.Height())

	// 経度の区切り: 西から東へ
	xs := []float64{fw}
	for _, lon := range tickValues(bbox.MinLon, bbox.MaxLon, DefaultTickCount) {
		x, _ := proj.Project(bbox.MaxLat, lon)
		xs = append(xs, math.Round(x)+fw)
	}
	xs = append(xs, fw+float64(mapSize.X))

	// 緯度の区切り: 南から北へ
	ys := []float64{fw + float64(mapSize.Y)}
	for _, lat := range tickValues(bbox.MinLat, bbox.MaxLat, DefaultTickCount) {
		_, y := proj.Project(lat, bbox.MinLon)
		ys = append(ys, math.Round(y)+fw)
	}
	ys = append(ys, fw)

	for i := 0; i+1 < len(xs); i++ {
		f.segment(dc, i, xs[i], 0, xs[i+1]-xs[i], fw)
		f.segment(dc, i, xs[i], h-fw, xs[i+1]-xs[i], fw)
	}
	for i := 0; i+1 < len(ys); i++ {
		f.segment(dc, i, 0, ys[i+1], fw, ys[i]-ys[i+1])
		f.segment(dc, i, w-fw, ys[i+1], fw, ys[i]-ys[i+1])
	}

	// 角は区切りに関係なく塗りつぶす
	dc.SetColor(f.Color)
	for _, p := range [][2]float64{{0, 0}, {w - fw, 0}, {0, h - fw}, {w - fw, h - fw}} {
		dc.DrawRectangle(p[0], p[1], fw, fw)
	}
	dc.Fill()
}

// segment 奇数番目は Color、偶数番目は AltColor。縁は1pxの Color
func (f *Frame) segment(dc *gg.Context, i int, x, y, w, h float64) {
	if w <= 0 || h <= 0 {
		return
	}
	fill := f.AltColor
	if i%2 == 1 {
		fill = f.Color
	}
	dc.DrawRectangle(x, y, w, h)
	dc.SetColor(fill)
	dc.Fill()

	dc.DrawRectangle(x+0.5, y+0.5, w-1, h-1)
	dc.SetColor(f.Color)
	dc.SetLineWidth(1)
	dc.Stroke()
}

// tickUnits 候補となる区切りの単位 (度): 1度、1分、30秒、1秒
var tickUnits = []float64{1, 1.0 / 60, 0.5 / 60, 1.0 / 3600}

// tickInterval 区切りの数が n 以上で n に近くなる、区切りのよい間隔 (度)。
// 大きな単位から順に試す
func tickInterval(span float64, n int) float64 {
	if span <= 0 || n <= 0 {
		return 0
	}
	for _, unit := range tickUnits {
		k := math.Floor(span/unit + 1e-9)
		if k >= float64(n) {
			return math.Floor(k/float64(n)) * unit
		}
	}
	return span / float64(n)
}

// tickValues start と end の間 (両端を除く) の区切り
func tickValues(start, end float64, n int) []float64 {
	step := tickInterval(end-start, n)
	if step <= 0 {
		return nil
	}
	var ticks []float64
	for i := 1; ; i++ {
		v := start + float64(i)*step
		if v >= end-step*1e-6 {
			break
		}
		ticks = append(ticks, v)
	}
	return ticks
}
