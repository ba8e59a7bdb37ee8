// Package overlay は緯度経度で定義した線や図形を地図に重ねる
package overlay

import (
	"errors"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"mapmaker/internal/fonts"
	"mapmaker/internal/geo"
	"mapmaker/internal/render"
)

var (
	black = color.NRGBA{0, 0, 0, 255}
	white = color.NRGBA{255, 255, 255, 255}
)

// Track 経路を結ぶ折れ線
type Track struct {
	Waypoints [][2]float64 // lat, lon
	Color     color.Color
	Width     float64
}

// NewTrack 既定は黒の1px
func NewTrack(waypoints [][2]float64) *Track {
	return &Track{Waypoints: waypoints, Color: black, Width: 1}
}

func (t *Track) Draw(dc *gg.Context, p render.Projection) {
	if len(t.Waypoints) < 2 || t.Width <= 0 {
		return
	}
	for _, wp := range t.Waypoints {
		dc.LineTo(p.Project(wp[0], wp[1]))
	}
	dc.SetColor(t.Color)
	dc.SetLineWidth(t.Width)
	dc.SetLineJoin(gg.LineJoinRound)
	dc.SetLineCap(gg.LineCapRound)
	dc.Stroke()
}

// BoxStyle 枠の描き方
type BoxStyle int

const (
	// BoxRegular 四辺を描く
	BoxRegular BoxStyle = iota
	// BoxBracket 角だけを描く
	BoxBracket
)

// Box BBox を示す矩形
type Box struct {
	BBox  geo.BBox
	Color color.Color
	Fill  color.Color // nil なら塗らない
	Width float64
	Style BoxStyle
}

// NewBox 既定は黒の1px枠
func NewBox(bbox geo.BBox) *Box {
	return &Box{BBox: bbox, Color: black, Width: 1}
}

func (b *Box) Draw(dc *gg.Context, p render.Projection) {
	left, top := p.Project(b.BBox.MaxLat, b.BBox.MinLon)
	right, bottom := p.Project(b.BBox.MinLat, b.BBox.MaxLon)

	if b.Fill != nil {
		dc.DrawRectangle(left, top, right-left, bottom-top)
		dc.SetColor(b.Fill)
		dc.Fill()
	}
	if b.Color == nil || b.Width <= 0 {
		return
	}
	dc.SetColor(b.Color)
	dc.SetLineWidth(b.Width)

	if b.Style != BoxBracket {
		dc.DrawRectangle(left, top, right-left, bottom-top)
		dc.Stroke()
		return
	}

	// 短い辺の半分が腕、残り半分が空白になる
	arm := math.Floor(math.Min(right-left, bottom-top) / 4)
	xa, xb := left+arm, right-arm
	ya, yb := top+arm, bottom-arm
	brackets := [][6]float64{
		{left, ya, left, top, xa, top},
		{xb, top, right, top, right, ya},
		{right, yb, right, bottom, xb, bottom},
		{xa, bottom, left, bottom, left, yb},
	}
	for _, br := range brackets {
		dc.MoveTo(br[0], br[1])
		dc.LineTo(br[2], br[3])
		dc.LineTo(br[4], br[5])
		dc.Stroke()
	}
}

// Circle 中心と半径 (メートル) で定義した円
type Circle struct {
	Lat, Lon float64
	Radius   float64
	Color    color.Color
	Fill     color.Color
	Width    float64
	// Marker 中心に小さな点を描く
	Marker bool
}

// NewCircle 既定は黒の1px枠
func NewCircle(lat, lon, radius float64) *Circle {
	return &Circle{Lat: lat, Lon: lon, Radius: radius, Color: black, Width: 1}
}

func (c *Circle) Draw(dc *gg.Context, p render.Projection) {
	box, err := geo.FromRadius(c.Lat, c.Lon, c.Radius)
	if err != nil {
		return
	}
	left, top := p.Project(box.MaxLat, box.MinLon)
	right, bottom := p.Project(box.MinLat, box.MaxLon)
	dc.DrawEllipse((left+right)/2, (top+bottom)/2, (right-left)/2, (bottom-top)/2)
	if c.Fill != nil {
		dc.SetColor(c.Fill)
		dc.FillPreserve()
	}
	if c.Color != nil && c.Width > 0 {
		dc.SetColor(c.Color)
		dc.SetLineWidth(c.Width)
		dc.StrokePreserve()
	}
	dc.ClearPath()

	if c.Marker && c.Color != nil {
		x, y := p.Project(c.Lat, c.Lon)
		dc.DrawCircle(x, y, 2)
		dc.SetColor(c.Color)
		dc.Fill()
	}
}

// ErrShape 多角形の頂点が足りない
var ErrShape = errors.New("shape needs at least three points")

// Shape 閉じた多角形
type Shape struct {
	Points [][2]float64
	Color  color.Color
	Fill   color.Color
}

// NewShape 頂点は3つ以上必要
func NewShape(points [][2]float64) (*Shape, error) {
	if len(points) < 3 {
		return nil, ErrShape
	}
	return &Shape{Points: points, Color: black}, nil
}

func (s *Shape) Draw(dc *gg.Context, p render.Projection) {
	for _, pt := range s.Points {
		dc.LineTo(p.Project(pt[0], pt[1]))
	}
	dc.ClosePath()
	if s.Fill != nil {
		dc.SetColor(s.Fill)
		dc.FillPreserve()
	}
	if s.Color != nil {
		dc.SetColor(s.Color)
		dc.SetLineWidth(1)
		dc.StrokePreserve()
	}
	dc.ClearPath()
}

// Symbol 地点マーカーの形
type Symbol string

const (
	Dot      Symbol = "dot"
	Square   Symbol = "square"
	Triangle Symbol = "triangle"
)

// Point ラベル付きの地点
type Point struct {
	Lat, Lon float64
	Symbol   Symbol
	Label    string
}

// Points 地点マーカーの集合
type Points struct {
	Points []Point
	Color  color.Color // 縁の色
	Fill   color.Color
	Border float64
	Size   float64
}

// NewPoints 既定は白塗りで黒縁なしの 4px
func NewPoints(points ...Point) *Points {
	return &Points{Points: points, Color: black, Fill: white, Size: 4}
}

func (ps *Points) Draw(dc *gg.Context, p render.Projection) {
	face := fonts.Face(fonts.Regular, 12)
	for _, pt := range ps.Points {
		x, y := p.Project(pt.Lat, pt.Lon)
		ps.symbol(dc, pt.Symbol, x, y)

		if pt.Label == "" {
			continue
		}
		dc.SetFontFace(face)
		ly := y + ps.Size/2 + 2
		// 白い縁取りの上に黒文字
		dc.SetColor(white)
		for _, d := range [][2]float64{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			dc.DrawStringAnchored(pt.Label, x+d[0], ly+d[1], 0.5, 1)
		}
		dc.SetColor(black)
		dc.DrawStringAnchored(pt.Label, x, ly, 0.5, 1)
	}
}

func (ps *Points) symbol(dc *gg.Context, sym Symbol, x, y float64) {
	d := ps.Size / 2
	switch sym {
	case Square:
		dc.DrawRectangle(x-d, y-d, ps.Size, ps.Size)
	case Triangle:
		// 正三角形、高さが Size
		side := ps.Size / math.Sin(math.Pi/3)
		dc.MoveTo(x, y-d)
		dc.LineTo(x+side/2, y+d)
		dc.LineTo(x-side/2, y+d)
		dc.ClosePath()
	default:
		dc.DrawCircle(x, y, d)
	}
	if ps.Fill != nil {
		dc.SetColor(ps.Fill)
		dc.FillPreserve()
	}
	if ps.Color != nil && ps.Border > 0 {
		dc.SetColor(ps.Color)
		dc.SetLineWidth(ps.Border)
		dc.StrokePreserve()
	}
	dc.ClearPath()
}
