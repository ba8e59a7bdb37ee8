package compose

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"mapmaker/internal/fonts"
	"mapmaker/internal/geo"
)

// scaleSegments 縮尺バーの区切り数
const scaleSegments = 4

// ScaleBar 地図の縮尺。長さは地図の幅の約1/4に収まるきりのよい値
type ScaleBar struct {
	Slot     Placement
	Color    color.Color
	AltColor color.Color
	// BarHeight バーの太さ (px)
	BarHeight int
	FontSize  float64

	bbox     geo.BBox
	mapWidth int
	margin   int
}

// NewScaleBar bbox は地図の範囲、mapWidth はその地図画像の幅 (px)。
// 南端の東西距離から縮尺を求める
func NewScaleBar(slot Placement, bbox geo.BBox, mapWidth int) *ScaleBar {
	return &ScaleBar{
		Slot:      slot,
		Color:     color.Black,
		AltColor:  color.White,
		BarHeight: 6,
		FontSize:  10,
		bbox:      bbox,
		mapWidth:  mapWidth,
		margin:    8,
	}
}

func (s *ScaleBar) Placement() Placement { return s.Slot }

// niceLength length 以下で最大の {1,2,5}×10^k
func niceLength(length float64) float64 {
	if length <= 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return 0
	}
	exp := math.Pow(10, math.Floor(math.Log10(length)))
	for _, f := range []float64{5, 2, 1} {
		if f*exp <= length {
			return f * exp
		}
	}
	return exp
}

// formatDistance 1000m 以上は km
func formatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%g km", meters/1000)
	}
	return fmt.Sprintf("%g m", meters)
}

// layout バーの長さ (m, px) とラベル
func (s *ScaleBar) layout() (meters, px float64, label string) {
	if s.mapWidth <= 0 {
		return 0, 0, ""
	}
	mpp := s.bbox.WidthMeters() / float64(s.mapWidth)
	if mpp <= 0 {
		return 0, 0, ""
	}
	meters = niceLength(float64(s.mapWidth) / 4 * mpp)
	if meters == 0 {
		return 0, 0, ""
	}
	return meters, math.Round(meters / mpp), formatDistance(meters)
}

func (s *ScaleBar) Size(image.Point) image.Point {
	_, px, label := s.layout()
	if px <= 0 {
		return image.Point{}
	}
	face := fonts.Face(fonts.Regular, s.FontSize)
	labelW := font.MeasureString(face, label).Ceil()
	labelH := face.Metrics().Height.Ceil()

	w := int(px) + labelW + 2*s.margin
	h := s.BarHeight + 2 + labelH + 2*s.margin
	return image.Pt(w, h)
}

func (s *ScaleBar) Draw(dc *gg.Context, size image.Point) {
	_, px, label := s.layout()
	if px <= 0 || size.X <= 0 {
		return
	}
	face := fonts.Face(fonts.Regular, s.FontSize)
	labelW := float64(font.MeasureString(face, label).Ceil())
	x0 := float64(s.margin) + labelW/2
	y0 := float64(s.margin)
	bh := float64(s.BarHeight)
	seg := px / scaleSegments

	for i := 0; i < scaleSegments; i++ {
		fill := s.AltColor
		if i%2 == 0 {
			fill = s.Color
		}
		dc.DrawRectangle(x0+float64(i)*seg, y0, seg, bh)
		dc.SetColor(fill)
		dc.Fill()
	}
	dc.DrawRectangle(x0+0.5, y0+0.5, px-1, bh-1)
	dc.SetColor(s.Color)
	dc.SetLineWidth(1)
	dc.Stroke()

	dc.SetFontFace(face)
	dc.SetColor(s.Color)
	ly := y0 + bh + 2
	dc.DrawStringAnchored("0", x0, ly, 0.5, 1)
	dc.DrawStringAnchored(label, x0+px, ly, 0.5, 1)
}
