package compose

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"mapmaker/internal/fonts"
)

// CompassRose 北を指す矢印
type CompassRose struct {
	Slot    Placement
	Color   color.Color
	Outline color.Color // nil なら縁取りなし
	// Marker 矢印の上に "N" を描く
	Marker bool

	margin int
}

// NewCompassRose 既定の位置は地図の SE
func NewCompassRose(slot Placement) *CompassRose {
	return &CompassRose{Slot: slot, Color: color.Black, margin: 12}
}

func (r *CompassRose) Placement() Placement { return r.Slot }

// Size 地図の幅の5%、高さの10%に余白を足す
func (r *CompassRose) Size(mapSize image.Point) image.Point {
	w := int(float64(mapSize.X) * 0.05)
	h := int(float64(mapSize.Y) * 0.1)
	return image.Pt(w+2*r.margin, h+2*r.margin)
}

//	       a
//	      /\
//	    /    \
//	  /        \
//	b ---d  e--- c
//	     |  |
//	     |  |
//	    f  i  g
func (r *CompassRose) Draw(dc *gg.Context, size image.Point) {
	w := float64(size.X - 2*r.margin)
	h := float64(size.Y - 2*r.margin)
	if w <= 0 || h <= 0 {
		return
	}

	var markerH, markerPad float64
	if r.Marker {
		face := fonts.Face(fonts.Bold, math.Max(6, float64(size.Y)/5))
		dc.SetFontFace(face)
		_, markerH = dc.MeasureString("N")
		markerPad = math.Floor(markerH / 16)
		h -= markerH + markerPad
		if r.Outline != nil {
			dc.SetColor(r.Outline)
			for _, d := range [][2]float64{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				dc.DrawStringAnchored("N", float64(size.X)/2+d[0], float64(r.margin)+d[1], 0.5, 1)
			}
		}
		dc.SetColor(r.Color)
		dc.DrawStringAnchored("N", float64(size.X)/2, float64(r.margin), 0.5, 1)
	}

	headH := math.Floor(h / 2.2)
	tailH := h - headH
	tailW := math.Floor(w / 4)

	by := headH + math.Floor(headH/4)
	points := [][2]float64{
		{math.Floor(w / 2), 0},                        // a
		{w, by},                                       // c
		{math.Floor(w/2) + math.Floor(tailW/2), headH}, // e
		{w - tailW + math.Floor(tailW/6), h},          // g
		{math.Floor(w / 2), h - math.Floor(tailH/3)},  // i
		{tailW - math.Floor(tailW/6), h},              // f
		{math.Floor(w/2) - math.Floor(tailW/2), headH}, // d
		{0, by},                                       // b
	}

	ox := float64(r.margin)
	oy := float64(r.margin) + markerH + markerPad
	for _, p := range points {
		dc.LineTo(p[0]+ox, p[1]+oy)
	}
	dc.ClosePath()
	dc.SetColor(r.Color)
	dc.FillPreserve()
	if r.Outline != nil {
		dc.SetColor(r.Outline)
		dc.SetLineWidth(1)
		dc.StrokePreserve()
	}
	dc.ClearPath()
}
