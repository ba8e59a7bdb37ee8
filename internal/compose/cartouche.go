package compose

import (
	"image"
	"image/color"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"mapmaker/internal/fonts"
)

// Cartouche タイトルや注記の文字枠
type Cartouche struct {
	Text        string
	Slot        Placement
	Color       color.Color
	Background  color.Color // nil なら透明
	BorderWidth int
	BorderColor color.Color // nil なら文字色
	FontSize    float64
	Weight      fonts.Weight

	margin  Margins
	padding Margins
}

// NewCartouche 黒文字、枠なし
func NewCartouche(text string, slot Placement, fontSize float64) *Cartouche {
	return &Cartouche{
		Text:     text,
		Slot:     slot,
		Color:    color.Black,
		FontSize: fontSize,
		margin:   Margins{4, 4, 4, 4},
		padding:  Margins{4, 8, 4, 8},
	}
}

// NewTitle 既定の位置は余白の N、16pt
func NewTitle(text string) *Cartouche { return NewCartouche(text, N, 16) }

// NewComment 既定の位置は余白の SSE、12pt
func NewComment(text string) *Cartouche { return NewCartouche(text, SSE, 12) }

func (c *Cartouche) Placement() Placement { return c.Slot }

func (c *Cartouche) face() font.Face {
	return fonts.Face(c.Weight, c.FontSize)
}

func (c *Cartouche) Size(image.Point) image.Point {
	if strings.TrimSpace(c.Text) == "" {
		return image.Point{}
	}
	face := c.face()
	w := font.MeasureString(face, c.Text).Ceil()
	h := face.Metrics().Height.Ceil()

	w += c.margin.Left + c.margin.Right + c.padding.Left + c.padding.Right + 2*c.BorderWidth
	h += c.margin.Top + c.margin.Bottom + c.padding.Top + c.padding.Bottom + 2*c.BorderWidth
	return image.Pt(w, h)
}

// maskedMargin 地図側に向いた辺の外側余白を消して枠に揃える
func (c *Cartouche) maskedMargin() Margins {
	m := c.margin
	switch c.Slot {
	case NNW, SSW:
		m.Left = 0
	case NNE, SSE:
		m.Right = 0
	case ENE, WNW:
		m.Top = 0
	case ESE, WSW:
		m.Bottom = 0
	}
	return m
}

// textAnchor 文字の基準位置。横は 'l' 'm' 'r'、縦は 't' 'm' 'b'
func textAnchor(p Placement) (h, v byte) {
	switch p {
	case NW, NNE, WSW:
		return 'r', 'b'
	case NNW, NE, ESE:
		return 'l', 'b'
	case N:
		return 'm', 'b'
	case ENE, SE, SSW:
		return 'l', 't'
	case E:
		return 'l', 'm'
	case SSE, SW, WNW:
		return 'r', 't'
	case S:
		return 'm', 't'
	case W:
		return 'r', 'm'
	}
	return 'm', 'm'
}

func (c *Cartouche) Draw(dc *gg.Context, size image.Point) {
	if strings.TrimSpace(c.Text) == "" {
		return
	}
	w, h := float64(size.X), float64(size.Y)
	m := c.maskedMargin()
	bw := float64(c.BorderWidth)

	boxX, boxY := float64(m.Left), float64(m.Top)
	boxW, boxH := w-float64(m.Left+m.Right), h-float64(m.Top+m.Bottom)
	if c.Background != nil {
		dc.DrawRectangle(boxX, boxY, boxW, boxH)
		dc.SetColor(c.Background)
		dc.Fill()
	}
	if bw > 0 {
		border := c.BorderColor
		if border == nil {
			border = c.Color
		}
		dc.DrawRectangle(boxX+bw/2, boxY+bw/2, boxW-bw, boxH-bw)
		dc.SetColor(border)
		dc.SetLineWidth(bw)
		dc.Stroke()
	}

	face := c.face()
	metrics := face.Metrics()
	ascent := float64(metrics.Ascent.Ceil())
	descent := float64(metrics.Descent.Ceil())
	textW := float64(font.MeasureString(face, c.Text).Ceil())

	ha, va := textAnchor(c.Slot)
	var x, baseline float64
	switch ha {
	case 'l':
		x = float64(c.padding.Left + m.Left)
	case 'r':
		x = w - float64(c.padding.Right+m.Right) - textW
	default:
		x = w/2 - textW/2
	}
	switch va {
	case 't':
		baseline = float64(c.padding.Top+m.Top) + ascent
	case 'b':
		baseline = h - float64(c.padding.Bottom+m.Bottom) - descent
	default:
		baseline = h/2 + (ascent-descent)/2
	}

	dc.SetFontFace(face)
	dc.SetColor(c.Color)
	dc.DrawString(c.Text, x, baseline)
}
