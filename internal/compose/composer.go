// Package compose は切り抜いた地図の周囲と内側に枠、タイトル、方位記号、縮尺を配置して
// 最終的な画像を組み立てる。
//
// 余白 (MARGIN) のスロット:
//
//	NW      NNW  N  NNE    NE
//	     +--------------+
//	WNW  |  NW   N  NE  |  ENE
//	W    |  W    C  E   |  E
//	WSW  |  SW   S  SE  |  ESE
//	     +--------------+
//	SW      SSW  S  SSE    SE
//
// 枠の内側が地図 (MAP) のスロット
package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/fogleman/gg"

	"mapmaker/internal/geo"
	"mapmaker/internal/logger"
)

// ErrLayout スロットや余白、枠の指定が不正
var ErrLayout = errors.New("invalid layout")

// Decoration 地図に添える装飾
type Decoration interface {
	Placement() Placement
	// Size 地図のサイズから装飾に必要な大きさを決める
	Size(mapSize image.Point) image.Point
	// Draw 透明な dc (大きさ size) に描く
	Draw(dc *gg.Context, size image.Point)
}

// Projector 切り抜いた地図画像上の座標変換
type Projector interface {
	Project(lat, lon float64) (x, y float64)
	BBox() geo.BBox
}

// Margins 上右下左の余白 (px)
type Margins struct {
	Top, Right, Bottom, Left int
}

// Composer 装飾の配置を保持する。Compose は何度でも呼べる
type Composer struct {
	base       Margins
	frame      *Frame
	background color.Color
	onMap      []Decoration
	inMargin   []Decoration
}

// New 背景は白、余白なし、枠なし
func New() *Composer {
	return &Composer{background: color.White}
}

// SetMargin 装飾とは別に確保する余白。負の値は ErrLayout
func (c *Composer) SetMargin(m Margins) error {
	if m.Top < 0 || m.Right < 0 || m.Bottom < 0 || m.Left < 0 {
		return fmt.Errorf("%w: negative margin %+v", ErrLayout, m)
	}
	c.base = m
	return nil
}

// SetBackground 余白の色
func (c *Composer) SetBackground(bg color.Color) {
	if bg == nil {
		bg = color.White
	}
	c.background = bg
}

// SetFrame nil か幅 0 で枠を外す
func (c *Composer) SetFrame(f *Frame) error {
	if f == nil || f.Width == 0 {
		c.frame = nil
		return nil
	}
	if err := f.validate(); err != nil {
		return err
	}
	c.frame = f
	return nil
}

// Add 装飾を領域に加える。スロットが領域に合わなければ ErrLayout
func (c *Composer) Add(area Area, d Decoration) error {
	if d == nil {
		return fmt.Errorf("%w: nil decoration", ErrLayout)
	}
	if !area.Accepts(d.Placement()) {
		return fmt.Errorf("%w: slot %s is not valid in %s area", ErrLayout, d.Placement(), area)
	}
	switch area {
	case AreaMap:
		c.onMap = append(c.onMap, d)
	default:
		c.inMargin = append(c.inMargin, d)
	}
	return nil
}

// Margins 余白の装飾が必要とする大きさに基本の余白を足したもの。
// 角のスロットは上下と左右の両方を広げる
func (c *Composer) Margins(mapSize image.Point) Margins {
	var m Margins
	for _, d := range c.inMargin {
		size := d.Size(mapSize)
		p := d.Placement()
		switch {
		case p.northern():
			m.Top = max(m.Top, size.Y)
		case p.southern():
			m.Bottom = max(m.Bottom, size.Y)
		}
		switch {
		case p.western():
			m.Left = max(m.Left, size.X)
		case p.eastern():
			m.Right = max(m.Right, size.X)
		}
	}
	m.Top += c.base.Top
	m.Right += c.base.Right
	m.Bottom += c.base.Bottom
	m.Left += c.base.Left
	return m
}

// Compose 背景、地図、枠、装飾の順に重ねる
func (c *Composer) Compose(mapImg image.Image, proj Projector) (*image.NRGBA, error) {
	mapSize := mapImg.Bounds().Size()
	if mapSize.X <= 0 || mapSize.Y <= 0 {
		return nil, fmt.Errorf("%w: empty map image", ErrLayout)
	}
	m := c.Margins(mapSize)

	fw := 0
	if c.frame != nil {
		fw = c.frame.Width
	}
	total := image.Pt(m.Left+mapSize.X+m.Right+2*fw, m.Top+mapSize.Y+m.Bottom+2*fw)
	mapBox := image.Rectangle{Min: image.Pt(m.Left+fw, m.Top+fw)}
	mapBox.Max = mapBox.Min.Add(mapSize)
	frameBox := mapBox.Inset(-fw)

	logger.L().Debug("composing map",
		"map_size", mapSize, "margins", m, "frame", fw, "image_size", total, "map_box", mapBox)

	out := image.NewNRGBA(image.Rectangle{Max: total})
	draw.Draw(out, out.Bounds(), image.NewUniform(c.background), image.Point{}, draw.Src)
	draw.Draw(out, mapBox, mapImg, mapImg.Bounds().Min, draw.Src)

	if c.frame != nil {
		dc := gg.NewContext(frameBox.Dx(), frameBox.Dy())
		c.frame.draw(dc, proj, mapSize)
		draw.Draw(out, frameBox, dc.Image(), image.Point{}, draw.Over)
	}

	for _, d := range c.onMap {
		size := d.Size(mapSize)
		pos, err := mapPosition(d.Placement(), mapBox, size)
		if err != nil {
			return nil, err
		}
		layer(out, d, pos, size)
	}
	for _, d := range c.inMargin {
		size := d.Size(mapSize)
		pos, err := marginPosition(d.Placement(), total, frameBox, size)
		if err != nil {
			return nil, err
		}
		layer(out, d, pos, size)
	}
	return out, nil
}

// layer 装飾を透明なバッファに描いてから重ねる
func layer(dst draw.Image, d Decoration, pos, size image.Point) {
	if size.X <= 0 || size.Y <= 0 {
		return
	}
	dc := gg.NewContext(size.X, size.Y)
	d.Draw(dc, size)
	r := image.Rectangle{Min: pos, Max: pos.Add(size)}
	draw.Draw(dst, r, dc.Image(), image.Point{}, draw.Over)
}
