package compose

import (
	"fmt"
	"image"
	"strings"
)

// Placement 16方位と中央 (C) のスロット
type Placement int

const (
	N Placement = iota
	NNE
	NE
	ENE
	E
	ESE
	SE
	SSE
	S
	SSW
	SW
	WSW
	W
	WNW
	NW
	NNW
	C
)

var placementNames = [...]string{
	N: "N", NNE: "NNE", NE: "NE", ENE: "ENE",
	E: "E", ESE: "ESE", SE: "SE", SSE: "SSE",
	S: "S", SSW: "SSW", SW: "SW", WSW: "WSW",
	W: "W", WNW: "WNW", NW: "NW", NNW: "NNW",
	C: "C",
}

func (p Placement) String() string {
	if p < 0 || int(p) >= len(placementNames) {
		return fmt.Sprintf("Placement(%d)", int(p))
	}
	return placementNames[p]
}

// ParsePlacement "nw" や "WSW" などを解釈する (大文字小文字は区別しない)
func ParsePlacement(raw string) (Placement, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	for i, name := range placementNames {
		if name == v {
			return Placement(i), nil
		}
	}
	return 0, fmt.Errorf("%w: invalid placement %q", ErrLayout, raw)
}

func (p Placement) northern() bool { return p == NW || p == NNW || p == N || p == NNE || p == NE }
func (p Placement) southern() bool { return p == SW || p == SSW || p == S || p == SSE || p == SE }
func (p Placement) western() bool  { return p == NW || p == WNW || p == W || p == WSW || p == SW }
func (p Placement) eastern() bool  { return p == NE || p == ENE || p == E || p == ESE || p == SE }

// Area 装飾を置く領域
type Area int

const (
	// AreaMap 地図の内側 (3x3 のスロット)
	AreaMap Area = iota
	// AreaMargin 地図の外側の余白 (中央以外の16方位)
	AreaMargin
)

func (a Area) String() string {
	switch a {
	case AreaMap:
		return "MAP"
	case AreaMargin:
		return "MARGIN"
	}
	return fmt.Sprintf("Area(%d)", int(a))
}

// Accepts スロットがこの領域で使えるか
func (a Area) Accepts(p Placement) bool {
	switch a {
	case AreaMap:
		switch p {
		case NW, N, NE, W, C, E, SW, S, SE:
			return true
		}
	case AreaMargin:
		return p >= N && p <= NNW
	}
	return false
}

// marginPosition 余白に置く装飾の左上座標。
// total は画像全体、frame は枠 (枠がなければ地図) の矩形
func marginPosition(p Placement, total image.Point, frame image.Rectangle, deco image.Point) (image.Point, error) {
	var x, y int

	switch {
	case p.northern():
		y = frame.Min.Y - deco.Y
	case p.southern():
		y = frame.Max.Y
	case p == WNW || p == ENE:
		y = frame.Min.Y
	case p == W || p == E:
		y = total.Y/2 - deco.Y/2
	case p == WSW || p == ESE:
		y = frame.Max.Y - deco.Y
	default:
		return image.Point{}, fmt.Errorf("%w: %s is not a margin slot", ErrLayout, p)
	}

	switch {
	case p.western():
		x = frame.Min.X - deco.X
	case p.eastern():
		x = frame.Max.X
	case p == NNW || p == SSW:
		x = frame.Min.X
	case p == N || p == S:
		x = total.X/2 - deco.X/2
	case p == NNE || p == SSE:
		x = frame.Max.X - deco.X
	default:
		return image.Point{}, fmt.Errorf("%w: %s is not a margin slot", ErrLayout, p)
	}

	return image.Pt(x, y), nil
}

// mapPosition 地図の内側に置く装飾の左上座標
func mapPosition(p Placement, mapBox image.Rectangle, deco image.Point) (image.Point, error) {
	if !AreaMap.Accepts(p) {
		return image.Point{}, fmt.Errorf("%w: %s is not a map slot", ErrLayout, p)
	}
	w, h := mapBox.Dx(), mapBox.Dy()

	var x, y int
	switch p {
	case NW, N, NE:
		y = mapBox.Min.Y
	case W, C, E:
		y = mapBox.Min.Y + h/2 - deco.Y/2
	default:
		y = mapBox.Max.Y - deco.Y
	}
	switch p {
	case NW, W, SW:
		x = mapBox.Min.X
	case N, C, S:
		x = mapBox.Min.X + w/2 - deco.X/2
	default:
		x = mapBox.Max.X - deco.X
	}
	return image.Pt(x, y), nil
}
