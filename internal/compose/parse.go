package compose

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ParseColor "R,G,B"、"R,G,B,A"、"#RRGGBB"、"#RRGGBBAA" を解釈する
func ParseColor(raw string) (color.NRGBA, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return color.NRGBA{}, fmt.Errorf("%w: empty color", ErrLayout)
	}

	var v []uint64
	if hex, ok := strings.CutPrefix(s, "#"); ok {
		if len(hex) != 6 && len(hex) != 8 {
			return color.NRGBA{}, fmt.Errorf("%w: invalid color %q", ErrLayout, raw)
		}
		for i := 0; i < len(hex); i += 2 {
			n, err := strconv.ParseUint(hex[i:i+2], 16, 8)
			if err != nil {
				return color.NRGBA{}, fmt.Errorf("%w: invalid color %q", ErrLayout, raw)
			}
			v = append(v, n)
		}
	} else {
		parts := strings.Split(s, ",")
		if len(parts) != 3 && len(parts) != 4 {
			return color.NRGBA{}, fmt.Errorf("%w: invalid color %q", ErrLayout, raw)
		}
		for _, p := range parts {
			n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return color.NRGBA{}, fmt.Errorf("%w: invalid color value %q in %q", ErrLayout, p, raw)
			}
			v = append(v, n)
		}
	}
	if len(v) == 3 {
		v = append(v, 255)
	}
	return color.NRGBA{R: uint8(v[0]), G: uint8(v[1]), B: uint8(v[2]), A: uint8(v[3])}, nil
}

// ParseMargins 1個 (全辺)、2個 (上下, 左右)、4個 (上, 右, 下, 左) の値
func ParseMargins(values []string) (Margins, error) {
	n := make([]int, 0, len(values))
	for _, v := range values {
		i, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
		if err != nil {
			return Margins{}, fmt.Errorf("%w: invalid margin %q", ErrLayout, v)
		}
		if i < 0 {
			return Margins{}, fmt.Errorf("%w: negative margin %d", ErrLayout, i)
		}
		n = append(n, i)
	}
	switch len(n) {
	case 1:
		return Margins{n[0], n[0], n[0], n[0]}, nil
	case 2:
		return Margins{n[0], n[1], n[0], n[1]}, nil
	case 4:
		return Margins{n[0], n[1], n[2], n[3]}, nil
	}
	return Margins{}, fmt.Errorf("%w: expected 1, 2 or 4 margin values, got %d", ErrLayout, len(n))
}

// ParseFrame 幅、色、2番目の色、スタイルを順不同で受け付ける。省略した値は既定のまま
func ParseFrame(values []string) (*Frame, error) {
	if len(values) > 4 {
		return nil, fmt.Errorf("%w: too many frame parameters (%d)", ErrLayout, len(values))
	}
	f := NewFrame(5, FrameSolid)
	var haveWidth, haveColor, haveAlt, haveStyle bool
	var unknown []string

	for _, v := range values {
		if !haveWidth {
			if w, err := strconv.Atoi(v); err == nil {
				if w < 0 {
					return nil, fmt.Errorf("%w: negative frame width %d", ErrLayout, w)
				}
				f.Width, haveWidth = w, true
				continue
			}
		}
		if c, err := ParseColor(v); err == nil {
			switch {
			case !haveColor:
				f.Color, haveColor = c, true
				continue
			case !haveAlt:
				f.AltColor, haveAlt = c, true
				continue
			}
		}
		if !haveStyle {
			if s, err := ParseFrameStyle(v); err == nil {
				f.Style, haveStyle = s, true
				continue
			}
		}
		unknown = append(unknown, v)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unrecognized frame parameters %s", ErrLayout, strings.Join(unknown, ", "))
	}
	return f, nil
}

// ParseText 先頭にスロット、枠の太さ、文字色、背景色を任意で置き、残りを本文とする。
// 本文が始まったらそれ以降は解釈しない
func ParseText(values []string, c *Cartouche) error {
	var haveSlot, haveBorder, haveColor, haveBg bool
	consumed := 0
	for _, v := range values {
		if !haveSlot {
			if p, err := ParsePlacement(v); err == nil {
				c.Slot, haveSlot = p, true
				consumed++
				continue
			}
		}
		if !haveBorder {
			if b, err := strconv.Atoi(v); err == nil {
				if b < 0 {
					return fmt.Errorf("%w: negative border width %d", ErrLayout, b)
				}
				c.BorderWidth, haveBorder = b, true
				consumed++
				continue
			}
		}
		if col, err := ParseColor(v); err == nil && (!haveColor || !haveBg) {
			if !haveColor {
				c.Color, haveColor = col, true
			} else {
				c.Background, haveBg = col, true
			}
			consumed++
			continue
		}
		break
	}
	c.Text = strings.Join(values[consumed:], " ")
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("%w: missing text in %q", ErrLayout, strings.Join(values, " "))
	}
	return nil
}
