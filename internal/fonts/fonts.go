// Package fonts は装飾とオーバーレイで使う Go フォントを一度だけ解析して保持する
package fonts

import (
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"mapmaker/internal/logger"
)

// Weight 書体の太さ
type Weight int

const (
	Regular Weight = iota
	Bold
)

var (
	parseOnce sync.Once
	parsed    map[Weight]*opentype.Font
)

func load() {
	parsed = make(map[Weight]*opentype.Font, 2)
	for w, ttf := range map[Weight][]byte{Regular: goregular.TTF, Bold: gobold.TTF} {
		f, err := opentype.Parse(ttf)
		if err != nil {
			logger.L().Warn("failed to parse embedded font", "weight", w, "error", err)
			continue
		}
		parsed[w] = f
	}
}

// Face 指定サイズ (pt, 72dpi) のフェイス。解析に失敗したら basicfont を返す。
// フェイスは並行に使えないので呼び出しごとに作る
func Face(weight Weight, size float64) font.Face {
	parseOnce.Do(load)

	f := parsed[weight]
	if f == nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		logger.L().Warn("failed to create font face", "size", size, "error", err)
		return basicfont.Face7x13
	}
	return face
}
