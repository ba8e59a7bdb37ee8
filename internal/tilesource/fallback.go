package tilesource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"

	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"mapmaker/internal/geo"
	"mapmaker/internal/logger"
	"mapmaker/internal/metrics"
)

// Fallback 取得に失敗したタイルを、1段低いズームの親タイルの該当象限を拡大して代用する
type Fallback struct {
	next Source
}

// NewFallback next を Fallback で包む
func NewFallback(next Source) *Fallback {
	return &Fallback{next: next}
}

func (f *Fallback) Fetch(ctx context.Context, tile geo.Tile, token string) (string, []byte, error) {
	newToken, data, err := f.next.Fetch(ctx, tile, token)
	if err == nil {
		return newToken, data, nil
	}
	if tile.Z == 0 || ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return "", nil, err
	}

	parent := tile.Parent()
	logger.L().Info("tile unavailable, using parent", "tile", tile.String(), "parent", parent.String(), "error", err)
	metrics.TileFallbacks.Inc()

	_, parentData, perr := f.Fetch(ctx, parent, "")
	if perr != nil {
		return "", nil, fmt.Errorf("tile %s: %w (fallback: %v)", tile, err, perr)
	}
	if parentData == nil {
		return "", nil, fmt.Errorf("tile %s: %w (fallback returned no data)", tile, err)
	}

	scaled, serr := parentQuadrant(parentData, tile.X%2, tile.Y%2)
	if serr != nil {
		return "", nil, fmt.Errorf("tile %s: %w (fallback: %v)", tile, err, serr)
	}
	return "", scaled, nil
}

// parentQuadrant 親タイル画像の (dx, dy) 象限を元のサイズに拡大して PNG で返す
func parentQuadrant(data []byte, dx, dy int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode parent tile: %w", err)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	quad := image.Rect(
		b.Min.X+w/2*dx,
		b.Min.Y+h/2*dy,
		b.Min.X+w/2*(dx+1),
		b.Min.Y+h/2*(dy+1),
	)

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, quad, xdraw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
