// Package tilesource はタイル画像の取得元と、それを包むキャッシュ/フォールバック層を提供する。
//
// すべての層は Source を実装し、自由に入れ子にできる:
//
//	NewFallback(NewMemoryCache(NewDiskCache(NewNetwork(...), ...), 100))
package tilesource

import (
	"context"
	"errors"
	"fmt"

	"mapmaker/internal/geo"
)

var (
	// ErrTileFetch タイルを取得できなかった (通信失敗、リトライ上限、HTTPエラー)
	ErrTileFetch = errors.New("tile fetch failed")
	// ErrCacheIO キャッシュの読み書き失敗。キャッシュ層の内部でのみ使い、呼び出し元には返さない
	ErrCacheIO = errors.New("cache io failure")
)

// Source タイル取得の共通インターフェース。
//
// token に前回の ETag を渡すと条件付き取得になる。
// 内容が変わっていなければ (token, nil, nil) を返すので、呼び出し側は自分のキャッシュを使う
type Source interface {
	Fetch(ctx context.Context, tile geo.Tile, token string) (newToken string, data []byte, err error)
}

// SourceFunc 関数を Source として使うためのアダプタ
type SourceFunc func(ctx context.Context, tile geo.Tile, token string) (string, []byte, error)

func (f SourceFunc) Fetch(ctx context.Context, tile geo.Tile, token string) (string, []byte, error) {
	return f(ctx, tile, token)
}

// StatusError 2xx/304 以外のHTTPステータス
type StatusError struct {
	Tile   geo.Tile
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tile %s: unexpected status %d from %s", e.Tile, e.Status, e.URL)
}

func (e *StatusError) Unwrap() error { return ErrTileFetch }
