// Package metrics はタイル取得とレンダリングの Prometheus メトリクスを定義する
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TileRequests タイルサーバーへのリクエスト結果
	TileRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapmaker",
		Subsystem: "tiles",
		Name:      "requests_total",
		Help:      "Tile HTTP requests by service and result",
	}, []string{"service", "result"})

	// TileBytes ダウンロードしたバイト数
	TileBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapmaker",
		Subsystem: "tiles",
		Name:      "downloaded_bytes_total",
		Help:      "Bytes of tile data downloaded",
	}, []string{"service"})

	// TileFallbacks 親タイルで代用した回数
	TileFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mapmaker",
		Subsystem: "tiles",
		Name:      "fallbacks_total",
		Help:      "Tiles replaced by an upscaled parent tile",
	})

	// CacheLookups キャッシュ層ごとのヒット/ミス
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapmaker",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Tile cache lookups by layer and result",
	}, []string{"layer", "result"})

	// CacheEvictedBytes 追い出したバイト数
	CacheEvictedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapmaker",
		Subsystem: "cache",
		Name:      "evicted_bytes_total",
		Help:      "Bytes removed from a tile cache layer",
	}, []string{"layer"})

	// TilesPasted キャンバスに貼り付けたタイル数
	TilesPasted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mapmaker",
		Subsystem: "render",
		Name:      "tiles_pasted_total",
		Help:      "Tiles decoded and pasted onto a canvas",
	})

	// BuildDuration 地図1枚の取得から切り抜きまでの時間
	BuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mapmaker",
		Subsystem: "render",
		Name:      "build_duration_seconds",
		Help:      "Duration of a map build from first request to crop",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"result"})
)

// WriteFile 既定レジストリの内容を node_exporter の textfile 形式で書き出す
func WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
