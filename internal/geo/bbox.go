package geo

import (
	"fmt"
	"math"
)

// BBox 緯度経度の矩形範囲 (度)。値型でメソッドは新しい BBox を返す
type BBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// World 全球を覆う BBox
var World = BBox{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180}

// NewBBox 範囲を検証して BBox を作成
func NewBBox(minLat, minLon, maxLat, maxLon float64) (BBox, error) {
	b := BBox{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
	if err := b.Validate(); err != nil {
		return BBox{}, err
	}
	return b, nil
}

// Validate 不変条件 (min <= max, 範囲内) を確認する
func (b BBox) Validate() error {
	if !ValidLat(b.MinLat) || !ValidLat(b.MaxLat) {
		return fmt.Errorf("%w: latitude out of range (%v, %v)", ErrInvalidBBox, b.MinLat, b.MaxLat)
	}
	if !ValidLon(b.MinLon) || !ValidLon(b.MaxLon) {
		return fmt.Errorf("%w: longitude out of range (%v, %v)", ErrInvalidBBox, b.MinLon, b.MaxLon)
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return fmt.Errorf("%w: min greater than max in %s", ErrInvalidBBox, b)
	}
	return nil
}

func (b BBox) String() string {
	return fmt.Sprintf("BBox(%.6f, %.6f, %.6f, %.6f)", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// Center 中心点
func (b BBox) Center() (float64, float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// Contains 点が範囲内にあるか (境界を含む)
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// WidthMeters 南端に沿った東西方向の距離
func (b BBox) WidthMeters() float64 {
	return Distance(b.MinLat, b.MinLon, b.MinLat, b.MaxLon)
}

// HeightMeters 西端に沿った南北方向の距離
func (b BBox) HeightMeters() float64 {
	return Distance(b.MinLat, b.MinLon, b.MaxLat, b.MinLon)
}

// FromRadius 中心点と半径から BBox を作る。
// 東西南北の4点のみを使う近似で、高緯度では経度方向が歪む
func FromRadius(lat, lon, radius float64) (BBox, error) {
	if !ValidLat(lat) || !ValidLon(lon) {
		return BBox{}, fmt.Errorf("%w: center %v,%v out of range", ErrInvalidBBox, lat, lon)
	}
	if !(radius > 0) {
		return BBox{}, fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidBBox, radius)
	}

	latN, lonN := DestinationPoint(lat, lon, 0, radius)
	latE, lonE := DestinationPoint(lat, lon, 90, radius)
	latS, lonS := DestinationPoint(lat, lon, 180, radius)
	latW, lonW := DestinationPoint(lat, lon, 270, radius)

	b := BBox{
		MinLat: math.Min(math.Min(latN, latE), math.Min(latS, latW)),
		MinLon: math.Min(math.Min(lonN, lonE), math.Min(lonS, lonW)),
		MaxLat: math.Max(math.Max(latN, latE), math.Max(latS, latW)),
		MaxLon: math.Max(math.Max(lonN, lonE), math.Max(lonS, lonW)),
	}
	if err := b.Validate(); err != nil {
		return BBox{}, err
	}
	return b, nil
}

// WithAspect 幅/高さ (m) の比が aspect になるよう不足している軸を両側に均等に広げる。
// aspect == 1 はそのまま返す。広げた結果が有効範囲を超える場合は ErrInvalidBBox
func (b BBox) WithAspect(aspect float64) (BBox, error) {
	if !(aspect > 0) || math.IsInf(aspect, 0) {
		return BBox{}, fmt.Errorf("%w: aspect must be positive, got %v", ErrInvalidBBox, aspect)
	}
	if aspect == 1 {
		return b, nil
	}

	width := b.WidthMeters()
	height := b.HeightMeters()
	if width == 0 && height == 0 {
		return BBox{}, fmt.Errorf("%w: cannot apply aspect to an empty box", ErrInvalidBBox)
	}

	out := b
	if height == 0 || width/height > aspect {
		// 高さが足りない: 緯度方向に広げる
		extend := (width/aspect - height) / 2
		out.MinLat, _ = DestinationPoint(b.MinLat, b.MinLon, 180, extend)
		out.MaxLat, _ = DestinationPoint(b.MaxLat, b.MinLon, 0, extend)
		if b.MinLat-extend/EarthRadius*180/math.Pi < -90 || b.MaxLat+extend/EarthRadius*180/math.Pi > 90 {
			return BBox{}, fmt.Errorf("%w: aspect %v exceeds latitude range", ErrInvalidBBox, aspect)
		}
	} else {
		// 幅が足りない: 南端の緯度で経度方向に広げる
		extend := (height*aspect - width) / 2
		_, out.MinLon = DestinationPoint(b.MinLat, b.MinLon, 270, extend)
		_, out.MaxLon = DestinationPoint(b.MinLat, b.MaxLon, 90, extend)
		if math.Cos(radians(b.MinLat)) < 1e-12 || extend/EarthRadius >= math.Pi {
			return BBox{}, fmt.Errorf("%w: aspect %v exceeds longitude range", ErrInvalidBBox, aspect)
		}
	}

	if err := out.Validate(); err != nil {
		return BBox{}, fmt.Errorf("with aspect %v: %w", aspect, err)
	}
	return out, nil
}

// Padded 四辺を meters だけ外側へ広げる (負値で縮める)
func (b BBox) Padded(meters float64) (BBox, error) {
	dLat := degrees(meters / EarthRadius)

	// 経度の広がりは赤道から遠い辺で計算し、全体が meters 以上広がるようにする
	edge := math.Max(math.Abs(b.MinLat), math.Abs(b.MaxLat))
	cos := math.Cos(radians(edge))
	if cos < 1e-12 {
		return BBox{}, fmt.Errorf("%w: cannot pad a box touching the pole", ErrInvalidBBox)
	}
	dLon := degrees(meters / (EarthRadius * cos))

	out := BBox{
		MinLat: b.MinLat - dLat,
		MinLon: b.MinLon - dLon,
		MaxLat: b.MaxLat + dLat,
		MaxLon: b.MaxLon + dLon,
	}
	if err := out.Validate(); err != nil {
		return BBox{}, fmt.Errorf("padded by %vm: %w", meters, err)
	}
	return out, nil
}

// Constrained limit との共通部分を返す
func (b BBox) Constrained(limit BBox) BBox {
	return BBox{
		MinLat: math.Max(b.MinLat, limit.MinLat),
		MinLon: math.Max(b.MinLon, limit.MinLon),
		MaxLat: math.Min(b.MaxLat, limit.MaxLat),
		MaxLon: math.Min(b.MaxLon, limit.MaxLon),
	}
}

// Combine 両方を含む最小の BBox
func (b BBox) Combine(other BBox) BBox {
	return BBox{
		MinLat: math.Min(b.MinLat, other.MinLat),
		MinLon: math.Min(b.MinLon, other.MinLon),
		MaxLat: math.Max(b.MaxLat, other.MaxLat),
		MaxLon: math.Max(b.MaxLon, other.MaxLon),
	}
}
