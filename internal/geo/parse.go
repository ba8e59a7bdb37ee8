package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseCoordinates "lat,lon" 形式の文字列を解析する。
// 10進数 ("47.43,10.95") と度分秒 ("47°26'13''N,10°57'12''E") に対応。
// 末尾の N/S/E/W で符号を決める
func ParseCoordinates(raw string) (float64, float64, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(raw)), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: expected two values separated by \",\" in %q", ErrInvalidBBox, raw)
	}
	a := strings.TrimSpace(parts[0])
	b := strings.TrimSpace(parts[1])

	signLat, signLon := 1.0, 1.0
	switch {
	case strings.HasSuffix(a, "n"):
		a = a[:len(a)-1]
	case strings.HasSuffix(a, "s"):
		a = a[:len(a)-1]
		signLat = -1
	}
	switch {
	case strings.HasSuffix(b, "e"):
		b = b[:len(b)-1]
	case strings.HasSuffix(b, "w"):
		b = b[:len(b)-1]
		signLon = -1
	}

	lat, err := parseAngle(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: latitude %q: %v", ErrInvalidBBox, parts[0], err)
	}
	lon, err := parseAngle(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: longitude %q: %v", ErrInvalidBBox, parts[1], err)
	}
	lat *= signLat
	lon *= signLon

	if !ValidLat(lat) {
		return 0, 0, fmt.Errorf("%w: latitude must be in range -90..90, got %v", ErrInvalidBBox, lat)
	}
	if !ValidLon(lon) {
		return 0, 0, fmt.Errorf("%w: longitude must be in range -180..180, got %v", ErrInvalidBBox, lon)
	}
	return lat, lon, nil
}

func parseAngle(s string) (float64, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}

	d, rest, ok := strings.Cut(s, "°")
	if !ok {
		return 0, fmt.Errorf("not a decimal or DMS value")
	}
	deg, err := strconv.ParseFloat(strings.TrimSpace(d), 64)
	if err != nil {
		return 0, err
	}

	var minutes, seconds float64
	rest = strings.TrimSpace(rest)
	if rest != "" {
		m, r, ok := strings.Cut(rest, "'")
		if !ok {
			return 0, fmt.Errorf("extra content %q", rest)
		}
		if minutes, err = strconv.ParseFloat(strings.TrimSpace(m), 64); err != nil {
			return 0, err
		}
		rest = strings.TrimSpace(r)
	}
	if rest != "" {
		sv, ok := strings.CutSuffix(rest, "''")
		if !ok {
			sv, ok = strings.CutSuffix(rest, "\"")
		}
		if !ok {
			return 0, fmt.Errorf("extra content %q", rest)
		}
		if seconds, err = strconv.ParseFloat(strings.TrimSpace(sv), 64); err != nil {
			return 0, err
		}
	}
	return deg + (minutes+seconds/60)/60, nil
}

// ParseArea 2つの引数から BBox を作る。
//
//	"47.437,10.953" "47.374,11.133"  2点の座標
//	"47.437,10.953" "2km"            中心と半径 (単位 m / km, 省略時 m)
func ParseArea(first, second string) (BBox, error) {
	lat0, lon0, err := ParseCoordinates(first)
	if err != nil {
		return BBox{}, err
	}

	var b BBox
	if strings.Contains(second, ",") {
		lat1, lon1, err := ParseCoordinates(second)
		if err != nil {
			return BBox{}, err
		}
		b = BBox{
			MinLat: min(lat0, lat1),
			MinLon: min(lon0, lon1),
			MaxLat: max(lat0, lat1),
			MaxLon: max(lon0, lon1),
		}
	} else {
		radius, err := ParseDistance(second)
		if err != nil {
			return BBox{}, err
		}
		if b, err = FromRadius(lat0, lon0, radius); err != nil {
			return BBox{}, err
		}
	}

	if b.MinLat < MinMercatorLat || b.MaxLat > MaxMercatorLat {
		return BBox{}, fmt.Errorf("%w: %s reaches beyond the mercator range", ErrInvalidBBox, b)
	}
	if err := b.Validate(); err != nil {
		return BBox{}, err
	}
	return b, nil
}

// ParseDistance "500", "500m", "2km" をメートルに変換
func ParseDistance(raw string) (float64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	factor := 1.0
	switch {
	case strings.HasSuffix(s, "km"):
		s = strings.TrimSuffix(s, "km")
		factor = 1000
	case strings.HasSuffix(s, "m"):
		s = strings.TrimSuffix(s, "m")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid distance %q", ErrInvalidBBox, raw)
	}
	return v * factor, nil
}

// ParseAspect "16:9" のような 幅:高さ を比率にする
func ParseAspect(raw string) (float64, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return 0, fmt.Errorf("%w: invalid aspect ratio %q, expected W:H", ErrInvalidBBox, raw)
	}
	fw, err1 := strconv.ParseFloat(strings.TrimSpace(w), 64)
	fh, err2 := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err1 != nil || err2 != nil || fw <= 0 || fh <= 0 {
		return 0, fmt.Errorf("%w: invalid aspect ratio %q", ErrInvalidBBox, raw)
	}
	return fw / fh, nil
}
