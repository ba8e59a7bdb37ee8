package geo

import (
	"errors"
	"math"
)

// EarthRadius 地球半径 (m)
const EarthRadius = 6371000.0

var (
	// ErrInvalidBBox 範囲外の座標や不正な半径
	ErrInvalidBBox = errors.New("invalid bounding box")
	// ErrUnsupportedZoom 対応していないズームレベル
	ErrUnsupportedZoom = errors.New("unsupported zoom level")
)

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// DestinationPoint 始点から方位角 bearing (度) に distance (m) 進んだ地点を返す
func DestinationPoint(lat, lon, bearing, distance float64) (float64, float64) {
	bearing = math.Mod(bearing, 360)
	if bearing < 0 {
		bearing += 360
	}
	d := distance / EarthRadius
	brng := radians(bearing)
	phi := radians(lat)
	lambda := radians(lon)

	a := math.Sin(phi)*math.Cos(d) + math.Cos(phi)*math.Sin(d)*math.Cos(brng)
	phiP := math.Asin(a)

	x := math.Cos(d) - math.Sin(phi)*a
	y := math.Sin(brng) * math.Sin(d) * math.Cos(phi)
	lambdaP := lambda + math.Atan2(y, x)

	return degrees(phiP), degrees(lambdaP)
}

// Distance 2地点間の大円距離 (m)。haversine式
func Distance(lat0, lon0, lat1, lon1 float64) float64 {
	phi0 := radians(lat0)
	phi1 := radians(lat1)
	dPhi := radians(lat1 - lat0)
	dLambda := radians(lon1 - lon0)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi0)*math.Cos(phi1)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// 丸め誤差で1をわずかに超えることがある
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadius * c
}

// ValidLat 緯度が [-90, 90] に収まるか
func ValidLat(lat float64) bool {
	return !math.IsNaN(lat) && lat >= -90 && lat <= 90
}

// ValidLon 経度が [-180, 180] に収まるか
func ValidLon(lon float64) bool {
	return !math.IsNaN(lon) && lon >= -180 && lon <= 180
}

// DMS 10進度を度・分・秒に分解する
func DMS(v float64) (d, m int, s float64) {
	df := math.Floor(v)
	mf := math.Floor((v - df) * 60)
	s = (v - df - mf/60) * 3600
	return int(df), int(mf), s
}

// Decimal 度・分・秒を10進度に戻す
func Decimal(d, m int, s float64) float64 {
	return float64(d) + (float64(m)+s/60)/60
}
