package overlay

import (
	"fmt"
	"strings"

	"mapmaker/internal/geo"
)

// ParsePoint "lat,lon" か "lat,lon,ラベル"。ラベルにはカンマを含めてよい
func ParsePoint(raw string) (Point, error) {
	parts := strings.SplitN(raw, ",", 3)
	if len(parts) < 2 {
		return Point{}, fmt.Errorf("%w: invalid point %q, expected lat,lon[,label]", geo.ErrInvalidBBox, raw)
	}
	lat, lon, err := geo.ParseCoordinates(parts[0] + "," + parts[1])
	if err != nil {
		return Point{}, err
	}
	p := Point{Lat: lat, Lon: lon, Symbol: Dot}
	if len(parts) == 3 {
		p.Label = strings.TrimSpace(parts[2])
	}
	return p, nil
}

// ParseCircle "lat,lon,半径" (半径は "500", "500m", "2km")
func ParseCircle(raw string) (*Circle, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: invalid circle %q, expected lat,lon,radius", geo.ErrInvalidBBox, raw)
	}
	lat, lon, err := geo.ParseCoordinates(parts[0] + "," + parts[1])
	if err != nil {
		return nil, err
	}
	radius, err := geo.ParseDistance(parts[2])
	if err != nil {
		return nil, err
	}
	if radius <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive, got %v", geo.ErrInvalidBBox, radius)
	}
	return NewCircle(lat, lon, radius), nil
}
