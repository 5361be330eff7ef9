// Package geo holds the coordinate value type and the pure spherical
// math the navigation engine relies on.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	polyline "github.com/twpayne/go-polyline"
)

// earthRadiusMeters is the mean Earth radius used for haversine distances.
const earthRadiusMeters = 6371000.0

const metersPerMile = 1609.344

// Position is an immutable WGS 84 coordinate.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point converts the position into an orb geometry point (lon/lat order).
func (p Position) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Position) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// InitialBearing returns the initial bearing from a to b in degrees,
// normalized to [0, 360).
func InitialBearing(a, b Position) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// Miles converts a distance in meters to statute miles.
func Miles(meters float64) float64 {
	return meters / metersPerMile
}

// Bounds returns the bounding box enclosing every given position. The
// zero bound is returned for an empty input.
func Bounds(positions []Position) orb.Bound {
	if len(positions) == 0 {
		return orb.Bound{}
	}
	points := make(orb.MultiPoint, 0, len(positions))
	for _, p := range positions {
		points = append(points, p.Point())
	}
	return points.Bound()
}

// DecodePolyline decodes a Google encoded polyline into positions.
func DecodePolyline(encoded string) ([]Position, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}
	positions := make([]Position, 0, len(coords))
	for _, c := range coords {
		positions = append(positions, Position{Lat: c[0], Lon: c[1]})
	}
	return positions, nil
}
