// Package geo resolves place names into coordinates and computes the area to download around them.
package geo

import (
	"context"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/pkg/errors"
)

// ErrNoResult is returned when a query matches no place.
var ErrNoResult = errors.New("no geocoding result")

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Point returns the position as an orb point, longitude first.
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// Geocoder resolves a place name.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Coordinates, error)
}

// StaticGeocoder resolves from a fixed table. Unknown queries return ErrNoResult.
type StaticGeocoder map[string]Coordinates

// Geocode implements Geocoder.
func (s StaticGeocoder) Geocode(_ context.Context, query string) (Coordinates, error) {
	c, ok := s[query]
	if !ok {
		return Coordinates{}, errors.Wrapf(ErrNoResult, "query %q", query)
	}

	return c, nil
}

// BoundAround returns the square of half side radius metres centred on c.
func BoundAround(c Coordinates, radius float64) orb.Bound {
	return geo.NewBoundAroundPoint(c.Point(), radius)
}

// FormatBBox renders a bound as "west,south,east,north".
func FormatBBox(b orb.Bound) string {
	return formatCoord(b.Left()) + "," + formatCoord(b.Bottom()) + "," + formatCoord(b.Right()) + "," + formatCoord(b.Top())
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
