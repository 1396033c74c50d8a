// Package geo maps coordinates onto the fixed global grid used to group photos
// into competition zones.
package geo

import (
	"errors"
	"math"

	"github.com/uber/h3-go/v4"
)

// DefaultResolution is the H3 resolution zones are computed at. A res-7 cell
// covers roughly 5 km².
const DefaultResolution = 7

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// ZoneID is the hex form of an H3 cell index.
type ZoneID string

// Index assigns zones at one constant resolution.
type Index struct {
	resolution int
}

func NewIndex(resolution int) Index {
	return Index{resolution: resolution}
}

func (i Index) Resolution() int {
	return i.resolution
}

// ZoneOf returns the zone containing (lat, lon). Coordinates must already have
// passed Validate.
func (i Index) ZoneOf(lat, lon float64) ZoneID {
	cell := h3.LatLngToCell(h3.NewLatLng(lat, lon), i.resolution)
	return ZoneID(cell.String())
}

// ZoneOf uses DefaultResolution.
func ZoneOf(lat, lon float64) ZoneID {
	return NewIndex(DefaultResolution).ZoneOf(lat, lon)
}

// Validate rejects coordinates outside the WGS84 range.
func Validate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return ErrInvalidCoordinates
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
