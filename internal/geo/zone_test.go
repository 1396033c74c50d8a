package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/uber/h3-go/v4"
)

func TestZoneOfIsDeterministic(t *testing.T) {
	a := ZoneOf(52.520008, 13.404954)
	b := ZoneOf(52.520008, 13.404954)

	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestZoneOfUsesConfiguredResolution(t *testing.T) {
	zone := NewIndex(DefaultResolution).ZoneOf(48.858370, 2.294481)
	cell := h3.Cell(h3.IndexFromString(string(zone)))

	assert.True(t, cell.IsValid())
	assert.Equal(t, DefaultResolution, cell.Resolution())
}

func TestZoneOfGroupsNearbyPoints(t *testing.T) {
	center := h3.CellToLatLng(h3.LatLngToCell(h3.NewLatLng(40.712776, -74.005974), DefaultResolution))

	// ~10m from the cell center stays inside a ~1.2km-edge cell.
	assert.Equal(t,
		ZoneOf(center.Lat, center.Lng),
		ZoneOf(center.Lat+0.0001, center.Lng+0.0001),
	)
}

func TestZoneOfSeparatesDistantPoints(t *testing.T) {
	assert.NotEqual(t, ZoneOf(40.712776, -74.005974), ZoneOf(34.052235, -118.243683))
}

func TestZoneOfHandlesExtremes(t *testing.T) {
	for _, p := range [][2]float64{{90, 0}, {-90, 0}, {0, 180}, {0, -180}, {0, 0}} {
		assert.NotEmpty(t, ZoneOf(p[0], p[1]))
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(0, 0))
	assert.NoError(t, Validate(-90, 180))
	assert.ErrorIs(t, Validate(90.0001, 0), ErrInvalidCoordinates)
	assert.ErrorIs(t, Validate(0, -180.5), ErrInvalidCoordinates)
	assert.ErrorIs(t, Validate(math.NaN(), 0), ErrInvalidCoordinates)
	assert.ErrorIs(t, Validate(0, math.Inf(1)), ErrInvalidCoordinates)
}
