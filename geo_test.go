package headway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMShortRange(t *testing.T) {
	// one degree of latitude is ~111.2km; 0.001 degrees ~111m
	d := DistanceM(37.7749, -122.4194, 37.7759, -122.4194)
	assert.InDelta(t, 111.2, d, 1.0)
}

func TestDistanceMLongRange(t *testing.T) {
	// San Francisco to Los Angeles, roughly 560km
	d := DistanceM(37.7749, -122.4194, 34.0522, -118.2437)
	assert.InDelta(t, 559000, d, 5000)
}

func TestDistanceMZero(t *testing.T) {
	assert.Equal(t, 0.0, DistanceM(37.7749, -122.4194, 37.7749, -122.4194))
}

func TestWalkSeconds(t *testing.T) {
	assert.Equal(t, uint32(100), walkSeconds(110, 1.1))
	assert.Equal(t, uint32(0), walkSeconds(0, 1.1))
	// never zero for a positive distance
	assert.Equal(t, uint32(1), walkSeconds(0.2, 1.1))
}

func TestLowerBoundIsAdmissible(t *testing.T) {
	h := *DefaultHeadway
	stops := gridStops(5, 1000)

	// the bound at top vehicle speed never exceeds the walking time, which
	// is itself a real travel time between the stops
	for i := range stops {
		for j := range stops {
			lb := h.lowerBoundS(&stops[i], &stops[j])
			walk := walkSeconds(DistanceM(stops[i].Lat, stops[i].Lon, stops[j].Lat, stops[j].Lon), h.WalkingSpeed)
			assert.LessOrEqual(t, lb, walk)
		}
	}
}
