package headway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustHMS(t *testing.T, s string) uint32 {
	t.Helper()
	v, err := ParseHMS(s)
	require.NoError(t, err)
	return v
}

func stopover(t *testing.T, arrival, departure string) Stopover {
	t.Helper()
	return Stopover{Arrival: mustHMS(t, arrival), Departure: mustHMS(t, departure)}
}

// gridStops lays n stops out on a north-south line, spaced spacingM metres
// apart, so distances and pruning bounds behave like a real network.
func gridStops(n int, spacingM float64) []Stop {
	const baseLat, baseLon = 37.7749, -122.4194
	stops := make([]Stop, n)
	for i := range stops {
		stops[i] = Stop{
			ID:     string(rune('A' + i)),
			Name:   "Stop " + string(rune('A'+i)),
			Agency: "TA",
			Lat:    baseLat + float64(i)*spacingM/111320.0,
			Lon:    baseLon,
		}
	}
	return stops
}

func mustSnapshot(t *testing.T, stops []Stop, routes []*Route, trips []*Trip, shapes map[string][]Coords) *Snapshot {
	t.Helper()
	sn, err := NewSnapshot(stops, routes, trips, shapes, Window{})
	require.NoError(t, err)
	return sn
}

// singleTripSnapshot wires one trip over the given stop keys with the
// given arrival/departure times.
func singleTripSnapshot(t *testing.T, stops []Stop, stopKeys []uint32, times []Stopover) *Snapshot {
	t.Helper()
	route := &Route{ID: "TA:r1:p0", GtfsRouteID: "TA:r1", Name: "1", Stops: stopKeys, Trips: []uint32{0}}
	trip := &Trip{ID: "TA:t1", Route: 0, StopTimes: times}
	return mustSnapshot(t, stops, []*Route{route}, []*Trip{trip}, nil)
}
