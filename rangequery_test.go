package headway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frequentSnapshot has trips from A to B at 08:00, 08:15, 08:30, 08:45 and
// a straggler at 09:01, each taking 20 minutes.
func frequentSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	stops := gridStops(2, 2000)
	deps := []string{"08:00:00", "08:15:00", "08:30:00", "08:45:00", "09:01:00"}
	route := &Route{ID: "TA:r1:p0", GtfsRouteID: "TA:r1", Name: "1", Stops: []uint32{0, 1}}
	trips := make([]*Trip, len(deps))
	for i, dep := range deps {
		route.Trips = append(route.Trips, uint32(i))
		trips[i] = &Trip{ID: "TA:t" + dep, Route: 0, StopTimes: []Stopover{
			stopover(t, dep, dep),
			{Arrival: mustHMS(t, dep) + 1200, Departure: mustHMS(t, dep) + 1200},
		}}
	}
	return mustSnapshot(t, stops, []*Route{route}, trips, nil)
}

func TestRangeQueryDedupAndStrictWindow(t *testing.T) {
	h := *DefaultHeadway
	sn := frequentSnapshot(t)

	journeys := h.RangeQuery(context.Background(), sn, 0, 1, mustHMS(t, "07:55:00"))

	// four departures inside [07:55, 08:55); the 09:01 trip is out
	require.Len(t, journeys, 4)
	wantDeps := []string{"08:00:00", "08:15:00", "08:30:00", "08:45:00"}
	for i, j := range journeys {
		require.Len(t, j.Legs, 1)
		assert.Equal(t, wantDeps[i], j.Legs[0].DepartureTime, "journey %d", i)
	}
}

func TestRangeQueryOrdering(t *testing.T) {
	h := *DefaultHeadway
	sn := frequentSnapshot(t)

	journeys := h.RangeQuery(context.Background(), sn, 0, 1, mustHMS(t, "07:55:00"))
	for i := 0; i+1 < len(journeys); i++ {
		assert.LessOrEqual(t, journeys[i].depS, journeys[i+1].depS)
	}
}

func TestRangeQueryRespectsMaxJourneys(t *testing.T) {
	h := *DefaultHeadway
	h.MaxJourneys = 2
	sn := frequentSnapshot(t)

	journeys := h.RangeQuery(context.Background(), sn, 0, 1, mustHMS(t, "07:55:00"))
	require.Len(t, journeys, 2)
	assert.Equal(t, "08:00:00", journeys[0].Legs[0].DepartureTime)
	assert.Equal(t, "08:15:00", journeys[1].Legs[0].DepartureTime)
}

func TestRangeQueryUnreachable(t *testing.T) {
	h := *DefaultHeadway
	stops := gridStops(4, 2000)
	routes := []*Route{
		{ID: "TA:r1:p0", Name: "1", Stops: []uint32{0, 1}, Trips: []uint32{0}},
		{ID: "TA:r2:p0", Name: "2", Stops: []uint32{2, 3}, Trips: []uint32{1}},
	}
	trips := []*Trip{
		{ID: "TA:t1", Route: 0, StopTimes: []Stopover{
			stopover(t, "08:00:00", "08:00:00"),
			stopover(t, "08:10:00", "08:10:00"),
		}},
		{ID: "TA:t2", Route: 1, StopTimes: []Stopover{
			stopover(t, "08:00:00", "08:00:00"),
			stopover(t, "08:10:00", "08:10:00"),
		}},
	}
	sn := mustSnapshot(t, stops, routes, trips, nil)

	journeys := h.RangeQuery(context.Background(), sn, 0, 3, mustHMS(t, "07:55:00"))
	assert.Empty(t, journeys)
}

func TestRangeQuerySamplesNeighbourDepartures(t *testing.T) {
	h := *DefaultHeadway
	stops := gridStops(3, 2000) // A, A', B
	routes := []*Route{
		{ID: "TA:r1:p0", Name: "1", Stops: []uint32{1, 2}, Trips: []uint32{0}},
	}
	// the only trip leaves the neighbour stop late in the window; the walk
	// plus board buffer still has to fit in front of it
	trips := []*Trip{
		{ID: "TA:t1", Route: 0, StopTimes: []Stopover{
			stopover(t, "08:40:00", "08:40:00"),
			stopover(t, "08:55:00", "08:55:00"),
		}},
	}
	sn := mustSnapshot(t, stops, routes, trips, nil)
	sn.Stops[0].Footpaths = []Footpath{{Target: 1, Duration: 150}}
	sn.Stops[1].Footpaths = []Footpath{{Target: 0, Duration: 150}}

	samples := h.sampleDepartures(sn, 0, mustHMS(t, "08:00:00"))
	assert.Contains(t, samples, mustHMS(t, "08:36:30"), "departure minus walk minus buffer")

	journeys := h.RangeQuery(context.Background(), sn, 0, 2, mustHMS(t, "08:00:00"))
	require.Len(t, journeys, 1)
	require.Len(t, journeys[0].Legs, 2)
	assert.Equal(t, "08:40:00", journeys[0].Legs[1].DepartureTime)
}

func TestSampleDeparturesCapped(t *testing.T) {
	h := *DefaultHeadway
	h.MaxSamples = 3
	sn := frequentSnapshot(t)

	samples := h.sampleDepartures(sn, 0, mustHMS(t, "07:55:00"))
	require.Len(t, samples, 3)
	// ascending, earliest kept
	assert.Equal(t, mustHMS(t, "07:55:00"), samples[0])
	for i := 0; i+1 < len(samples); i++ {
		assert.Less(t, samples[i], samples[i+1])
	}
}

func TestFindJourneysInvalidStop(t *testing.T) {
	h := *DefaultHeadway
	sn := frequentSnapshot(t)

	_, err := h.FindJourneys(context.Background(), sn, "nope", "B", "08:00:00")
	var invalid *InvalidStopError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "nope", invalid.ID)

	_, err = h.FindJourneys(context.Background(), sn, "A", "nope", "08:00:00")
	require.ErrorAs(t, err, &invalid)

	_, err = h.FindJourneys(context.Background(), sn, "A", "B", "garbage")
	assert.Error(t, err)
}

func TestFindJourneysEndToEnd(t *testing.T) {
	h := *DefaultHeadway
	sn := frequentSnapshot(t)

	journeys, err := h.FindJourneys(context.Background(), sn, "A", "B", "07:55:00")
	require.NoError(t, err)
	require.Len(t, journeys, 4)
	assert.Equal(t, "A", journeys[0].Legs[0].FromStopID)
	assert.Equal(t, "B", journeys[0].Legs[0].ToStopID)
}

func TestDedupJourneysKeepsEarliest(t *testing.T) {
	a := &Journey{depS: 100, DurationS: 50, legSig: "x"}
	b := &Journey{depS: 90, DurationS: 60, legSig: "x"}
	c := &Journey{depS: 90, DurationS: 40, legSig: "x"}
	d := &Journey{depS: 200, DurationS: 10, legSig: "y"}

	out := dedupJourneys([]*Journey{a, b, c, d}, func(j *Journey) string { return j.legSig })
	require.Len(t, out, 2)
	assert.Same(t, c, out[0])
	assert.Same(t, d, out[1])
}
