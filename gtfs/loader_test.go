package gtfs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/headway-transit/headway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeed(t *testing.T, dataDir, agency string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(dataDir, agency)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func basicFeed() map[string]string {
	return map[string]string{
		"stops.txt": `stop_id,stop_name,stop_lat,stop_lon
S1,First & Main,37.77490,-122.41940
S2,Second & Main,37.77544,-122.41940
S3,Hilltop,37.80000,-122.41940
`,
		"routes.txt": `route_id,route_short_name,route_long_name
R1,10,Tenth Avenue
`,
		"trips.txt": `route_id,service_id,trip_id
R1,WK,T1
R1,WK,T2
`,
		"stop_times.txt": `trip_id,arrival_time,departure_time,stop_id,stop_sequence
T1,08:00:00,08:00:00,S1,1
T1,08:10:00,08:11:00,S2,2
T1,08:30:00,08:30:00,S3,3
T2,09:00:00,09:00:00,S1,1
T2,09:10:00,09:11:00,S2,2
T2,09:30:00,09:30:00,S3,3
`,
	}
}

func TestLoadBuildsSnapshot(t *testing.T) {
	dataDir := t.TempDir()
	writeFeed(t, dataDir, "BA", basicFeed())

	sn, stats, err := LoadWithStats(dataDir, Options{})
	require.NoError(t, err)

	require.Len(t, sn.Stops, 3)
	_, ok := sn.StopKey("BA:S1")
	assert.True(t, ok, "stop ids are agency-prefixed")

	require.Len(t, sn.Routes, 1)
	route := sn.Routes[0]
	assert.Equal(t, "BA:R1:p0", route.ID)
	assert.Equal(t, "BA:R1", route.GtfsRouteID)
	assert.Equal(t, "10", route.Name)
	require.Len(t, route.Trips, 2)

	// trips sorted by first departure
	assert.Equal(t, "BA:T1", sn.Trips[route.Trips[0]].ID)
	assert.Equal(t, "BA:T2", sn.Trips[route.Trips[1]].ID)

	assert.Zero(t, stats.TripsDropped)
	assert.Zero(t, stats.TripsFiltered)

	// S1 and S2 are 60m apart, close enough for a computed footpath
	s1, _ := sn.StopKey("BA:S1")
	s2, _ := sn.StopKey("BA:S2")
	found := false
	for _, fp := range sn.Stops[s1].Footpaths {
		if fp.Target == s2 {
			found = true
			assert.Equal(t, headway.DefaultHeadway.MinTransferS, fp.Duration)
		}
	}
	assert.True(t, found, "expected computed footpath S1->S2")
}

func TestLoadWindowFilter(t *testing.T) {
	dataDir := t.TempDir()
	writeFeed(t, dataDir, "BA", basicFeed())

	// window covers 07:00-12:00... T1 and T2 both in; narrow to exclude T2
	window := headway.Window{
		Hour:   time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC),
		StartS: 7 * 3600,
		EndS:   9 * 3600,
	}

	sn, stats, err := LoadWithStats(dataDir, Options{Window: window})
	require.NoError(t, err)

	require.Len(t, sn.Trips, 1)
	assert.Equal(t, "BA:T1", sn.Trips[0].ID)
	assert.Equal(t, 1, stats.TripsFiltered)
}

func TestLoadEmptyWindowPublishesEmptySnapshot(t *testing.T) {
	dataDir := t.TempDir()
	writeFeed(t, dataDir, "BA", basicFeed())

	window := headway.Window{
		Hour:   time.Date(2024, 3, 14, 3, 0, 0, 0, time.UTC),
		StartS: 2 * 3600,
		EndS:   7 * 3600,
	}

	sn, _, err := LoadWithStats(dataDir, Options{Window: window})
	require.NoError(t, err)
	assert.Empty(t, sn.Trips)
	assert.Empty(t, sn.Routes)
	assert.Len(t, sn.Stops, 3)
}

func TestLoadDropsNonMonotoneTrips(t *testing.T) {
	dataDir := t.TempDir()
	feed := basicFeed()
	feed["stop_times.txt"] = `trip_id,arrival_time,departure_time,stop_id,stop_sequence
T1,08:00:00,08:00:00,S1,1
T1,07:50:00,07:50:00,S2,2
T1,08:30:00,08:30:00,S3,3
T2,09:00:00,09:00:00,S1,1
T2,09:10:00,09:11:00,S2,2
T2,09:30:00,09:30:00,S3,3
`
	writeFeed(t, dataDir, "BA", feed)

	sn, stats, err := LoadWithStats(dataDir, Options{})
	require.NoError(t, err)

	require.Len(t, sn.Trips, 1)
	assert.Equal(t, "BA:T2", sn.Trips[0].ID)
	assert.Equal(t, 1, stats.TripsDropped)
}

func TestLoadPartitionsOvertakingTrips(t *testing.T) {
	dataDir := t.TempDir()
	feed := basicFeed()
	// T2 leaves after T1 but arrives earlier: same GTFS route and stop
	// sequence, but they cannot share a search pattern
	feed["stop_times.txt"] = `trip_id,arrival_time,departure_time,stop_id,stop_sequence
T1,08:00:00,08:00:00,S1,1
T1,08:20:00,08:21:00,S2,2
T1,08:50:00,08:50:00,S3,3
T2,08:05:00,08:05:00,S1,1
T2,08:12:00,08:13:00,S2,2
T2,08:25:00,08:25:00,S3,3
`
	writeFeed(t, dataDir, "BA", feed)

	sn, stats, err := LoadWithStats(dataDir, Options{})
	require.NoError(t, err)

	require.Len(t, sn.Routes, 2)
	assert.Equal(t, 1, stats.RoutesPartitioned)
	assert.Equal(t, "BA:R1:p0", sn.Routes[0].ID)
	assert.Equal(t, "BA:R1:p1", sn.Routes[1].ID)
	assert.Equal(t, sn.Routes[0].Stops, sn.Routes[1].Stops)
}

func TestLoadSkipsRowsReferencingUnknownEntities(t *testing.T) {
	dataDir := t.TempDir()
	feed := basicFeed()
	feed["stop_times.txt"] += `T1,08:40:00,08:40:00,GHOST,4
`
	writeFeed(t, dataDir, "BA", feed)

	sn, stats, err := LoadWithStats(dataDir, Options{})
	require.NoError(t, err)

	assert.Positive(t, stats.RowsSkipped)
	// T1 survives with its three valid stop events
	for _, trip := range sn.Trips {
		assert.Len(t, trip.StopTimes, 3)
	}
}

func TestLoadShapesAndTransfers(t *testing.T) {
	dataDir := t.TempDir()
	feed := basicFeed()
	feed["trips.txt"] = `route_id,service_id,trip_id,shape_id
R1,WK,T1,SH1
R1,WK,T2,SH1
`
	feed["shapes.txt"] = `shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence
SH1,37.77544,-122.41940,2
SH1,37.77490,-122.41940,1
SH1,37.80000,-122.41940,3
`
	feed["transfers.txt"] = `from_stop_id,to_stop_id,transfer_type,min_transfer_time
S1,S2,2,240
`
	writeFeed(t, dataDir, "BA", feed)

	sn, _, err := LoadWithStats(dataDir, Options{})
	require.NoError(t, err)

	shape, ok := sn.Shapes["BA:SH1"]
	require.True(t, ok)
	require.Len(t, shape, 3)
	// points sorted by sequence
	assert.Equal(t, 37.77490, shape[0].Lat)
	assert.Equal(t, "BA:SH1", sn.Trips[0].ShapeID)

	// the transfers.txt duration replaces the computed one, symmetrically
	s1, _ := sn.StopKey("BA:S1")
	s2, _ := sn.StopKey("BA:S2")
	for _, pair := range [][2]uint32{{s1, s2}, {s2, s1}} {
		found := false
		for _, fp := range sn.Stops[pair[0]].Footpaths {
			if fp.Target == pair[1] {
				found = true
				assert.Equal(t, uint32(240), fp.Duration)
			}
		}
		assert.True(t, found)
	}
}

func TestLoadMultipleAgencies(t *testing.T) {
	dataDir := t.TempDir()
	writeFeed(t, dataDir, "BA", basicFeed())

	other := basicFeed()
	writeFeed(t, dataDir, "CT", other)

	sn, _, err := LoadWithStats(dataDir, Options{})
	require.NoError(t, err)

	assert.Len(t, sn.Stops, 6)
	assert.Len(t, sn.Routes, 2)

	_, ok := sn.StopKey("BA:S1")
	assert.True(t, ok)
	_, ok = sn.StopKey("CT:S1")
	assert.True(t, ok)

	ba, _ := sn.StopKey("BA:S1")
	assert.Equal(t, "BA", sn.Stops[ba].Agency)
}

func TestLoadIsIdempotent(t *testing.T) {
	dataDir := t.TempDir()
	writeFeed(t, dataDir, "BA", basicFeed())

	first, _, err := LoadWithStats(dataDir, Options{})
	require.NoError(t, err)
	second, _, err := LoadWithStats(dataDir, Options{})
	require.NoError(t, err)

	assert.Equal(t, first.Stops, second.Stops)
	assert.Equal(t, first.Routes, second.Routes)
	assert.Equal(t, first.Trips, second.Trips)
	assert.Equal(t, first.StopToRoutes, second.StopToRoutes)
	assert.Equal(t, first.Shapes, second.Shapes)
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Error(t, err)
}

func TestLoadDirWithoutFeeds(t *testing.T) {
	_, err := Load(t.TempDir(), Options{})
	assert.Error(t, err)
}
