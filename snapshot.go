package headway

import (
	"fmt"
	"sort"
	"time"
)

// Coords is a WGS84 coordinate pair in the wire format used by journey legs.
type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Footpath is a short walking connection to a neighbour stop.
type Footpath struct {
	Target   uint32 `json:"target"`
	Duration uint32 `json:"duration"` // walk time in seconds, always > 0
}

// Stop is a transit stop. Immutable after the snapshot is built.
type Stop struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Agency    string     `json:"agency"`
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	Footpaths []Footpath `json:"footpaths"`
}

// Stopover is one scheduled stop event of a trip, in seconds since service
// midnight. Values past midnight stay above DayInSeconds.
type Stopover struct {
	Arrival   uint32 `json:"arrival"`
	Departure uint32 `json:"departure"`
}

// Trip is a concrete scheduled vehicle run along a route pattern.
type Trip struct {
	ID        string     `json:"id"`
	Route     uint32     `json:"route"`
	StopTimes []Stopover `json:"stopTimes"` // one per route stop
	ShapeID   string     `json:"shapeId,omitempty"`
}

// Route is a route in the RAPTOR sense: an ordered stop sequence shared by
// a set of trips of one GTFS route. Two GTFS routes with identical stop
// patterns stay separate so display labels survive.
type Route struct {
	ID          string   `json:"id"`          // unique pattern id
	GtfsRouteID string   `json:"gtfsRouteId"` // originating GTFS route
	Name        string   `json:"name"`        // display name
	Stops       []uint32 `json:"stops"`
	Trips       []uint32 `json:"trips"` // sorted by departure at stop index 0
}

// StopRoutePair records that a route serves a stop, and at which position.
// When a route visits a stop twice only the earliest position is kept.
type StopRoutePair struct {
	Route     uint32 `json:"route"`
	StopIndex uint32 `json:"stopIndex"`
}

// Window is the wall-clock span of trips resident in a snapshot, expressed
// in seconds relative to the service midnight of its anchor hour. The zero
// Window keeps everything.
type Window struct {
	Hour   time.Time `json:"hour"`
	StartS int64     `json:"startS"`
	EndS   int64     `json:"endS"`
}

// WindowFor computes the refresh window [hour-1h, hour+4h] for the hour
// containing now, in now's location.
func WindowFor(now time.Time) Window {
	hour := now.Truncate(time.Hour)
	midnight := time.Date(hour.Year(), hour.Month(), hour.Day(), 0, 0, 0, 0, hour.Location())
	h := int64(hour.Sub(midnight) / time.Second)
	return Window{Hour: hour, StartS: h - 3600, EndS: h + 4*3600}
}

// Contains reports whether a first departure falls inside the window.
func (w Window) Contains(departureS uint32) bool {
	if w.Hour.IsZero() {
		return true
	}
	d := int64(departureS)
	return d >= w.StartS && d < w.EndS
}

// Snapshot is the immutable in-memory schedule index. It is built once,
// published atomically, and shared read-only by all query workers.
type Snapshot struct {
	Stops      []Stop              `json:"stops"`
	StopsIndex map[string]uint32   `json:"stopsIndex"`
	Routes     []*Route            `json:"routes"`
	Trips      []*Trip             `json:"trips"`
	Shapes     map[string][]Coords `json:"shapes"`

	// StopToRoutes lists, per stop, the routes serving it with the earliest
	// stop index each. Built by NewSnapshot.
	StopToRoutes [][]StopRoutePair `json:"stopToRoutes"`

	Window  Window    `json:"window"`
	BuiltAt time.Time `json:"builtAt"`
}

// Stats summarises a snapshot for logging and metrics.
type Stats struct {
	Stops     int
	Routes    int
	Trips     int
	Footpaths int
}

func (sn *Snapshot) Stats() Stats {
	footpaths := 0
	for i := range sn.Stops {
		footpaths += len(sn.Stops[i].Footpaths)
	}
	return Stats{
		Stops:     len(sn.Stops),
		Routes:    len(sn.Routes),
		Trips:     len(sn.Trips),
		Footpaths: footpaths,
	}
}

// NewSnapshot assembles and validates a schedule index from its parts.
// Trips of every route are sorted by departure at stop index 0; the caller
// must already have partitioned away trips that would overtake within a
// route, and NewSnapshot rejects the input otherwise.
func NewSnapshot(stops []Stop, routes []*Route, trips []*Trip, shapes map[string][]Coords, window Window) (*Snapshot, error) {
	sn := &Snapshot{
		Stops:      stops,
		StopsIndex: make(map[string]uint32, len(stops)),
		Routes:     routes,
		Trips:      trips,
		Shapes:     shapes,
		Window:     window,
		BuiltAt:    time.Now(),
	}
	if sn.Shapes == nil {
		sn.Shapes = map[string][]Coords{}
	}

	for i := range stops {
		if _, ok := sn.StopsIndex[stops[i].ID]; ok {
			return nil, fmt.Errorf("duplicate stop id %q", stops[i].ID)
		}
		sn.StopsIndex[stops[i].ID] = uint32(i)
	}

	for _, trip := range trips {
		if int(trip.Route) >= len(routes) {
			return nil, fmt.Errorf("trip %q references unknown route %d", trip.ID, trip.Route)
		}
		route := routes[trip.Route]
		if len(trip.StopTimes) != len(route.Stops) {
			return nil, fmt.Errorf("trip %q has %d stop times for a %d-stop route", trip.ID, len(trip.StopTimes), len(route.Stops))
		}
		for i, st := range trip.StopTimes {
			if st.Departure < st.Arrival {
				return nil, fmt.Errorf("trip %q departs stop %d before arriving", trip.ID, i)
			}
			if i > 0 && st.Arrival < trip.StopTimes[i-1].Departure {
				return nil, fmt.Errorf("trip %q travels backwards in time at stop %d", trip.ID, i)
			}
		}
	}

	for ri, route := range routes {
		if len(route.Stops) < 2 {
			return nil, fmt.Errorf("route %q has fewer than two stops", route.ID)
		}
		for _, stop := range route.Stops {
			if int(stop) >= len(stops) {
				return nil, fmt.Errorf("route %q references unknown stop %d", route.ID, stop)
			}
		}
		for _, tk := range route.Trips {
			if int(tk) >= len(trips) {
				return nil, fmt.Errorf("route %q references unknown trip %d", route.ID, tk)
			}
			if trips[tk].Route != uint32(ri) {
				return nil, fmt.Errorf("trip %q disagrees with route %q about its pattern", trips[tk].ID, route.ID)
			}
		}

		sort.SliceStable(route.Trips, func(i, j int) bool {
			return trips[route.Trips[i]].StopTimes[0].Departure < trips[route.Trips[j]].StopTimes[0].Departure
		})

		// departure order must hold at every stop index, or the binary
		// search for the earliest catchable trip breaks
		for stop := range route.Stops {
			for i := 1; i < len(route.Trips); i++ {
				prev := trips[route.Trips[i-1]].StopTimes[stop]
				cur := trips[route.Trips[i]].StopTimes[stop]
				if cur.Departure < prev.Departure || cur.Arrival < prev.Arrival {
					return nil, fmt.Errorf("route %q trips overtake at stop index %d", route.ID, stop)
				}
			}
		}
	}

	sn.StopToRoutes = make([][]StopRoutePair, len(stops))
	for ri, route := range routes {
		for i, stop := range route.Stops {
			seen := false
			for _, pair := range sn.StopToRoutes[stop] {
				if pair.Route == uint32(ri) {
					seen = true
					break
				}
			}
			if seen {
				continue
			}
			sn.StopToRoutes[stop] = append(sn.StopToRoutes[stop], StopRoutePair{
				Route:     uint32(ri),
				StopIndex: uint32(i),
			})
		}
	}

	return sn, nil
}

// StopKey resolves a GTFS stop id to its compact key.
func (sn *Snapshot) StopKey(id string) (uint32, bool) {
	key, ok := sn.StopsIndex[id]
	return key, ok
}

// earliestTripAt finds the first trip of the route departing the given stop
// index at or after minDeparture. Trips share one departure order at every
// index, so an ordinary binary search applies.
func (sn *Snapshot) earliestTripAt(route *Route, stopIdx int, minDeparture uint32) (uint32, bool) {
	if len(route.Trips) == 0 {
		return 0, false
	}

	if sn.Trips[route.Trips[0]].StopTimes[stopIdx].Departure >= minDeparture {
		return route.Trips[0], true
	}

	if sn.Trips[route.Trips[len(route.Trips)-1]].StopTimes[stopIdx].Departure < minDeparture {
		return 0, false
	}

	left := 0
	right := len(route.Trips) - 1

	// invariant: left departs before minDeparture, right at or after it
	for left+1 < right {
		mid := (left + right) / 2
		if sn.Trips[route.Trips[mid]].StopTimes[stopIdx].Departure < minDeparture {
			left = mid
		} else {
			right = mid
		}
	}

	return route.Trips[right], true
}
