package gtfs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	feed "github.com/artonge/go-gtfs"
	"github.com/headway-transit/headway"
)

// Options configure a load.
type Options struct {
	// Window drops every trip whose first departure falls outside it.
	// The zero window keeps everything.
	Window headway.Window

	// Planner supplies the footpath parameters. DefaultHeadway when nil.
	Planner *headway.Headway

	Logger *slog.Logger
}

// LoadStats counts what the loader skipped or repaired.
type LoadStats struct {
	RowsSkipped       int // rows missing mandatory fields, with unparsable times, duplicate stop ids, or referencing unknown entities
	TripsDropped      int // trips with fewer than two stop times or non-monotone stop times
	TripsFiltered     int // trips outside the window
	RoutesPartitioned int // extra patterns created to keep departure order
}

// Load reads one or more GTFS feeds under dir and builds a schedule
// snapshot. If dir itself contains a stops.txt it is a single feed named
// after the directory; otherwise every subdirectory with a stops.txt is
// loaded as one operator, and all entity ids are prefixed "operator:".
func Load(dir string, opts Options) (*headway.Snapshot, error) {
	sn, _, err := LoadWithStats(dir, opts)
	return sn, err
}

func LoadWithStats(dir string, opts Options) (*headway.Snapshot, *LoadStats, error) {
	planner := opts.Planner
	if planner == nil {
		planner = headway.DefaultHeadway
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "gtfs_loader"))

	feedDirs, err := discoverFeeds(dir)
	if err != nil {
		return nil, nil, err
	}

	b := &builder{
		stats:     &LoadStats{},
		logger:    logger,
		routeInfo: map[string]string{},
		tripMeta:  map[string]tripMeta{},
		tripRows:  map[string][]stopTimeRow{},
		tripOrder: []string{},
		shapes:    map[string][]headway.Coords{},
		stops:     []headway.Stop{},
		stopIndex: map[string]uint32{},
	}

	for _, fd := range feedDirs {
		if err := b.readFeed(fd.path, fd.agency); err != nil {
			return nil, nil, fmt.Errorf("read feed %s: %w", fd.path, err)
		}
	}

	sn, err := b.build(planner, opts.Window)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("gtfs load complete",
		"feeds", len(feedDirs),
		"stops", len(sn.Stops),
		"routes", len(sn.Routes),
		"trips", len(sn.Trips),
		"rowsSkipped", b.stats.RowsSkipped,
		"tripsDropped", b.stats.TripsDropped,
		"tripsFiltered", b.stats.TripsFiltered,
		"routesPartitioned", b.stats.RoutesPartitioned)

	return sn, b.stats, nil
}

type feedDir struct {
	path   string
	agency string
}

func discoverFeeds(dir string) ([]feedDir, error) {
	if _, err := os.Stat(filepath.Join(dir, "stops.txt")); err == nil {
		return []feedDir{{path: dir, agency: filepath.Base(dir)}}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var feeds []feedDir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(sub, "stops.txt")); err == nil {
			feeds = append(feeds, feedDir{path: sub, agency: entry.Name()})
		}
	}

	if len(feeds) == 0 {
		return nil, fmt.Errorf("no GTFS feeds found under %s", dir)
	}
	return feeds, nil
}

type tripMeta struct {
	gtfsRoute string
	shapeID   string
}

type stopTimeRow struct {
	seq       uint32
	stop      uint32
	arrival   uint32
	departure uint32
}

type builder struct {
	stats  *LoadStats
	logger *slog.Logger

	stops     []headway.Stop
	stopIndex map[string]uint32

	routeInfo map[string]string // gtfs route id -> display name
	tripMeta  map[string]tripMeta
	tripRows  map[string][]stopTimeRow
	tripOrder []string // trip ids in first-seen order, for determinism
	shapes    map[string][]headway.Coords
	overrides []headway.FootpathOverride
}

func (b *builder) readFeed(dir, agency string) error {
	prefix := agency + ":"

	err := IterateStops(filepath.Join(dir, "stops.txt"), func(_ int, stop *feed.Stop) bool {
		if stop.ID == "" {
			b.stats.RowsSkipped++
			return true
		}
		id := prefix + stop.ID
		if _, ok := b.stopIndex[id]; ok {
			b.stats.RowsSkipped++
			return true
		}
		b.stopIndex[id] = uint32(len(b.stops))
		b.stops = append(b.stops, headway.Stop{
			ID:     id,
			Name:   stop.Name,
			Agency: agency,
			Lat:    stop.Latitude,
			Lon:    stop.Longitude,
		})
		return true
	})
	if err != nil {
		return fmt.Errorf("stops.txt: %w", err)
	}

	err = IterateRoutes(filepath.Join(dir, "routes.txt"), func(_ int, route *feed.Route) bool {
		if route.ID == "" {
			b.stats.RowsSkipped++
			return true
		}
		name := route.ShortName
		if name == "" {
			name = route.LongName
		}
		if name == "" {
			name = route.ID
		}
		b.routeInfo[prefix+route.ID] = name
		return true
	})
	if err != nil {
		return fmt.Errorf("routes.txt: %w", err)
	}

	err = IterateTrips(filepath.Join(dir, "trips.txt"), func(_ int, trip *feed.Trip) bool {
		if trip.ID == "" || trip.RouteID == "" {
			b.stats.RowsSkipped++
			return true
		}
		routeID := prefix + trip.RouteID
		if _, ok := b.routeInfo[routeID]; !ok {
			b.stats.RowsSkipped++
			return true
		}
		meta := tripMeta{gtfsRoute: routeID}
		if trip.ShapeID != "" {
			meta.shapeID = prefix + trip.ShapeID
		}
		id := prefix + trip.ID
		if _, ok := b.tripMeta[id]; !ok {
			b.tripOrder = append(b.tripOrder, id)
		}
		b.tripMeta[id] = meta
		return true
	})
	if err != nil {
		return fmt.Errorf("trips.txt: %w", err)
	}

	err = IterateStopTimes(filepath.Join(dir, "stop_times.txt"), func(_ int, st *feed.StopTime) bool {
		tripID := prefix + st.TripID
		if _, ok := b.tripMeta[tripID]; !ok {
			b.stats.RowsSkipped++
			return true
		}
		stopKey, ok := b.stopIndex[prefix+st.StopID]
		if !ok {
			b.stats.RowsSkipped++
			return true
		}
		arrival, err := headway.ParseHMS(st.Arrival)
		if err != nil {
			b.stats.RowsSkipped++
			return true
		}
		departure, err := headway.ParseHMS(st.Departure)
		if err != nil {
			b.stats.RowsSkipped++
			return true
		}
		b.tripRows[tripID] = append(b.tripRows[tripID], stopTimeRow{
			seq:       st.StopSeq,
			stop:      stopKey,
			arrival:   arrival,
			departure: departure,
		})
		return true
	})
	if err != nil {
		return fmt.Errorf("stop_times.txt: %w", err)
	}

	// optional tables
	shapesPath := filepath.Join(dir, "shapes.txt")
	if _, err := os.Stat(shapesPath); err == nil {
		type shapePoint struct {
			seq int
			pt  headway.Coords
		}
		raw := map[string][]shapePoint{}
		err = IterateShapes(shapesPath, func(_ int, row *ShapeRow) bool {
			if row.ShapeID == "" {
				b.stats.RowsSkipped++
				return true
			}
			id := prefix + row.ShapeID
			raw[id] = append(raw[id], shapePoint{seq: row.Sequence, pt: headway.Coords{Lat: row.Lat, Lon: row.Lon}})
			return true
		})
		if err != nil {
			return fmt.Errorf("shapes.txt: %w", err)
		}
		for id, points := range raw {
			sort.SliceStable(points, func(i, j int) bool { return points[i].seq < points[j].seq })
			coords := make([]headway.Coords, len(points))
			for i, p := range points {
				coords[i] = p.pt
			}
			b.shapes[id] = coords
		}
	}

	transfersPath := filepath.Join(dir, "transfers.txt")
	if _, err := os.Stat(transfersPath); err == nil {
		err = IterateTransfers(transfersPath, func(_ int, row *TransferRow) bool {
			if row.TransferType != 2 || row.MinTransferTime <= 0 {
				return true
			}
			from, okFrom := b.stopIndex[prefix+row.FromStopID]
			to, okTo := b.stopIndex[prefix+row.ToStopID]
			if !okFrom || !okTo {
				b.stats.RowsSkipped++
				return true
			}
			b.overrides = append(b.overrides, headway.FootpathOverride{
				From:     from,
				To:       to,
				Duration: uint32(row.MinTransferTime),
			})
			return true
		})
		if err != nil {
			return fmt.Errorf("transfers.txt: %w", err)
		}
	}

	return nil
}

// build groups the surviving trips into route patterns and assembles the
// snapshot.
func (b *builder) build(planner *headway.Headway, window headway.Window) (*headway.Snapshot, error) {
	type pendingTrip struct {
		id      string
		meta    tripMeta
		stops   []uint32
		times   []headway.Stopover
		groupID string
	}

	pending := make([]pendingTrip, 0, len(b.tripOrder))

	for _, tripID := range b.tripOrder {
		rows := b.tripRows[tripID]
		if len(rows) < 2 {
			b.stats.TripsDropped++
			continue
		}

		sort.SliceStable(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

		monotone := true
		stops := make([]uint32, len(rows))
		times := make([]headway.Stopover, len(rows))
		for i, row := range rows {
			stops[i] = row.stop
			times[i] = headway.Stopover{Arrival: row.arrival, Departure: row.departure}
			if row.departure < row.arrival {
				monotone = false
			}
			if i > 0 && row.arrival < rows[i-1].departure {
				monotone = false
			}
		}
		if !monotone {
			b.stats.TripsDropped++
			continue
		}

		if !window.Contains(times[0].Departure) {
			b.stats.TripsFiltered++
			continue
		}

		meta := b.tripMeta[tripID]
		seqParts := make([]string, len(stops))
		for i, s := range stops {
			seqParts[i] = fmt.Sprint(s)
		}
		seqKey := strings.Join(seqParts, "/")

		pending = append(pending, pendingTrip{
			id:      tripID,
			meta:    meta,
			stops:   stops,
			times:   times,
			groupID: meta.gtfsRoute + "|" + seqKey,
		})
	}

	// group by gtfs route + exact stop sequence
	groups := map[string][]int{}
	groupOrder := []string{}
	for i, pt := range pending {
		if _, ok := groups[pt.groupID]; !ok {
			groupOrder = append(groupOrder, pt.groupID)
		}
		groups[pt.groupID] = append(groups[pt.groupID], i)
	}
	sort.Strings(groupOrder)

	var routes []*headway.Route
	var trips []*headway.Trip
	patternCount := map[string]int{}

	for _, groupID := range groupOrder {
		members := groups[groupID]

		sort.SliceStable(members, func(i, j int) bool {
			return pending[members[i]].times[0].Departure < pending[members[j]].times[0].Departure
		})

		// partition into layers where departures stay ordered at every
		// stop index, so trips never overtake within one pattern
		var layers [][]int
		for _, m := range members {
			placed := false
			for li := range layers {
				last := layers[li][len(layers[li])-1]
				if !overtakes(pending[m].times, pending[last].times) {
					layers[li] = append(layers[li], m)
					placed = true
					break
				}
			}
			if !placed {
				layers = append(layers, []int{m})
			}
		}
		if len(layers) > 1 {
			b.stats.RoutesPartitioned += len(layers) - 1
		}

		gtfsRoute := pending[members[0]].meta.gtfsRoute
		for _, layer := range layers {
			routeKey := uint32(len(routes))
			route := &headway.Route{
				ID:          fmt.Sprintf("%s:p%d", gtfsRoute, patternCount[gtfsRoute]),
				GtfsRouteID: gtfsRoute,
				Name:        b.routeInfo[gtfsRoute],
				Stops:       pending[layer[0]].stops,
			}
			patternCount[gtfsRoute]++

			for _, m := range layer {
				pt := pending[m]
				route.Trips = append(route.Trips, uint32(len(trips)))
				trips = append(trips, &headway.Trip{
					ID:        pt.id,
					Route:     routeKey,
					StopTimes: pt.times,
					ShapeID:   pt.meta.shapeID,
				})
			}
			routes = append(routes, route)
		}
	}

	sn, err := headway.NewSnapshot(b.stops, routes, trips, b.shapes, window)
	if err != nil {
		return nil, fmt.Errorf("assemble snapshot: %w", err)
	}

	planner.BuildFootpaths(sn, b.overrides)
	return sn, nil
}

// overtakes reports whether trip a, departing later at the first stop,
// would pass trip b somewhere along the shared pattern.
func overtakes(a, b []headway.Stopover) bool {
	for i := range a {
		if a[i].Departure < b[i].Departure || a[i].Arrival < b[i].Arrival {
			return true
		}
	}
	return false
}
