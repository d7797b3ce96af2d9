package headway

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FindJourneys answers a range query between two GTFS stop ids: departures
// within [earliestDep, earliestDep+WindowS) are sampled, an independent
// RAPTOR worker runs per sample over the shared read-only snapshot, and the
// merged results are deduplicated, ranked and truncated to MaxJourneys.
//
// An unknown stop id yields an InvalidStopError. An exhausted search is not
// an error; the list is simply empty. Hitting the query deadline returns
// whatever journeys completed in time.
func (h *Headway) FindJourneys(ctx context.Context, sn *Snapshot, sourceID, targetID, earliestDepHMS string) ([]*Journey, error) {
	source, ok := sn.StopKey(sourceID)
	if !ok {
		return nil, &InvalidStopError{ID: sourceID}
	}
	target, ok := sn.StopKey(targetID)
	if !ok {
		return nil, &InvalidStopError{ID: targetID}
	}

	dep, err := ParseHMS(earliestDepHMS)
	if err != nil {
		return nil, err
	}

	return h.RangeQuery(ctx, sn, source, target, dep), nil
}

// RangeQuery is FindJourneys over resolved stop keys.
func (h *Headway) RangeQuery(ctx context.Context, sn *Snapshot, source, target uint32, earliestDep uint32) []*Journey {
	samples := h.sampleDepartures(sn, source, earliestDep)

	qctx := ctx
	if h.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, h.QueryTimeout)
		defer cancel()
	}

	workers := h.WorkerCount
	if workers <= 0 {
		workers = 1
	}
	pool := make(chan *Rounds, workers)
	for i := 0; i < workers; i++ {
		pool <- NewRounds(len(sn.Stops), h.TransferLimit)
	}

	var mu sync.Mutex
	journeys := make([]*Journey, 0, len(samples))

	g, gctx := errgroup.WithContext(qctx)
	for _, t0 := range samples {
		t0 := t0
		g.Go(func() error {
			rounds := <-pool
			defer func() { pool <- rounds }()

			if j := h.Query(gctx, sn, rounds, source, target, t0); j != nil {
				mu.Lock()
				journeys = append(journeys, j)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if errors.Is(qctx.Err(), context.DeadlineExceeded) && h.Logger != nil {
		h.Logger.Warn("range query hit deadline, returning partial results",
			"samples", len(samples), "completed", len(journeys))
	}

	windowEnd := earliestDep + h.WindowS
	filtered := make([]*Journey, 0, len(journeys))
	for _, j := range journeys {
		if j.firstBoard != ArrivalNotReached && j.firstBoard >= windowEnd {
			continue
		}
		if j.firstBoard == ArrivalNotReached && j.depS >= windowEnd {
			continue
		}
		filtered = append(filtered, j)
	}

	// two journeys are duplicates if they ride the same trip segments, or
	// if they share first departure, final arrival and trip sequence
	out := dedupJourneys(filtered, func(j *Journey) string { return j.legSig })
	out = dedupJourneys(out, func(j *Journey) string { return j.timeSig })

	sort.Slice(out, func(i, j int) bool {
		if out[i].depS != out[j].depS {
			return out[i].depS < out[j].depS
		}
		return out[i].DurationS < out[j].DurationS
	})

	if h.MaxJourneys > 0 && len(out) > h.MaxJourneys {
		out = out[:h.MaxJourneys]
	}
	return out
}

// sampleDepartures enumerates the worker start times for a range query:
// the window start itself, every in-window departure at the source, and
// every in-window departure at a footpath neighbour shifted back by the
// walk plus the board buffer so a worker starting then actually catches
// the trip.
func (h *Headway) sampleDepartures(sn *Snapshot, source uint32, earliestDep uint32) []uint32 {
	windowEnd := earliestDep + h.WindowS
	seen := map[uint32]struct{}{earliestDep: {}}

	collect := func(stop uint32, minDep uint32, shift uint32) {
		for _, pair := range sn.StopToRoutes[stop] {
			route := sn.Routes[pair.Route]
			idx := int(pair.StopIndex)
			for _, tk := range route.Trips {
				d := sn.Trips[tk].StopTimes[idx].Departure
				if d < minDep || d >= windowEnd {
					continue
				}
				t := earliestDep
				if d > shift && d-shift > earliestDep {
					t = d - shift
				}
				seen[t] = struct{}{}
			}
		}
	}

	collect(source, earliestDep, 0)
	for _, fp := range sn.Stops[source].Footpaths {
		collect(fp.Target, earliestDep+fp.Duration, fp.Duration+h.BoardBufferS)
	}

	samples := make([]uint32, 0, len(seen))
	for t := range seen {
		samples = append(samples, t)
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	if h.MaxSamples > 0 && len(samples) > h.MaxSamples {
		samples = samples[:h.MaxSamples]
	}
	return samples
}

// dedupJourneys keeps, per key, the journey departing earliest, breaking
// ties on shorter duration. Input order is preserved otherwise.
func dedupJourneys(in []*Journey, key func(*Journey) string) []*Journey {
	seen := make(map[string]*Journey, len(in))
	order := make([]string, 0, len(in))

	for _, j := range in {
		k := key(j)
		cur, ok := seen[k]
		if !ok {
			seen[k] = j
			order = append(order, k)
			continue
		}
		if j.depS < cur.depS || (j.depS == cur.depS && j.DurationS < cur.DurationS) {
			seen[k] = j
		}
	}

	out := make([]*Journey, 0, len(order))
	for _, k := range order {
		out = append(out, seen[k])
	}
	return out
}
