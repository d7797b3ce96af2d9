package headway

import "context"

// Query runs one earliest-arrival RAPTOR search from source to target with
// the given departure time in seconds since service midnight. It returns
// nil when the target is unreachable within the transfer limit, and also
// when ctx is cancelled; cancellation is only checked between rounds.
//
// rounds may be nil or sized for a different snapshot, in which case fresh
// buffers are allocated. A corrupt index panics.
func (h *Headway) Query(ctx context.Context, sn *Snapshot, rounds *Rounds, source, target uint32, departure uint32) *Journey {
	if int(source) >= len(sn.Stops) || int(target) >= len(sn.Stops) {
		panic("stop key out of range")
	}

	if rounds == nil || !rounds.fits(len(sn.Stops), h.TransferLimit) {
		rounds = NewRounds(len(sn.Stops), h.TransferLimit)
	} else {
		rounds.Reset()
	}

	rounds.Arrivals[0][source] = departure
	rounds.Best[source] = departure
	rounds.Marked[source] = true

	// walking away from the source costs no boarding
	for _, fp := range sn.Stops[source].Footpaths {
		arr := departure + fp.Duration
		if arr < rounds.Best[fp.Target] {
			rounds.Arrivals[0][fp.Target] = arr
			rounds.Best[fp.Target] = arr
			rounds.Parents[0][fp.Target] = parentLeg{
				Kind:   parentWalk,
				From:   source,
				To:     fp.Target,
				Depart: departure,
				Arrive: arr,
			}
			rounds.Marked[fp.Target] = true
		}
	}

	targetStop := &sn.Stops[target]

	for k := 1; k <= h.TransferLimit; k++ {
		if ctx != nil && ctx.Err() != nil {
			return nil
		}

		h.runRound(sn, rounds, target, targetStop, k)

		anyMarked := false
		for _, marked := range rounds.Marked {
			if marked {
				anyMarked = true
				break
			}
		}
		if !anyMarked {
			break
		}
	}

	bestRound := -1
	best := ArrivalNotReached
	for k := 0; k <= h.TransferLimit; k++ {
		if rounds.Arrivals[k][target] < best {
			best = rounds.Arrivals[k][target]
			bestRound = k
		}
	}

	if bestRound < 0 {
		return nil
	}

	return h.reconstruct(sn, rounds, source, target, bestRound)
}

// runRound executes the three phases of RAPTOR round k: collect the routes
// serving marked stops, scan them, then relax footpaths from the stops the
// scan improved.
func (h *Headway) runRound(sn *Snapshot, rounds *Rounds, target uint32, targetStop *Stop, k int) {
	// clear queue
	for key := range rounds.Queue {
		delete(rounds.Queue, key)
	}

	// collect routes serving marked stops, keeping the earliest stop index
	for stop, marked := range rounds.Marked {
		if !marked {
			continue
		}

		for _, pair := range sn.StopToRoutes[stop] {
			enter, ok := rounds.Queue[pair.Route]
			if !ok || pair.StopIndex < enter {
				rounds.Queue[pair.Route] = pair.StopIndex
			}
		}

		rounds.Marked[stop] = false
	}

	rounds.Improved = rounds.Improved[:0]
	prevRound := rounds.Arrivals[k-1]
	thisRound := rounds.Arrivals[k]

	// scan routes
	for routeKey, enterIdx := range rounds.Queue {
		route := sn.Routes[routeKey]

		var trip *Trip
		tripKey := uint32(0)
		boardIdx := -1

		for i := int(enterIdx); i < len(route.Stops); i++ {
			stop := route.Stops[i]

			if trip != nil && i > boardIdx {
				arr := trip.StopTimes[i].Arrival
				if arr < rounds.Best[stop] && arr < rounds.Best[target] {
					thisRound[stop] = arr
					rounds.Best[stop] = arr
					rounds.Parents[k][stop] = parentLeg{
						Kind:        parentBoard,
						From:        route.Stops[boardIdx],
						To:          stop,
						Trip:        tripKey,
						BoardIndex:  uint32(boardIdx),
						AlightIndex: uint32(i),
						Depart:      trip.StopTimes[boardIdx].Departure,
						Arrive:      arr,
					}
					if !rounds.Marked[stop] {
						rounds.Marked[stop] = true
						rounds.Improved = append(rounds.Improved, stop)
					}
				}
			}

			prev := prevRound[stop]
			if prev == ArrivalNotReached {
				continue
			}

			// a stop that cannot beat the best known target arrival even at
			// line-of-sight vehicle speed is not worth boarding from
			if !h.DisablePruning && rounds.Best[target] != ArrivalNotReached {
				if prev+h.lowerBoundS(&sn.Stops[stop], targetStop) >= rounds.Best[target] {
					continue
				}
			}

			if trip == nil || prev+h.BoardBufferS <= trip.StopTimes[i].Departure {
				cand, ok := sn.earliestTripAt(route, i, prev+h.BoardBufferS)
				if ok && (trip == nil || sn.Trips[cand].StopTimes[i].Departure < trip.StopTimes[i].Departure) {
					tripKey = cand
					trip = sn.Trips[cand]
					boardIdx = i
				}
			}
		}
	}

	// relax footpaths from the stops the scan improved. Walk targets are
	// marked for the next round but never relaxed again here, so walks do
	// not chain within a round.
	improved := rounds.Improved
	departures := make([]uint32, len(improved))
	for i, stop := range improved {
		departures[i] = thisRound[stop]
	}

	for i, stop := range improved {
		arrAtStop := departures[i]

		for _, fp := range sn.Stops[stop].Footpaths {
			cand := arrAtStop + fp.Duration
			if cand >= rounds.Best[fp.Target] || cand >= rounds.Best[target] {
				continue
			}

			thisRound[fp.Target] = cand
			rounds.Best[fp.Target] = cand
			rounds.Parents[k][fp.Target] = parentLeg{
				Kind:   parentWalk,
				From:   stop,
				To:     fp.Target,
				Depart: arrAtStop,
				Arrive: cand,
			}
			rounds.Marked[fp.Target] = true
		}
	}
}
