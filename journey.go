package headway

import (
	"strconv"
	"strings"

	"github.com/twpayne/go-polyline"
)

// Leg is one journey segment in the wire format consumed by the HTTP
// layer. RouteId is empty exactly for walking legs. Shape is the polyline
// between the boarding and alighting stops as [lat, lon] pairs; Polyline
// is the same geometry Google-encoded for lighter map payloads.
type Leg struct {
	FromStopID     string      `json:"FromStopId"`
	FromStop       string      `json:"FromStop"`
	FromStopCoords Coords      `json:"FromStopCoords"`
	ToStopID       string      `json:"ToStopId"`
	ToStop         string      `json:"ToStop"`
	ToStopCoords   Coords      `json:"ToStopCoords"`
	DepartureTime  string      `json:"DepartureTime"`
	ArrivalTime    string      `json:"ArrivalTime"`
	RouteID        string      `json:"RouteId"`
	RouteLongID    string      `json:"RouteLongId"`
	Shape          [][]float64 `json:"Shape,omitempty"`
	Polyline       string      `json:"Polyline,omitempty"`
}

// Journey is an ordered sequence of legs from source to target.
type Journey struct {
	Legs          []Leg  `json:"Legs"`
	DepartureTime string `json:"DepartureTime"`
	ArrivalTime   string `json:"ArrivalTime"`
	Transfers     int    `json:"Transfers"`
	DurationS     uint32 `json:"DurationS"`

	depS       uint32
	arrS       uint32
	firstBoard uint32 // ArrivalNotReached for walk-only journeys
	legSig     string
	timeSig    string
}

// reconstruct walks parent pointers backwards from the target, coalesces
// consecutive rides on the same trip, and materialises the legs in forward
// order. A chain that does not trace back to the source means the result
// of the scan cannot be trusted for this round; nil is returned and the
// caller treats it as no journey.
func (h *Headway) reconstruct(sn *Snapshot, rounds *Rounds, source, target uint32, lastRound int) *Journey {
	path := make([]parentLeg, 0, 2*(lastRound+1))
	pos := target
	k := lastRound

	for pos != source {
		if k < 0 || len(path) > 2*len(rounds.Arrivals)+2 {
			return nil
		}

		leg := rounds.Parents[k][pos]
		switch leg.Kind {
		case parentWalk:
			path = append(path, leg)
			pos = leg.From
		case parentBoard:
			path = append(path, leg)
			pos = leg.From
			k--
		default:
			return nil
		}
	}

	if len(path) == 0 {
		return nil
	}

	// reverse into travel order
	for i := len(path)/2 - 1; i >= 0; i-- {
		opp := len(path) - 1 - i
		path[i], path[opp] = path[opp], path[i]
	}

	// staying seated on the same trip across rounds is one leg
	merged := make([]parentLeg, 0, len(path))
	for _, leg := range path {
		if leg.Kind == parentBoard && len(merged) > 0 {
			last := &merged[len(merged)-1]
			if last.Kind == parentBoard && last.Trip == leg.Trip && last.AlightIndex == leg.BoardIndex {
				last.AlightIndex = leg.AlightIndex
				last.To = leg.To
				last.Arrive = leg.Arrive
				continue
			}
		}
		merged = append(merged, leg)
	}

	journey := &Journey{
		Legs:       make([]Leg, 0, len(merged)),
		depS:       merged[0].Depart,
		arrS:       merged[len(merged)-1].Arrive,
		firstBoard: ArrivalNotReached,
	}

	boardings := 0
	var legSig, timeSig strings.Builder

	for _, pl := range merged {
		journey.Legs = append(journey.Legs, sn.materializeLeg(pl))

		if pl.Kind == parentBoard {
			trip := sn.Trips[pl.Trip]
			boardings++
			if journey.firstBoard == ArrivalNotReached {
				journey.firstBoard = pl.Depart
			}
			legSig.WriteString(trip.ID)
			legSig.WriteByte('@')
			legSig.WriteString(strconv.Itoa(int(pl.BoardIndex)))
			legSig.WriteByte('-')
			legSig.WriteString(strconv.Itoa(int(pl.AlightIndex)))
			timeSig.WriteString(trip.ID)
		} else {
			legSig.WriteString("walk:")
			legSig.WriteString(sn.Stops[pl.From].ID)
			legSig.WriteByte('>')
			legSig.WriteString(sn.Stops[pl.To].ID)
			timeSig.WriteString("walk")
		}
		legSig.WriteByte('|')
		timeSig.WriteByte('|')
	}

	if boardings > 0 {
		journey.Transfers = boardings - 1
	}
	journey.DurationS = journey.arrS - journey.depS
	journey.DepartureTime = FormatHMS(journey.depS)
	journey.ArrivalTime = FormatHMS(journey.arrS)
	journey.legSig = legSig.String()
	journey.timeSig = strconv.Itoa(int(journey.depS)) + "|" + strconv.Itoa(int(journey.arrS)) + "#" + timeSig.String()

	return journey
}

func (sn *Snapshot) materializeLeg(pl parentLeg) Leg {
	from := &sn.Stops[pl.From]
	to := &sn.Stops[pl.To]

	leg := Leg{
		FromStopID:     from.ID,
		FromStop:       from.Name,
		FromStopCoords: Coords{Lat: from.Lat, Lon: from.Lon},
		ToStopID:       to.ID,
		ToStop:         to.Name,
		ToStopCoords:   Coords{Lat: to.Lat, Lon: to.Lon},
		DepartureTime:  FormatHMS(pl.Depart),
		ArrivalTime:    FormatHMS(pl.Arrive),
	}

	if pl.Kind == parentBoard {
		trip := sn.Trips[pl.Trip]
		route := sn.Routes[trip.Route]
		leg.RouteID = route.Name
		leg.RouteLongID = route.ID

		if trip.ShapeID != "" {
			if shape, ok := sn.Shapes[trip.ShapeID]; ok {
				leg.Shape = sliceShape(shape, from.Lat, from.Lon, to.Lat, to.Lon)
			}
		}
	}

	if len(leg.Shape) == 0 {
		leg.Shape = [][]float64{{from.Lat, from.Lon}, {to.Lat, to.Lon}}
	}
	leg.Polyline = string(polyline.EncodeCoords(leg.Shape))

	return leg
}

// sliceShape cuts the sub-polyline between the boarding and alighting
// stops: the point nearest the boarding stop starts the slice, and the
// nearest point at or after it to the alighting stop ends it.
func sliceShape(shape []Coords, fromLat, fromLon, toLat, toLon float64) [][]float64 {
	if len(shape) == 0 {
		return nil
	}

	distSq := func(p Coords, lat, lon float64) float64 {
		dLat := p.Lat - lat
		dLon := p.Lon - lon
		return dLat*dLat + dLon*dLon
	}

	start := 0
	minStart := distSq(shape[0], fromLat, fromLon)
	for i := 1; i < len(shape); i++ {
		if d := distSq(shape[i], fromLat, fromLon); d < minStart {
			minStart = d
			start = i
		}
	}

	end := start
	minEnd := distSq(shape[start], toLat, toLon)
	for i := start + 1; i < len(shape); i++ {
		if d := distSq(shape[i], toLat, toLon); d < minEnd {
			minEnd = d
			end = i
		}
	}

	out := make([][]float64, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, []float64{shape[i].Lat, shape[i].Lon})
	}
	return out
}
