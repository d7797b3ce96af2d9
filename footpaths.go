package headway

import (
	"sort"

	"github.com/kyroy/kdtree"
)

// footpathNeighbourCap bounds the KNN lookup per stop; past it the radius
// cutoff has long since fired in any real network.
const footpathNeighbourCap = 500

// stopPoint adapts a stop to the kd-tree point interface.
type stopPoint struct {
	Lat float64
	Lon float64
	Key uint32
}

func (p *stopPoint) Dimensions() int {
	return 2
}

func (p *stopPoint) Dimension(i int) float64 {
	switch i {
	case 0:
		return p.Lat
	case 1:
		return p.Lon
	default:
		panic("invalid dimension")
	}
}

// FootpathOverride is an explicit transfer duration from transfers.txt,
// taking precedence over the computed walk time.
type FootpathOverride struct {
	From     uint32
	To       uint32
	Duration uint32
}

// BuildFootpaths populates every stop's footpath list with its walkable
// neighbours inside FootpathRadiusM, walk times clamped to
// [MinTransferS, MaxTransferS]. Overrides replace computed values. The
// result is symmetric: A->B implies B->A with the same duration.
func (h *Headway) BuildFootpaths(sn *Snapshot, overrides []FootpathOverride) {
	if len(sn.Stops) == 0 {
		return
	}

	points := make([]kdtree.Point, len(sn.Stops))
	for i := range sn.Stops {
		points[i] = &stopPoint{
			Lat: sn.Stops[i].Lat,
			Lon: sn.Stops[i].Lon,
			Key: uint32(i),
		}
	}
	tree := kdtree.New(points)

	paths := make([]map[uint32]uint32, len(sn.Stops))
	set := func(from, to, secs uint32) {
		if paths[from] == nil {
			paths[from] = make(map[uint32]uint32)
		}
		paths[from][to] = secs
	}

	for _, fromPoint := range points {
		from := fromPoint.(*stopPoint)

		neighbours := tree.KNN(fromPoint, footpathNeighbourCap)
		for _, toPoint := range neighbours {
			to := toPoint.(*stopPoint)
			if from.Key == to.Key {
				continue
			}

			dist := DistanceM(from.Lat, from.Lon, to.Lat, to.Lon)
			if dist > h.FootpathRadiusM {
				// KNN orders by distance in degree space, not metres, so a
				// later result can still fall inside the radius
				continue
			}

			secs := walkSeconds(dist, h.WalkingSpeed)
			if secs < h.MinTransferS {
				secs = h.MinTransferS
			}
			if secs > h.MaxTransferS {
				secs = h.MaxTransferS
			}

			set(from.Key, to.Key, secs)
			set(to.Key, from.Key, secs)
		}
	}

	for _, ov := range overrides {
		if ov.Duration == 0 || ov.From == ov.To {
			continue
		}
		set(ov.From, ov.To, ov.Duration)
		set(ov.To, ov.From, ov.Duration)
	}

	for key := range sn.Stops {
		neighbours := paths[key]
		fps := make([]Footpath, 0, len(neighbours))
		for target, secs := range neighbours {
			fps = append(fps, Footpath{Target: target, Duration: secs})
		}
		sort.Slice(fps, func(i, j int) bool {
			return fps[i].Target < fps[j].Target
		})
		sn.Stops[key].Footpaths = fps
	}
}
