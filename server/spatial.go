package main

import (
	"math"
	"sort"

	"github.com/headway-transit/headway"
	"github.com/tidwall/rtree"
)

// buildStopTree creates an R-tree over stop coordinates for nearest-stop
// lookups. Points use the same [lat, lon] for min and max.
func buildStopTree(sn *headway.Snapshot) *rtree.RTree {
	tree := &rtree.RTree{}
	for i := range sn.Stops {
		stop := &sn.Stops[i]
		tree.Insert(
			[2]float64{stop.Lat, stop.Lon},
			[2]float64{stop.Lat, stop.Lon},
			uint32(i),
		)
	}
	return tree
}

// stopsNear returns the keys of stops within radiusM of a point, nearest
// first, at most limit of them.
func stopsNear(tree *rtree.RTree, sn *headway.Snapshot, lat, lon, radiusM float64, limit int) []uint32 {
	if tree == nil {
		return nil
	}

	latOffset := radiusM / earthRadiusM * (180 / math.Pi)
	lonRadius := math.Cos(lat*math.Pi/180) * earthRadiusM
	lonOffset := radiusM / lonRadius * (180 / math.Pi)

	type candidate struct {
		key  uint32
		dist float64
	}
	var candidates []candidate

	tree.Search(
		[2]float64{lat - latOffset, lon - lonOffset},
		[2]float64{lat + latOffset, lon + lonOffset},
		func(min, max [2]float64, data interface{}) bool {
			key, ok := data.(uint32)
			if !ok || int(key) >= len(sn.Stops) {
				return true
			}
			stop := &sn.Stops[key]
			dist := headway.DistanceM(lat, lon, stop.Lat, stop.Lon)
			if dist <= radiusM {
				candidates = append(candidates, candidate{key: key, dist: dist})
			}
			return true
		},
	)

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	keys := make([]uint32, 0, limit)
	for i := 0; i < len(candidates) && i < limit; i++ {
		keys = append(keys, candidates[i].key)
	}
	return keys
}

const earthRadiusM = 6371010.0
