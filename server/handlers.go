package main

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/gin-gonic/gin"
	"github.com/headway-transit/headway"
	"github.com/tidwall/rtree"
)

type server struct {
	planner *headway.Headway
	manager *headway.Manager
	metrics *headway.Metrics
	logger  *slog.Logger

	// search and spatial indexes track the active snapshot; rebuilt by the
	// sync observer
	mu         sync.RWMutex
	stopSearch bleve.Index
	stopTree   *rtree.RTree
}

// rebuildIndexes derives the stop search and spatial indexes from the
// active snapshot. Called from the lifecycle observer after each publish.
func (s *server) rebuildIndexes() {
	sn := s.manager.Snapshot()
	if sn == nil {
		return
	}

	search, err := buildStopSearch(sn)
	if err != nil {
		s.logger.Error("failed to rebuild stop search index", "error", err)
		return
	}
	tree := buildStopTree(sn)

	s.mu.Lock()
	s.stopSearch = search
	s.stopTree = tree
	s.mu.Unlock()
}

type stopResult struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Agency      string  `json:"agency"`
	DisplayName string  `json:"displayName"`
}

func stopResultFor(sn *headway.Snapshot, key uint32) stopResult {
	stop := &sn.Stops[key]
	return stopResult{
		ID:          stop.ID,
		Name:        stop.Name,
		Lat:         stop.Lat,
		Lon:         stop.Lon,
		Agency:      stop.Agency,
		DisplayName: stop.Name + " (" + stop.Agency + ")",
	}
}

func (s *server) handleRoute(c *gin.Context) {
	sn := s.manager.Snapshot()
	if sn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no schedule loaded"})
		return
	}

	source := c.Query("source")
	target := c.Query("target")
	if source == "" || target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing source or target"})
		return
	}
	earliestDep := c.DefaultQuery("earliest_dep", "08:00:00")

	start := time.Now()
	journeys, err := s.planner.FindJourneys(c.Request.Context(), sn, source, target, earliestDep)
	if err != nil {
		var invalid *headway.InvalidStopError
		if errors.As(err, &invalid) {
			s.metrics.ObserveQuery("invalid_stop", time.Since(start))
			c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
			return
		}
		s.metrics.ObserveQuery("bad_request", time.Since(start))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := "ok"
	if len(journeys) == 0 {
		status = "no_journey"
	}
	s.metrics.ObserveQuery(status, time.Since(start))

	c.JSON(http.StatusOK, journeys)
}

func (s *server) handleStops(c *gin.Context) {
	sn := s.manager.Snapshot()
	if sn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no schedule loaded"})
		return
	}

	const limit = 200
	query := c.Query("q")

	if query == "" {
		results := make([]stopResult, 0, limit)
		for key := range sn.Stops {
			if len(results) == limit {
				break
			}
			results = append(results, stopResultFor(sn, uint32(key)))
		}
		c.JSON(http.StatusOK, results)
		return
	}

	s.mu.RLock()
	index := s.stopSearch
	s.mu.RUnlock()
	if index == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search index not ready"})
		return
	}

	keys, err := searchStops(index, query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// the index may briefly lag a snapshot swap; skip keys it no longer has
	results := make([]stopResult, 0, len(keys))
	for _, key := range keys {
		if int(key) >= len(sn.Stops) {
			continue
		}
		results = append(results, stopResultFor(sn, key))
	}
	c.JSON(http.StatusOK, results)
}

func (s *server) handleNearestStop(c *gin.Context) {
	sn := s.manager.Snapshot()
	if sn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no schedule loaded"})
		return
	}

	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid lat/lon"})
		return
	}

	radiusM := 2000.0
	if v := c.Query("radius"); v != "" {
		km, err := strconv.ParseFloat(v, 64)
		if err != nil || km <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid radius"})
			return
		}
		radiusM = km * 1000
	}

	limit := 5
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	s.mu.RLock()
	tree := s.stopTree
	s.mu.RUnlock()

	keys := stopsNear(tree, sn, lat, lon, radiusM, limit)
	results := make([]stopResult, 0, len(keys))
	for _, key := range keys {
		if int(key) >= len(sn.Stops) {
			continue
		}
		results = append(results, stopResultFor(sn, key))
	}
	c.JSON(http.StatusOK, results)
}

func (s *server) handleAllStopsGeoJSON(c *gin.Context) {
	sn := s.manager.Snapshot()
	if sn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no schedule loaded"})
		return
	}

	features := make([]gin.H, 0, len(sn.Stops))
	for i := range sn.Stops {
		stop := &sn.Stops[i]
		features = append(features, gin.H{
			"type": "Feature",
			"geometry": gin.H{
				"type":        "Point",
				"coordinates": []float64{stop.Lon, stop.Lat},
			},
			"properties": gin.H{
				"id":     stop.ID,
				"name":   stop.Name,
				"agency": stop.Agency,
			},
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"type":     "FeatureCollection",
		"features": features,
	})
}

func (s *server) handleHealth(c *gin.Context) {
	if s.manager.Snapshot() == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "loading"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
