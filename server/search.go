package main

import (
	"strconv"

	"github.com/blevesearch/bleve"
	"github.com/headway-transit/headway"
)

type indexStop struct {
	ID     string
	Name   string
	Agency string
}

// buildStopSearch indexes every stop name in memory. The index is rebuilt
// from scratch on each snapshot publish; memory-only keeps the rebuild free
// of filesystem state.
func buildStopSearch(sn *headway.Snapshot) (bleve.Index, error) {
	mapping := bleve.NewIndexMapping()

	index, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, err
	}

	for i := range sn.Stops {
		stop := &sn.Stops[i]
		err = index.Index(strconv.Itoa(i), indexStop{
			ID:     stop.ID,
			Name:   stop.Name,
			Agency: stop.Agency,
		})
		if err != nil {
			return nil, err
		}
	}

	return index, nil
}

// searchStops resolves a free-text query to stop keys, best match first.
func searchStops(index bleve.Index, query string, limit int) ([]uint32, error) {
	search := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	search.Size = limit

	searchResult, err := index.Search(search)
	if err != nil {
		return nil, err
	}

	keys := make([]uint32, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		id, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		keys = append(keys, uint32(id))
	}

	return keys, nil
}
