package hazard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"hazard-reporter/internal/common/logger"
	"hazard-reporter/internal/models"
)

// Searcher is a geo-aware index of hazards.
type Searcher interface {
	Index(ctx context.Context, h models.Hazard) error
	Near(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.HazardDistance, error)
}

const indexMapping = `{
	"mappings": {
		"properties": {
			"type": {"type": "keyword"},
			"description": {"type": "text"},
			"reportedBy": {"type": "keyword"},
			"createdAt": {"type": "date"},
			"upvotes": {"type": "integer"},
			"downvotes": {"type": "integer"},
			"location": {"type": "geo_point"}
		}
	}
}`

type geoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type indexedHazard struct {
	models.Hazard
	Location geoPoint `json:"location"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string        `json:"_id"`
			Source indexedHazard `json:"_source"`
			Sort   []float64     `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

// ElasticSearcher keeps hazards in an Elasticsearch index with a geo_point
// location and answers radius queries with geo_distance.
type ElasticSearcher struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticSearcher(client *elasticsearch.Client, index string, log logger.Logger) *ElasticSearcher {
	return &ElasticSearcher{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "hazard-search", "index": index}),
	}
}

// EnsureIndex creates the index with its mapping unless it already exists.
func (e *ElasticSearcher) EnsureIndex(ctx context.Context) error {
	res, err := e.client.Indices.Exists([]string{e.index}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", e.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = e.client.Indices.Create(
		e.index,
		e.client.Indices.Create.WithContext(ctx),
		e.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", e.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", e.index, res.String())
	}
	e.logger.Info("Created hazard index", nil)
	return nil
}

// Index writes or replaces the hazard's search document.
func (e *ElasticSearcher) Index(ctx context.Context, h models.Hazard) error {
	body, err := json.Marshal(indexedHazard{Hazard: h, Location: geoPoint{Lat: h.Latitude, Lon: h.Longitude}})
	if err != nil {
		return fmt.Errorf("encode hazard %s: %w", h.ID, err)
	}

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: h.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("index hazard %s: %w", h.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index hazard %s: %s", h.ID, res.String())
	}
	return nil
}

// Near returns up to limit hazards within radiusKm, closest first.
func (e *ElasticSearcher) Near(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.HazardDistance, error) {
	body, err := json.Marshal(buildNearQuery(lat, lon, radiusKm, limit))
	if err != nil {
		return nil, err
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search hazards: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search hazards: %s", res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]models.HazardDistance, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		h := hit.Source.Hazard
		h.ID = hit.ID
		d := distanceKm(lat, lon, h.Latitude, h.Longitude)
		if len(hit.Sort) > 0 {
			d = hit.Sort[0]
		}
		out = append(out, models.HazardDistance{Hazard: h, DistanceKm: d})
	}
	return out, nil
}

func buildNearQuery(lat, lon, radiusKm float64, limit int) map[string]interface{} {
	center := map[string]interface{}{"lat": lat, "lon": lon}
	return map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": map[string]interface{}{
					"geo_distance": map[string]interface{}{
						"distance": fmt.Sprintf("%gkm", radiusKm),
						"location": center,
					},
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{
				"_geo_distance": map[string]interface{}{
					"location": center,
					"order":    "asc",
					"unit":     "km",
				},
			},
		},
	}
}
