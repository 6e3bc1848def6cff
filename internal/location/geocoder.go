package location

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hazard-reporter/internal/common/config"
	"hazard-reporter/internal/common/errors"
	httpclient "hazard-reporter/internal/common/http"
	"hazard-reporter/internal/common/logger"
	"hazard-reporter/internal/common/metrics"
	"hazard-reporter/internal/models"
)

const searchSpan = 0.1

// Place is one geocoding match.
type Place struct {
	Formatted string             `json:"formatted"`
	Latitude  float64            `json:"latitude"`
	Longitude float64            `json:"longitude"`
	Fix       models.LocationFix `json:"fix"`
}

type geoapifyBBox struct {
	Lon1 float64 `json:"lon1"`
	Lat1 float64 `json:"lat1"`
	Lon2 float64 `json:"lon2"`
	Lat2 float64 `json:"lat2"`
}

type geoapifyResult struct {
	Lat       float64       `json:"lat"`
	Lon       float64       `json:"lon"`
	Formatted string        `json:"formatted"`
	BBox      *geoapifyBBox `json:"bbox"`
}

type geoapifyResponse struct {
	Results []geoapifyResult `json:"results"`
}

// Geocoder turns addresses into places and back using a Geoapify-style
// JSON API.
type Geocoder struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
	limit   int
	logger  logger.Logger
}

func NewGeocoder(cfg config.GeocodingConfig, log logger.Logger) *Geocoder {
	return &Geocoder{
		client:  httpclient.NewClient(config.GetDuration(cfg.Timeout)),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		limit:   cfg.Limit,
		logger:  log.WithFields(map[string]interface{}{"component": "geocoder"}),
	}
}

// Search returns the matches for a free-text address, best first.
func (g *Geocoder) Search(ctx context.Context, address string) ([]Place, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.NewGeocodeNoResultsError(address)
	}

	q := url.Values{}
	q.Set("text", address)
	q.Set("format", "json")
	if g.limit > 0 {
		q.Set("limit", strconv.Itoa(g.limit))
	}
	q.Set("apiKey", g.apiKey)

	resp, err := g.get(ctx, "search", q)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, errors.NewGeocodeNoResultsError(address)
	}

	places := make([]Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		places = append(places, toPlace(r))
	}
	g.logger.Debug("Address search", map[string]interface{}{"query": address, "results": len(places)})
	return places, nil
}

// Reverse returns the formatted address nearest to a coordinate.
func (g *Geocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "json")
	q.Set("apiKey", g.apiKey)

	resp, err := g.get(ctx, "reverse", q)
	if err != nil {
		return "", err
	}
	if len(resp.Results) == 0 || resp.Results[0].Formatted == "" {
		return "", errors.NewGeocodeNoResultsError(fmt.Sprintf("%f,%f", lat, lon))
	}
	return resp.Results[0].Formatted, nil
}

func (g *Geocoder) get(ctx context.Context, op string, q url.Values) (*geoapifyResponse, error) {
	start := time.Now()
	defer func() {
		metrics.GeocodeRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	var resp geoapifyResponse
	if err := g.client.GetJSON(ctx, g.baseURL+"/"+op+"?"+q.Encode(), &resp); err != nil {
		g.logger.Warn("Geocoding request failed", map[string]interface{}{"op": op, "error": err.Error()})
		return nil, errors.NewGeocodeFailedError(err)
	}
	return &resp, nil
}

// toPlace sizes the viewport from the bounding box when there is one.
func toPlace(r geoapifyResult) Place {
	fix := models.LocationFix{Latitude: r.Lat, Longitude: r.Lon, SpanLat: searchSpan, SpanLon: searchSpan}
	if b := r.BBox; b != nil {
		if span := abs(b.Lat2 - b.Lat1); span > 0 {
			fix.SpanLat = span
		}
		if span := abs(b.Lon2 - b.Lon1); span > 0 {
			fix.SpanLon = span
		}
	}
	return Place{Formatted: r.Formatted, Latitude: r.Lat, Longitude: r.Lon, Fix: fix}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
