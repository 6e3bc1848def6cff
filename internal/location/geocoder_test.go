package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazard-reporter/internal/common/config"
	"hazard-reporter/internal/common/errors"
	"hazard-reporter/internal/common/logger"
)

func newTestGeocoder(t *testing.T, handler http.HandlerFunc) *Geocoder {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGeocoder(config.GeocodingConfig{
		BaseURL: server.URL + "/v1/geocode/",
		APIKey:  "test-key",
		Timeout: 2000,
		Limit:   3,
	}, logger.NewTestLogger(t))
}

func TestGeocoder_Search(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/geocode/search", r.URL.Path)
		assert.Equal(t, "14 Sutherland St Walgett NSW", r.URL.Query().Get("text"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"results":[
			{"lat":-30.0235,"lon":148.1151,"formatted":"14 Sutherland Street, Walgett NSW 2832, Australia"},
			{"lat":-30.02,"lon":148.11,"formatted":"Walgett NSW","bbox":{"lon1":148.0,"lat1":-30.1,"lon2":148.3,"lat2":-29.9}}
		]}`))
	})

	places, err := g.Search(context.Background(), "  14 Sutherland St Walgett NSW ")
	require.NoError(t, err)
	require.Len(t, places, 2)

	assert.Equal(t, "14 Sutherland Street, Walgett NSW 2832, Australia", places[0].Formatted)
	assert.Equal(t, 0.1, places[0].Fix.SpanLat)
	assert.InDelta(t, 0.2, places[1].Fix.SpanLat, 1e-9)
	assert.InDelta(t, 0.3, places[1].Fix.SpanLon, 1e-9)
}

func TestGeocoder_SearchNoResults(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	})

	_, err := g.Search(context.Background(), "nowhere at all")
	assert.True(t, errors.HasCode(err, errors.ErrCodeGeocodeNoResults))

	_, err = g.Search(context.Background(), "   ")
	assert.True(t, errors.HasCode(err, errors.ErrCodeGeocodeNoResults))
}

func TestGeocoder_ServerError(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Unauthorized","message":"Invalid apiKey"}`))
	})

	_, err := g.Search(context.Background(), "Brisbane")
	assert.True(t, errors.HasCode(err, errors.ErrCodeGeocodeFailed))
}

func TestGeocoder_Reverse(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/geocode/reverse", r.URL.Path)
		assert.Equal(t, "-27.4698", r.URL.Query().Get("lat"))
		assert.Equal(t, "153.0251", r.URL.Query().Get("lon"))
		w.Write([]byte(`{"results":[{"lat":-27.4698,"lon":153.0251,"formatted":"Brisbane City QLD 4000, Australia"}]}`))
	})

	addr, err := g.Reverse(context.Background(), -27.4698, 153.0251)
	require.NoError(t, err)
	assert.Equal(t, "Brisbane City QLD 4000, Australia", addr)
}
