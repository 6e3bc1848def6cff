package hazard

import (
	"context"
	stderrors "errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hazard-reporter/internal/common/config"
	"hazard-reporter/internal/common/errors"
	"hazard-reporter/internal/common/logger"
	"hazard-reporter/internal/common/validation"
	"hazard-reporter/internal/docstore"
	"hazard-reporter/internal/models"
)

var (
	brisbane   = models.LocationFix{Latitude: -27.4698, Longitude: 153.0251, SpanLat: 0.1, SpanLon: 0.1}
	reportedAt = time.Date(2026, 2, 14, 6, 30, 0, 0, time.UTC)
)

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Index(ctx context.Context, h models.Hazard) error {
	return m.Called(ctx, h).Error(0)
}

func (m *mockSearcher) Near(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.HazardDistance, error) {
	args := m.Called(ctx, lat, lon, radiusKm, limit)
	found, _ := args.Get(0).([]models.HazardDistance)
	return found, args.Error(1)
}

func newTestService(t *testing.T, docs docstore.Store, searcher Searcher) *Service {
	v, err := validation.NewValidator()
	require.NoError(t, err)
	s := NewService(config.HazardsConfig{DefaultRadiusKm: 10, MaxResults: 20}, docs, searcher, v, logger.NewTestLogger(t))
	s.now = func() time.Time { return reportedAt }
	return s
}

func member(status models.ActiveStatus) models.Session {
	return models.AuthenticatedPatch("u1", models.Profile{
		AccountType: models.Some(models.AccountStandard),
		Active:      models.Some(status),
	}, reportedAt, time.Hour).Apply(models.DefaultSession())
}

func flood(lat, lon float64) models.HazardReport {
	return models.HazardReport{Type: models.HazardFlood, Description: "Water over the road", Latitude: lat, Longitude: lon}
}

func TestService_ReportRequiresActiveSession(t *testing.T) {
	svc := newTestService(t, docstore.NewMemory(), nil)

	_, err := svc.Report(context.Background(), models.DefaultSession(), flood(-27.47, 153.02))
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotAuthenticated))

	_, err = svc.Report(context.Background(), member(models.StatusSuspended), flood(-27.47, 153.02))
	assert.True(t, errors.HasCode(err, errors.ErrCodeAccountInactive))
}

func TestService_ReportValidation(t *testing.T) {
	svc := newTestService(t, docstore.NewMemory(), nil)
	sess := member(models.StatusActive)

	tests := []struct {
		name   string
		report models.HazardReport
	}{
		{"unknown type", models.HazardReport{Type: "Volcano", Description: "smoke", Latitude: 1, Longitude: 1}},
		{"blank description", models.HazardReport{Type: models.HazardFire, Description: "   ", Latitude: 1, Longitude: 1}},
		{"latitude out of range", flood(91, 1)},
		{"longitude out of range", flood(1, -181)},
		{"too many words", models.HazardReport{
			Type:        models.HazardFallenTree,
			Description: strings.TrimSpace(strings.Repeat("branch ", validation.MaxDescriptionWords+1)),
			Latitude:    1,
			Longitude:   1,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Report(context.Background(), sess, tt.report)
			assert.True(t, errors.HasCode(err, errors.ErrCodeHazardValidationFailed), "got %v", err)
		})
	}
}

func TestService_ReportAndGet(t *testing.T) {
	docs := docstore.NewMemory()
	searcher := &mockSearcher{}
	searcher.On("Index", mock.Anything, mock.AnythingOfType("models.Hazard")).Return(stderrors.New("index unavailable"))
	svc := newTestService(t, docs, searcher)

	h, err := svc.Report(context.Background(), member(models.StatusActive), flood(-27.47, 153.02))
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, "u1", h.ReportedBy)
	assert.Equal(t, reportedAt, h.CreatedAt)
	searcher.AssertNumberOfCalls(t, "Index", 1)

	got, err := svc.Get(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, h, got)

	_, err = svc.Get(context.Background(), "missing")
	assert.True(t, errors.HasCode(err, errors.ErrCodeHazardNotFound))
}

func TestService_Vote(t *testing.T) {
	svc := newTestService(t, docstore.NewMemory(), nil)
	sess := member(models.StatusActive)
	ctx := context.Background()

	h, err := svc.Report(ctx, sess, flood(-27.47, 153.02))
	require.NoError(t, err)

	_, err = svc.Vote(ctx, sess, h.ID, models.Upvote)
	require.NoError(t, err)
	_, err = svc.Vote(ctx, sess, h.ID, models.Upvote)
	require.NoError(t, err)
	got, err := svc.Vote(ctx, sess, h.ID, models.Downvote)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Upvotes)
	assert.Equal(t, 1, got.Downvotes)

	_, err = svc.Vote(ctx, sess, "missing", models.Upvote)
	assert.True(t, errors.HasCode(err, errors.ErrCodeHazardNotFound))

	_, err = svc.Vote(ctx, models.DefaultSession(), h.ID, models.Upvote)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotAuthenticated))
}

func TestService_NearFromDocuments(t *testing.T) {
	svc := newTestService(t, docstore.NewMemory(), nil)
	sess := member(models.StatusActive)
	ctx := context.Background()

	report := func(lat, lon float64) string {
		h, err := svc.Report(ctx, sess, flood(lat, lon))
		require.NoError(t, err)
		return h.ID
	}
	fiveKmEast := report(-27.4698, 153.0757)
	threeKmNorth := report(-27.4429, 153.0251)
	report(-27.2902, 153.0251) // ~20km north
	report(-36.8485, 174.7633) // Auckland

	found, err := svc.Near(ctx, brisbane, 0)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, threeKmNorth, found[0].Hazard.ID)
	assert.InDelta(t, 3.0, found[0].DistanceKm, 0.1)
	assert.Equal(t, fiveKmEast, found[1].Hazard.ID)
	assert.InDelta(t, 5.0, found[1].DistanceKm, 0.1)

	found, err = svc.Near(ctx, brisbane, 25)
	require.NoError(t, err)
	assert.Len(t, found, 3)
}

func TestService_NearKeepsHazardsAtTheEdge(t *testing.T) {
	svc := newTestService(t, docstore.NewMemory(), nil)
	ctx := context.Background()

	h, err := svc.Report(ctx, member(models.StatusActive), flood(0.8990, 0))
	require.NoError(t, err)
	require.Less(t, distanceKm(0, 0, 0.8990, 0), 100.0)

	found, err := svc.Near(ctx, models.LocationFix{}, 100)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, h.ID, found[0].Hazard.ID)
}

func TestService_NearUsesSearcher(t *testing.T) {
	searcher := &mockSearcher{}
	want := []models.HazardDistance{{Hazard: models.Hazard{ID: "h1"}, DistanceKm: 1.2}}
	searcher.On("Near", mock.Anything, brisbane.Latitude, brisbane.Longitude, 10.0, 20).Return(want, nil).Once()
	searcher.On("Near", mock.Anything, brisbane.Latitude, brisbane.Longitude, 2.0, 20).Return(nil, stderrors.New("cluster red")).Once()
	svc := newTestService(t, docstore.NewMemory(), searcher)

	found, err := svc.Near(context.Background(), brisbane, 0)
	require.NoError(t, err)
	assert.Equal(t, want, found)

	_, err = svc.Near(context.Background(), brisbane, 2)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSearchQueryFailed))
	searcher.AssertExpectations(t)
}

func TestBoundingBox(t *testing.T) {
	b := boundingBox(-27.4698, 153.0251, 10)
	assert.True(t, b.hasLon)
	assert.InDelta(t, -27.5596, b.minLat, 0.001)
	assert.InDelta(t, -27.3800, b.maxLat, 0.001)
	assert.Less(t, b.minLon, 153.0251)

	// near the antimeridian only latitude narrows
	assert.False(t, boundingBox(-36.8, 179.95, 10).hasLon)
	// reaching a pole
	assert.False(t, boundingBox(89.95, 0, 10).hasLon)
}

func TestBoundingBox_CoversCircle(t *testing.T) {
	tests := []struct {
		name          string
		lat, radiusKm float64
	}{
		{"equator", 0, 100},
		{"brisbane", -27.4698, 25},
		{"high latitude", 60, 200},
		{"far south", -70, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := boundingBox(tt.lat, 10, tt.radiusKm)
			require.True(t, b.hasLon)
			for bearing := 0.0; bearing < 360; bearing += 5 {
				lat, lon := destination(tt.lat, 10, bearing, tt.radiusKm*0.9999)
				assert.LessOrEqual(t, distanceKm(tt.lat, 10, lat, lon), tt.radiusKm)
				assert.True(t, lat >= b.minLat && lat <= b.maxLat, "bearing %v lat %v outside box", bearing, lat)
				assert.True(t, lon >= b.minLon && lon <= b.maxLon, "bearing %v lon %v outside box", bearing, lon)
			}
		})
	}
}

// destination walks distKm from (lat, lon) along bearing on the sphere.
func destination(lat, lon, bearing, distKm float64) (float64, float64) {
	rad := math.Pi / 180
	d := distKm / earthRadiusKm
	phi1, lambda1, theta := lat*rad, lon*rad, bearing*rad
	phi2 := math.Asin(math.Sin(phi1)*math.Cos(d) + math.Cos(phi1)*math.Sin(d)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(math.Sin(theta)*math.Sin(d)*math.Cos(phi1), math.Cos(d)-math.Sin(phi1)*math.Sin(phi2))
	return phi2 / rad, lambda2 / rad
}

func TestDistanceKm(t *testing.T) {
	assert.InDelta(t, 0, distanceKm(1, 1, 1, 1), 1e-9)
	// Brisbane to Auckland
	assert.InDelta(t, 2290, distanceKm(-27.4698, 153.0251, -36.8485, 174.7633), 50)
}
