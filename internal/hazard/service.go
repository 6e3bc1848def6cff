// Package hazard stores user hazard reports, their votes, and answers
// "what is near this point" queries.
package hazard

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"hazard-reporter/internal/common/config"
	"hazard-reporter/internal/common/errors"
	"hazard-reporter/internal/common/logger"
	"hazard-reporter/internal/common/metrics"
	"hazard-reporter/internal/common/validation"
	"hazard-reporter/internal/docstore"
	"hazard-reporter/internal/models"
)

const (
	defaultRadiusKm   = 10.0
	defaultMaxResults = 50
)

// Service reports, reads, votes on and searches hazards. The document
// database is the record of truth; the optional Searcher is an index over it.
type Service struct {
	docs      docstore.Store
	searcher  Searcher
	validator *validation.Validator
	logger    logger.Logger
	radiusKm  float64
	limit     int
	now       func() time.Time
}

// NewService builds a Service. searcher may be nil.
func NewService(cfg config.HazardsConfig, docs docstore.Store, searcher Searcher, validator *validation.Validator, log logger.Logger) *Service {
	radius := cfg.DefaultRadiusKm
	if radius <= 0 {
		radius = defaultRadiusKm
	}
	limit := cfg.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}
	return &Service{
		docs:      docs,
		searcher:  searcher,
		validator: validator,
		logger:    log.WithFields(map[string]interface{}{"component": "hazard"}),
		radiusKm:  radius,
		limit:     limit,
		now:       time.Now,
	}
}

// Report stores a new hazard on behalf of the session's user.
func (s *Service) Report(ctx context.Context, sess models.Session, report models.HazardReport) (models.Hazard, error) {
	if err := requireActive(sess, "report hazard"); err != nil {
		return models.Hazard{}, err
	}

	result := s.validator.ValidateHazardReport(map[string]interface{}{
		"type":        string(report.Type),
		"description": report.Description,
		"latitude":    report.Latitude,
		"longitude":   report.Longitude,
	})
	if !result.Valid {
		return models.Hazard{}, errors.NewHazardValidationFailedError(strings.Join(result.Messages(), "; "))
	}

	h := models.Hazard{
		ID:          uuid.NewString(),
		Type:        report.Type,
		Description: strings.TrimSpace(report.Description),
		Latitude:    report.Latitude,
		Longitude:   report.Longitude,
		ReportedBy:  sess.UserID,
		CreatedAt:   s.now().UTC().Truncate(time.Second),
	}
	if err := s.docs.SetDoc(ctx, models.HazardCollection, h.ID, h.Fields()); err != nil {
		s.logger.Error("Failed to store hazard", map[string]interface{}{"hazardId": h.ID, "error": err.Error()})
		return models.Hazard{}, errors.NewDocumentWriteFailedError(models.HazardCollection, h.ID, err)
	}
	s.index(ctx, h)

	metrics.HazardReports.WithLabelValues(string(h.Type)).Inc()
	s.logger.Info("Hazard reported", map[string]interface{}{
		"hazardId": h.ID,
		"type":     string(h.Type),
		"userId":   sess.UserID,
	})
	return h, nil
}

// Get reads one hazard.
func (s *Service) Get(ctx context.Context, id string) (models.Hazard, error) {
	fields, err := s.docs.GetDoc(ctx, models.HazardCollection, id)
	if stderrors.Is(err, docstore.ErrNotFound) {
		return models.Hazard{}, errors.NewHazardNotFoundError(id)
	}
	if err != nil {
		return models.Hazard{}, errors.NewDocumentReadFailedError(models.HazardCollection, id, err)
	}
	return models.HazardFromFields(id, fields), nil
}

// Vote adds one up or down vote and returns the updated hazard.
func (s *Service) Vote(ctx context.Context, sess models.Session, id string, kind models.VoteKind) (models.Hazard, error) {
	if err := requireActive(sess, "vote"); err != nil {
		return models.Hazard{}, err
	}

	err := s.docs.Increment(ctx, models.HazardCollection, id, kind.Field(), 1)
	if stderrors.Is(err, docstore.ErrNotFound) {
		return models.Hazard{}, errors.NewHazardNotFoundError(id)
	}
	if err != nil {
		return models.Hazard{}, errors.NewDocumentWriteFailedError(models.HazardCollection, id, err)
	}

	h, err := s.Get(ctx, id)
	if err != nil {
		return models.Hazard{}, err
	}
	s.index(ctx, h)
	s.logger.Info("Hazard vote recorded", map[string]interface{}{"hazardId": id, "vote": string(kind)})
	return h, nil
}

// Near lists hazards within radiusKm of center, closest first. A radius of
// zero or less means the configured default.
func (s *Service) Near(ctx context.Context, center models.LocationFix, radiusKm float64) ([]models.HazardDistance, error) {
	if radiusKm <= 0 {
		radiusKm = s.radiusKm
	}

	if s.searcher != nil {
		found, err := s.searcher.Near(ctx, center.Latitude, center.Longitude, radiusKm, s.limit)
		if err != nil {
			s.logger.Error("Hazard search failed", map[string]interface{}{"error": err.Error()})
			return nil, errors.NewSearchQueryFailedError(err)
		}
		return found, nil
	}
	return s.nearFromDocuments(ctx, center, radiusKm)
}

// nearFromDocuments narrows with a bounding-box query and finishes with an
// exact distance filter.
func (s *Service) nearFromDocuments(ctx context.Context, center models.LocationFix, radiusKm float64) ([]models.HazardDistance, error) {
	b := boundingBox(center.Latitude, center.Longitude, radiusKm)
	filters := []docstore.Filter{
		{Field: "latitude", Op: docstore.OpGreaterEqual, Value: b.minLat},
		{Field: "latitude", Op: docstore.OpLessEqual, Value: b.maxLat},
	}
	if b.hasLon {
		filters = append(filters,
			docstore.Filter{Field: "longitude", Op: docstore.OpGreaterEqual, Value: b.minLon},
			docstore.Filter{Field: "longitude", Op: docstore.OpLessEqual, Value: b.maxLon},
		)
	}

	docs, err := s.docs.Query(ctx, models.HazardCollection, filters)
	if err != nil {
		s.logger.Error("Hazard query failed", map[string]interface{}{"error": err.Error()})
		return nil, errors.NewSearchQueryFailedError(err)
	}

	var out []models.HazardDistance
	for _, doc := range docs {
		h := models.HazardFromFields(doc.ID, doc.Fields)
		d := distanceKm(center.Latitude, center.Longitude, h.Latitude, h.Longitude)
		if d <= radiusKm {
			out = append(out, models.HazardDistance{Hazard: h, DistanceKm: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if len(out) > s.limit {
		out = out[:s.limit]
	}
	return out, nil
}

// index mirrors h into the search backend. The document write already
// succeeded, so failures are only logged.
func (s *Service) index(ctx context.Context, h models.Hazard) {
	if s.searcher == nil {
		return
	}
	if err := s.searcher.Index(ctx, h); err != nil {
		s.logger.Warn("Failed to index hazard", map[string]interface{}{"hazardId": h.ID, "error": err.Error()})
	}
}

// requireActive rejects signed-out sessions and accounts whose stored
// status is anything but active. A session with no status on record is
// let through.
func requireActive(sess models.Session, operation string) error {
	if !sess.IsAuthenticated() {
		return errors.NewNotAuthenticatedError(operation)
	}
	if status, ok := sess.Active.Get(); ok && status != models.StatusActive {
		return errors.NewAccountInactiveError(sess.UserID)
	}
	return nil
}
