package session

import (
	"context"

	"hazard-reporter/internal/models"
)

// Locator resolves a map position. location.Resolver satisfies it.
type Locator interface {
	Resolve(ctx context.Context) models.Resolution
}

// EnsureLocation returns the session's current location, resolving and
// storing one first when the session has none.
func (s *Store) EnsureLocation(ctx context.Context, locator Locator) models.LocationFix {
	if current, ok := s.Snapshot().CurrentLocation.Get(); ok {
		return models.FixFromViewport(current)
	}
	return s.RefreshLocation(ctx, locator).Fix
}

// RefreshLocation resolves a fresh position and stores it as the current
// location together with the permission outcome, when there is one.
func (s *Store) RefreshLocation(ctx context.Context, locator Locator) models.Resolution {
	res := locator.Resolve(ctx)

	patch := models.LocationPatch(res.Fix)
	if _, ok := res.Permission.Get(); ok {
		patch.LocationPermission = models.Ptr(res.Permission)
	}
	s.Update(patch)

	s.logger.Info("Current location updated", map[string]interface{}{
		"tier":     string(res.Tier),
		"viewport": res.Fix.Viewport().String(),
	})
	return res
}

// SetSearchLocation stores the viewport the user last searched for.
func (s *Store) SetSearchLocation(fix models.LocationFix) {
	s.Update(models.Patch{SearchLocation: models.Ptr(models.Some(fix.Viewport()))})
}
