package session

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazard-reporter/internal/models"
)

type stubLocator struct {
	res   models.Resolution
	calls atomic.Int32
}

func (l *stubLocator) Resolve(context.Context) models.Resolution {
	l.calls.Add(1)
	return l.res
}

func TestStore_EnsureLocationResolvesOnce(t *testing.T) {
	f := newFixture(t)
	f.prov.signedOut()
	s := f.store(t)
	require.NoError(t, s.Start(context.Background()))

	locator := &stubLocator{res: models.Resolution{
		Fix:        brisbane,
		Tier:       models.TierDevice,
		Permission: models.Some(models.PermissionOutcome{Status: models.PermissionGranted, Granted: true}),
	}}

	assert.Equal(t, brisbane, s.EnsureLocation(context.Background(), locator))
	assert.Equal(t, brisbane, s.EnsureLocation(context.Background(), locator))
	assert.EqualValues(t, 1, locator.calls.Load())

	got := s.Snapshot()
	assert.Equal(t, models.Some(brisbane.Viewport()), got.CurrentLocation)
	assert.Equal(t, models.Some(models.PermissionOutcome{Status: models.PermissionGranted, Granted: true}), got.LocationPermission)
}

func TestStore_RefreshLocationKeepsPermissionWhenTierSkippedIt(t *testing.T) {
	f := newFixture(t)
	f.prov.signedOut()
	s := f.store(t)
	require.NoError(t, s.Start(context.Background()))

	denied := models.PermissionOutcome{Status: models.PermissionDenied}
	s.Update(models.Patch{LocationPermission: models.Ptr(models.Some(denied))})

	// ip tier after services were disabled: no permission outcome
	res := s.RefreshLocation(context.Background(), &stubLocator{res: models.Resolution{Fix: auckland, Tier: models.TierIP}})
	assert.Equal(t, models.TierIP, res.Tier)

	got := s.Snapshot()
	assert.Equal(t, models.Some(auckland.Viewport()), got.CurrentLocation)
	assert.Equal(t, models.Some(denied), got.LocationPermission)
}

func TestStore_SetSearchLocation(t *testing.T) {
	f := newFixture(t)
	f.prov.signedOut()
	s := f.store(t)
	require.NoError(t, s.Start(context.Background()))

	s.SetSearchLocation(auckland)
	assert.Equal(t, models.Some(auckland.Viewport()), s.Snapshot().SearchLocation)
	assert.False(t, s.Snapshot().CurrentLocation.Valid)
}
