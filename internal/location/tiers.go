package location

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	httpclient "hazard-reporter/internal/common/http"
	"hazard-reporter/internal/models"
)

const (
	deviceSpan = 0.01
	ipSpan     = 0.1
)

var (
	ErrServicesDisabled = errors.New("location services disabled")
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnknownCountry   = errors.New("country code not in table")
)

// Attempt carries what a tier reports besides its fix.
type Attempt struct {
	notifier   Notifier
	Permission models.Optional[models.PermissionOutcome]
}

// Notify shows message to the user before a coarser strategy runs.
func (a *Attempt) Notify(message string) {
	if a.notifier != nil {
		a.notifier.Notify(message)
	}
}

// Tier is one strategy of the fallback chain.
type Tier interface {
	Name() models.Tier
	Locate(ctx context.Context, attempt *Attempt) (models.LocationFix, error)
}

// DeviceTier asks the device for a precise position.
type DeviceTier struct {
	Device            Device
	PermissionTimeout time.Duration
	PositionTimeout   time.Duration
}

func (t *DeviceTier) Name() models.Tier { return models.TierDevice }

func (t *DeviceTier) Locate(ctx context.Context, attempt *Attempt) (models.LocationFix, error) {
	status, err := boundedWait(ctx, t.PermissionTimeout, t.Device.ProviderStatus)
	if err != nil {
		return models.LocationFix{}, fmt.Errorf("provider status: %w", err)
	}
	if !status.LocationServicesEnabled {
		attempt.Notify(noticeServicesDisabled)
		return models.LocationFix{}, ErrServicesDisabled
	}

	perm, err := boundedWait(ctx, t.PermissionTimeout, t.Device.RequestForegroundPermission)
	if err != nil {
		attempt.Permission = models.Some(models.PermissionOutcome{
			Status:   models.PermissionUndetermined,
			TimedOut: errors.Is(err, ErrTimeout),
		})
		return models.LocationFix{}, fmt.Errorf("permission request: %w", err)
	}
	attempt.Permission = models.Some(models.PermissionOutcome{
		Status:  perm,
		Granted: perm == models.PermissionGranted,
	})
	if perm != models.PermissionGranted {
		return models.LocationFix{}, ErrPermissionDenied
	}

	pos, err := boundedWait(ctx, t.PositionTimeout, func(ctx context.Context) (Position, error) {
		return t.Device.CurrentPosition(ctx, AccuracyHigh)
	})
	if err != nil {
		return models.LocationFix{}, fmt.Errorf("current position: %w", err)
	}
	return models.LocationFix{Latitude: pos.Latitude, Longitude: pos.Longitude, SpanLat: deviceSpan, SpanLon: deviceSpan}, nil
}

// ipAPIResponse is the subset of the ip-api.com JSON body the tier reads.
type ipAPIResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	CountryCode string  `json:"countryCode"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// IPTier geolocates the host's public address.
type IPTier struct {
	Client   *httpclient.Client
	Endpoint string
	Timeout  time.Duration
}

func (t *IPTier) Name() models.Tier { return models.TierIP }

func (t *IPTier) Locate(ctx context.Context, attempt *Attempt) (models.LocationFix, error) {
	attempt.Notify(noticeUsingIP)

	resp, err := boundedWait(ctx, t.Timeout, func(ctx context.Context) (ipAPIResponse, error) {
		var out ipAPIResponse
		err := t.Client.GetJSON(ctx, t.Endpoint, &out)
		return out, err
	})
	if err != nil {
		return models.LocationFix{}, fmt.Errorf("ip lookup: %w", err)
	}
	if resp.Status != "success" {
		return models.LocationFix{}, fmt.Errorf("ip lookup status %q: %s", resp.Status, resp.Message)
	}
	return models.LocationFix{Latitude: resp.Lat, Longitude: resp.Lon, SpanLat: ipSpan, SpanLon: ipSpan}, nil
}

// CountryTier places the map on the device's country.
type CountryTier struct {
	Device  Device
	Timeout time.Duration
}

func (t *CountryTier) Name() models.Tier { return models.TierCountry }

func (t *CountryTier) Locate(ctx context.Context, attempt *Attempt) (models.LocationFix, error) {
	attempt.Notify(noticeUsingCountry)

	code, err := boundedWait(ctx, t.Timeout, t.Device.CountryCode)
	if err != nil {
		return models.LocationFix{}, fmt.Errorf("country code: %w", err)
	}
	fix, ok := CountryCenter(code)
	if !ok {
		return models.LocationFix{}, fmt.Errorf("%w: %q", ErrUnknownCountry, code)
	}
	return fix, nil
}

// validFix rejects coordinates no map can show.
func validFix(f models.LocationFix) error {
	for _, v := range []float64{f.Latitude, f.Longitude, f.SpanLat, f.SpanLon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("non-finite coordinate")
		}
	}
	if f.Latitude < -90 || f.Latitude > 90 || f.Longitude < -180 || f.Longitude > 180 {
		return fmt.Errorf("coordinate out of range (%f, %f)", f.Latitude, f.Longitude)
	}
	if f.SpanLat <= 0 || f.SpanLon <= 0 {
		return errors.New("non-positive span")
	}
	return nil
}
