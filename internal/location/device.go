package location

import (
	"context"
	"errors"
	"strings"

	"hazard-reporter/internal/common/config"
	"hazard-reporter/internal/models"
)

// Accuracy is the precision requested from the position provider.
type Accuracy int

const (
	AccuracyBalanced Accuracy = iota
	AccuracyHigh
)

// ProviderStatus describes the device's location services.
type ProviderStatus struct {
	LocationServicesEnabled bool
}

// Position is a raw device coordinate.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Device is the host's geolocation capability.
type Device interface {
	ProviderStatus(ctx context.Context) (ProviderStatus, error)
	RequestForegroundPermission(ctx context.Context) (models.PermissionStatus, error)
	CurrentPosition(ctx context.Context, accuracy Accuracy) (Position, error)
	CountryCode(ctx context.Context) (string, error)
}

var (
	ErrNoPosition = errors.New("device has no position fix")
	ErrNoCountry  = errors.New("device country code unknown")
)

// StaticDevice answers from configuration. It stands in for real
// geolocation hardware on servers and in the CLI.
type StaticDevice struct {
	cfg config.DeviceConfig
}

func NewStaticDevice(cfg config.DeviceConfig) *StaticDevice {
	return &StaticDevice{cfg: cfg}
}

func (d *StaticDevice) ProviderStatus(context.Context) (ProviderStatus, error) {
	return ProviderStatus{LocationServicesEnabled: d.cfg.ServicesEnabled}, nil
}

func (d *StaticDevice) RequestForegroundPermission(context.Context) (models.PermissionStatus, error) {
	if d.cfg.PermissionGranted {
		return models.PermissionGranted, nil
	}
	return models.PermissionDenied, nil
}

func (d *StaticDevice) CurrentPosition(context.Context, Accuracy) (Position, error) {
	if !d.cfg.HasPosition {
		return Position{}, ErrNoPosition
	}
	return Position{Latitude: d.cfg.Latitude, Longitude: d.cfg.Longitude}, nil
}

func (d *StaticDevice) CountryCode(context.Context) (string, error) {
	code := strings.TrimSpace(d.cfg.CountryCode)
	if code == "" {
		return "", ErrNoCountry
	}
	return code, nil
}
