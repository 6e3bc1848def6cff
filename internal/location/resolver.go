// Package location resolves a best-effort map position for the host by
// walking a fixed chain of increasingly coarse strategies.
package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hazard-reporter/internal/common/config"
	httpclient "hazard-reporter/internal/common/http"
	"hazard-reporter/internal/common/logger"
	"hazard-reporter/internal/common/metrics"
	"hazard-reporter/internal/common/observability"
	"hazard-reporter/internal/models"
)

// Resolver runs the tiers in order and returns the first fix. It never
// fails: when every tier does, the configured default is returned.
type Resolver struct {
	tiers    []Tier
	fallback models.LocationFix
	notifier Notifier
	logger   logger.Logger
	obs      *observability.Observability
}

// DefaultFix is the static backstop viewport from configuration.
func DefaultFix(cfg config.ViewportConfig) models.LocationFix {
	return models.LocationFix{
		Latitude:  cfg.Latitude,
		Longitude: cfg.Longitude,
		SpanLat:   cfg.LatitudeDelta,
		SpanLon:   cfg.LongitudeDelta,
	}
}

// NewResolver builds the device, ip and country tiers from configuration.
func NewResolver(cfg config.LocationConfig, device Device, notifier Notifier, log logger.Logger, obs *observability.Observability) *Resolver {
	tiers := []Tier{
		&DeviceTier{
			Device:            device,
			PermissionTimeout: config.GetDuration(cfg.PermissionTimeout),
			PositionTimeout:   config.GetDuration(cfg.PositionTimeout),
		},
		&IPTier{
			// the bounded wait owns the deadline; the client timeout only
			// stops a leaked request from living forever
			Client:   httpclient.NewClient(30 * time.Second),
			Endpoint: cfg.IPEndpoint,
			Timeout:  config.GetDuration(cfg.IPTimeout),
		},
		&CountryTier{
			Device:  device,
			Timeout: config.GetDuration(cfg.CountryTimeout),
		},
	}
	return NewResolverWithTiers(tiers, DefaultFix(cfg.Default), notifier, log, obs)
}

// NewResolverWithTiers wires an explicit chain, ahead of the default.
func NewResolverWithTiers(tiers []Tier, fallback models.LocationFix, notifier Notifier, log logger.Logger, obs *observability.Observability) *Resolver {
	if obs == nil {
		obs = observability.NewNoOp()
	}
	return &Resolver{
		tiers:    tiers,
		fallback: fallback,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "location"}),
		obs:      obs,
	}
}

// Resolve returns exactly one fix. Tiers run strictly one after another.
func (r *Resolver) Resolve(ctx context.Context) models.Resolution {
	start := time.Now()
	attempt := &Attempt{notifier: r.notifier}

	for _, tier := range r.tiers {
		tierStart := time.Now()
		fix, err := r.locate(ctx, tier, attempt)
		outcome := tierOutcome(err)
		elapsed := time.Since(tierStart)

		metrics.LocationTierAttempts.WithLabelValues(string(tier.Name()), outcome).Inc()
		r.obs.RecordTierAttempt(ctx, string(tier.Name()), outcome, elapsed)

		if err != nil {
			r.logger.Warn("Location tier failed", map[string]interface{}{
				"tier":       tier.Name(),
				"outcome":    outcome,
				"error":      err.Error(),
				"durationMs": elapsed.Milliseconds(),
			})
			continue
		}

		r.logger.Info("Location resolved", map[string]interface{}{
			"tier":      tier.Name(),
			"latitude":  fix.Latitude,
			"longitude": fix.Longitude,
		})
		return r.finish(ctx, start, models.Resolution{Fix: fix, Tier: tier.Name(), Permission: attempt.Permission})
	}

	r.logger.Info("Using default location", map[string]interface{}{
		"latitude":  r.fallback.Latitude,
		"longitude": r.fallback.Longitude,
	})
	metrics.LocationTierAttempts.WithLabelValues(string(models.TierDefault), "success").Inc()
	return r.finish(ctx, start, models.Resolution{Fix: r.fallback, Tier: models.TierDefault, Permission: attempt.Permission})
}

func (r *Resolver) finish(ctx context.Context, start time.Time, res models.Resolution) models.Resolution {
	metrics.LocationResolutions.WithLabelValues(string(res.Tier)).Inc()
	r.obs.RecordResolution(ctx, string(res.Tier), time.Since(start))
	return res
}

// locate runs one tier, turning panics and unusable fixes into errors.
func (r *Resolver) locate(ctx context.Context, tier Tier, attempt *Attempt) (fix models.LocationFix, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	fix, err = tier.Locate(ctx, attempt)
	if err != nil {
		return models.LocationFix{}, err
	}
	if err := validFix(fix); err != nil {
		return models.LocationFix{}, err
	}
	return fix, nil
}

func tierOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrServicesDisabled):
		return "skipped"
	case errors.Is(err, ErrPermissionDenied):
		return "denied"
	default:
		return "error"
	}
}
