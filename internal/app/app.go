// Package app wires configuration into a running session store, location
// resolver, geocoder and hazard service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hazard-reporter/internal/common/auth"
	"hazard-reporter/internal/common/config"
	"hazard-reporter/internal/common/database"
	"hazard-reporter/internal/common/logger"
	"hazard-reporter/internal/common/observability"
	"hazard-reporter/internal/common/validation"
	"hazard-reporter/internal/docstore"
	"hazard-reporter/internal/hazard"
	"hazard-reporter/internal/location"
	"hazard-reporter/internal/session"
	"hazard-reporter/internal/storage"
)

const (
	connectAttempts = 3
	connectDelay    = 500 * time.Millisecond
	redisKeyPrefix  = "hazard-reporter:"
)

// App is the assembled core. Close releases everything New opened.
type App struct {
	Config   *config.Config
	Logger   logger.Logger
	Session  *session.Store
	Resolver *location.Resolver
	Geocoder *location.Geocoder
	Hazards  *hazard.Service

	obs     *observability.Observability
	closers []func()
}

// New connects the configured backends and starts the session store. The
// notifier receives location notices; nil logs them.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, notifier location.Notifier) (*App, error) {
	a := &App{Config: cfg, Logger: log}
	if notifier == nil {
		notifier = location.LogNotifier{Logger: log}
	}

	kv, err := a.openStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	docs, err := a.openDocuments(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	validator, err := validation.NewValidator()
	if err != nil {
		a.Close()
		return nil, err
	}

	provider := a.openAuth(ctx, kv)

	a.Session = session.NewStore(session.OptionsFromConfig(cfg.Session), session.Dependencies{
		Storage:   kv,
		Documents: docs,
		Auth:      provider,
		Validator: validator,
		Logger:    log,
	})
	a.closers = append(a.closers, a.Session.Close)
	if err := a.Session.Start(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("start session store: %w", err)
	}

	a.obs = observability.New(cfg.App.Name, log)
	a.closers = append(a.closers, a.obs.Shutdown)
	a.Resolver = location.NewResolver(cfg.Location, location.NewStaticDevice(cfg.Location.Device), notifier, log, a.obs)
	a.Geocoder = location.NewGeocoder(cfg.Geocoding, log)
	a.Hazards = hazard.NewService(cfg.Hazards, docs, a.openSearch(ctx), validator, log)

	a.serveMetrics()
	return a, nil
}

// Close stops the session store and closes backend connections in reverse
// order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStorage(ctx context.Context) (storage.KV, error) {
	cfg := a.Config
	switch cfg.Storage.Driver {
	case "sqlite":
		kv, err := storage.NewSQLiteKV(ctx, cfg.Storage.SQLitePath, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = kv.Close() })
		return kv, nil
	case "redis":
		rc := database.NewRedis(cfg.Database.Redis)
		a.closers = append(a.closers, func() { _ = rc.Close() })
		if err := retryWithBackoff(func() error { return rc.Ping(ctx) }, a.Logger, "Redis connection"); err != nil {
			return nil, err
		}
		return storage.NewRedisKV(rc.Client, redisKeyPrefix), nil
	default:
		a.Logger.Warn("Using in-memory storage; the session will not survive a restart", nil)
		return storage.NewMemoryKV(), nil
	}
}

func (a *App) openDocuments(ctx context.Context) (docstore.Store, error) {
	cfg := a.Config
	switch cfg.Database.Documents {
	case "mongo":
		var mc *database.MongoClient
		err := retryWithBackoff(func() error {
			var err error
			if mc == nil {
				if mc, err = database.NewMongo(ctx, cfg.Database.Mongo); err != nil {
					return err
				}
			}
			return mc.Ping(ctx)
		}, a.Logger, "MongoDB connection")
		if mc != nil {
			a.closers = append(a.closers, func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = mc.Close(closeCtx)
			})
		}
		if err != nil {
			return nil, err
		}
		return docstore.NewMongo(mc.Database, a.Logger), nil
	case "postgres":
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = pg.Close() })
		if err := retryWithBackoff(func() error { return pg.Ping(ctx) }, a.Logger, "PostgreSQL connection"); err != nil {
			return nil, err
		}
		docs := docstore.NewPostgres(pg.DB, a.Logger)
		if err := docs.Migrate(ctx); err != nil {
			return nil, err
		}
		return docs, nil
	default:
		a.Logger.Warn("Using in-memory document store; profiles and hazards will not survive a restart", nil)
		return docstore.NewMemory(), nil
	}
}

// openAuth returns Keycloak when configured. Its stored tokens are
// restored in the background so the session store's settle timeout bounds
// how long startup waits for it.
func (a *App) openAuth(ctx context.Context, kv storage.KV) auth.Provider {
	if !a.Config.Auth.Enabled() {
		a.Logger.Warn("No identity provider configured; accounts exist for this process only", nil)
		return auth.NewMemoryProvider(a.Logger)
	}

	kc := auth.NewKeycloakProvider(a.Config.Auth, kv, a.Logger)
	var restoring sync.WaitGroup
	restoring.Add(1)
	go func() {
		defer restoring.Done()
		kc.Restore(ctx)
	}()
	// the restore writes tokens to kv, which closes after this
	a.closers = append(a.closers, restoring.Wait)
	return kc
}

// openSearch connects Elasticsearch when configured. A search backend that
// cannot be reached is skipped and hazards are searched in the document
// database instead.
func (a *App) openSearch(ctx context.Context) hazard.Searcher {
	cfg := a.Config
	if !cfg.Database.Elasticsearch.Enabled() {
		return nil
	}

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err == nil {
		err = retryWithBackoff(func() error { return es.Ping(ctx) }, a.Logger, "Elasticsearch connection")
	}
	if err != nil {
		a.Logger.Warn("Elasticsearch unavailable; searching the document database", map[string]interface{}{"error": err.Error()})
		return nil
	}

	searcher := hazard.NewElasticSearcher(es.Client, cfg.Hazards.Index, a.Logger)
	if err := searcher.EnsureIndex(ctx); err != nil {
		a.Logger.Warn("Failed to prepare hazard index", map[string]interface{}{"error": err.Error()})
	}
	return searcher
}

func (a *App) serveMetrics() {
	addr := a.Config.Metrics.ListenAddress
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	var serving sync.WaitGroup
	serving.Add(1)
	go func() {
		defer serving.Done()
		a.Logger.Info("Metrics server listening", map[string]interface{}{"address": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	a.closers = append(a.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		serving.Wait()
	})
}

// retryWithBackoff runs operation until it succeeds, doubling the delay
// between attempts.
func retryWithBackoff(operation func() error, log logger.Logger, operationName string) error {
	var err error
	delay := connectDelay

	for i := 0; i < connectAttempts; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < connectAttempts-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  connectAttempts,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, connectAttempts, err)
}
