// Package session owns the process-wide session: authentication state,
// cached profile fields and the last known map position. The Store is the
// only writer of the session and of its persisted record.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"hazard-reporter/internal/common/auth"
	"hazard-reporter/internal/common/config"
	"hazard-reporter/internal/common/logger"
	"hazard-reporter/internal/common/metrics"
	"hazard-reporter/internal/common/validation"
	"hazard-reporter/internal/docstore"
	"hazard-reporter/internal/models"
	"hazard-reporter/internal/storage"
)

const persistTimeout = 5 * time.Second

// Options tunes a Store.
type Options struct {
	StorageKey        string
	TTL               time.Duration
	AuthSettleTimeout time.Duration
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// OptionsFromConfig converts the session config section.
func OptionsFromConfig(cfg config.SessionConfig) Options {
	return Options{
		StorageKey:        cfg.StorageKey,
		TTL:               config.GetDuration(cfg.TTL),
		AuthSettleTimeout: config.GetDuration(cfg.AuthSettleTimeout),
	}
}

// Dependencies are the Store's collaborators.
type Dependencies struct {
	Storage   storage.KV
	Documents docstore.Store
	Auth      auth.Provider
	Validator *validation.Validator
	Logger    logger.Logger
}

// Store holds the session. Every method is safe for concurrent use.
type Store struct {
	opts      Options
	kv        storage.KV
	docs      docstore.Store
	provider  auth.Provider
	validator *validation.Validator
	logger    logger.Logger

	mu      sync.Mutex
	session models.Session
	version uint64
	// until the persisted record and the live auth state are reconciled,
	// mutations are queued for replay and nothing is written to storage
	reconciled   bool
	pending      []models.Patch
	clearedEarly bool
	started      bool
	closed       bool
	expiryTimer  *time.Timer
	subscribers  map[int]chan models.Session
	nextSub      int
	cancelAuth   func()

	// authOps serialises local sign-in/out against provider notifications
	authOps sync.Mutex

	persistMu        sync.Mutex
	persistedVersion uint64
	wg               sync.WaitGroup
}

func NewStore(opts Options, deps Dependencies) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.StorageKey == "" {
		opts.StorageKey = "userAppSession"
	}
	return &Store{
		opts:        opts,
		kv:          deps.Storage,
		docs:        deps.Documents,
		provider:    deps.Auth,
		validator:   deps.Validator,
		logger:      deps.Logger.WithFields(map[string]interface{}{"component": "session"}),
		session:     models.DefaultSession(),
		subscribers: make(map[int]chan models.Session),
	}
}

func (s *Store) now() time.Time {
	return s.opts.Now().UTC().Round(0)
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// IsAuthenticated reports whether the session is authenticated.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.IsAuthenticated()
}

// Update merges patch into the session. Merges apply in call order;
// persistence happens in the background and never reports failure.
func (s *Store) Update(patch models.Patch) {
	s.mu.Lock()
	next := s.normalize(patch.Apply(s.session))
	if !s.reconciled {
		s.pending = append(s.pending, patch)
	}
	v, snap, persist := s.commitLocked(next)
	s.mu.Unlock()

	metrics.SessionMutations.WithLabelValues("update").Inc()
	s.logger.Debug("Session updated", map[string]interface{}{"fields": patch.Fields(), "version": v})
	if persist {
		s.persistAsync(v, snap)
	}
}

// Clear resets the session to defaults and removes the persisted record.
// It is idempotent.
func (s *Store) Clear() {
	s.mu.Lock()
	v, snap, persist := s.clearLocked()
	s.mu.Unlock()

	s.afterClear(v, snap, persist)
}

func (s *Store) clearLocked() (uint64, models.Session, bool) {
	if !s.reconciled {
		s.pending = nil
		s.clearedEarly = true
	}
	return s.commitLocked(models.DefaultSession())
}

func (s *Store) afterClear(version uint64, snap models.Session, persist bool) {
	metrics.SessionMutations.WithLabelValues("clear").Inc()
	s.logger.Info("Session cleared", map[string]interface{}{"version": version})
	if persist {
		s.persistAsync(version, snap)
	}
}

// Subscribe returns a channel that always holds the latest session
// snapshot, starting with the current one, and a cancel func. Slow readers
// skip intermediate states. After Close the channel holds the final
// snapshot and is already closed.
func (s *Store) Subscribe() (<-chan models.Session, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan models.Session, 1)
	ch <- s.session
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

// commitLocked installs next, bumps the version, reschedules the expiry
// timer and notifies subscribers. It reports whether the caller must
// persist the new state with persistAsync.
func (s *Store) commitLocked(next models.Session) (uint64, models.Session, bool) {
	s.session = next
	s.version++
	s.scheduleExpiryLocked()

	if next.IsAuthenticated() {
		metrics.SessionAuthenticated.Set(1)
	} else {
		metrics.SessionAuthenticated.Set(0)
	}

	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
	persist := s.reconciled && !s.closed
	if persist {
		// added under mu so Close cannot start waiting in between
		s.wg.Add(1)
	}
	return s.version, next, persist
}

// normalize enforces the session invariants. An authenticated session
// without a valid start/expiry pair gets a fresh one starting now; an
// unauthenticated session carries no identity, profile fields or timestamps.
func (s *Store) normalize(next models.Session) models.Session {
	if next.IsAuthenticated() {
		start, hasStart := next.SessionStartTime.Get()
		expiry, hasExpiry := next.Expiry.Get()
		if !hasStart || !hasExpiry || !expiry.After(start) {
			start = s.now()
			next.SessionStartTime = models.Some(start)
			next.Expiry = models.Some(start.Add(s.opts.TTL))
			s.logger.Warn("Authenticated session lacked a valid expiry; starting a new one", map[string]interface{}{
				"userId": next.UserID,
			})
		}
		return next
	}

	return next.WithoutAuth()
}

// persistAsync writes snap in the background. Writes are serialised and a
// write older than one already performed is skipped. The WaitGroup slot
// was taken by commitLocked.
func (s *Store) persistAsync(version uint64, snap models.Session) {
	go func() {
		defer s.wg.Done()
		s.persist(version, snap)
	}()
}

func (s *Store) persist(version uint64, snap models.Session) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if version <= s.persistedVersion {
		s.logger.Debug("Skipping stale session write", map[string]interface{}{
			"version":   version,
			"persisted": s.persistedVersion,
		})
		return
	}
	s.persistedVersion = version

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if snap.IsDefault() {
		if err := s.kv.Remove(ctx, s.opts.StorageKey); err != nil {
			metrics.SessionPersistFailures.WithLabelValues("remove").Inc()
			s.logger.Error("Failed to remove persisted session", map[string]interface{}{"error": err.Error()})
		}
		return
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		metrics.SessionPersistFailures.WithLabelValues("encode").Inc()
		s.logger.Error("Failed to encode session", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := s.kv.Set(ctx, s.opts.StorageKey, string(raw)); err != nil {
		metrics.SessionPersistFailures.WithLabelValues("write").Inc()
		s.logger.Error("Failed to persist session", map[string]interface{}{"error": err.Error()})
	}
}

// scheduleExpiryLocked arms a timer that clears an authenticated session
// when its expiry passes.
func (s *Store) scheduleExpiryLocked() {
	if s.expiryTimer != nil {
		s.expiryTimer.Stop()
		s.expiryTimer = nil
	}
	if s.closed || !s.session.IsAuthenticated() {
		return
	}
	expiry, ok := s.session.Expiry.Get()
	if !ok {
		return
	}
	s.expiryTimer = time.AfterFunc(expiry.Sub(s.now()), s.expire)
}

func (s *Store) expire() {
	s.mu.Lock()
	if s.closed || !s.session.IsAuthenticated() {
		s.mu.Unlock()
		return
	}
	if !s.session.IsExpired(s.now()) {
		// wall clock lagged the timer
		s.scheduleExpiryLocked()
		s.mu.Unlock()
		return
	}
	userID := s.session.UserID
	v, snap, persist := s.clearLocked()
	s.mu.Unlock()

	s.logger.Info("Session expired", map[string]interface{}{"userId": userID})
	s.afterClear(v, snap, persist)
}
