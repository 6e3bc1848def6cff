package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"hazard-reporter/internal/common/auth"
	"hazard-reporter/internal/common/errors"
	"hazard-reporter/internal/docstore"
	"hazard-reporter/internal/models"
	"hazard-reporter/internal/storage"
)

const defaultAuthSettleTimeout = 5 * time.Second

// Start loads the persisted session, waits for the identity provider's
// first state notification (bounded by the settle timeout) and reconciles
// the two. It then follows provider notifications until Close.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return stderrors.New("session store already started")
	}
	s.started = true
	s.mu.Unlock()

	persisted := s.load(ctx)

	changes, cancel := s.provider.Subscribe()
	s.mu.Lock()
	s.cancelAuth = cancel
	s.mu.Unlock()

	settle := s.opts.AuthSettleTimeout
	if settle <= 0 {
		settle = defaultAuthSettleTimeout
	}
	timer := time.NewTimer(settle)
	defer timer.Stop()

	var live *auth.StateChange
	select {
	case c, ok := <-changes:
		if ok {
			live = &c
		}
	case <-timer.C:
		s.logger.Warn("Identity provider did not report a state in time; trusting persisted session", map[string]interface{}{
			"settleTimeoutMs": settle.Milliseconds(),
		})
	case <-ctx.Done():
		s.logger.Warn("Start cancelled before the identity provider reported a state", map[string]interface{}{
			"error": ctx.Err().Error(),
		})
	}

	s.authOps.Lock()
	if live != nil {
		c := latest(*live, changes)
		live = &c
	}
	s.reconcile(ctx, persisted, live)
	s.authOps.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go s.watchAuth(changes)
	return nil
}

// Close stops following the identity provider, waits for outstanding
// writes and closes subscriber channels. The session stays readable.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.expiryTimer != nil {
		s.expiryTimer.Stop()
		s.expiryTimer = nil
	}
	cancel := s.cancelAuth
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
	s.mu.Unlock()
}

// load reads the persisted record. Anything unreadable counts as absent.
func (s *Store) load(ctx context.Context) models.Optional[models.Session] {
	raw, err := s.kv.Get(ctx, s.opts.StorageKey)
	if err != nil {
		if !stderrors.Is(err, storage.ErrNotFound) {
			s.logger.Error("Failed to read persisted session", map[string]interface{}{"error": err.Error()})
		}
		return models.None[models.Session]()
	}

	if s.validator != nil {
		if result := s.validator.ValidatePersistedSession([]byte(raw)); !result.Valid {
			s.logger.Warn("Ignoring malformed persisted session", map[string]interface{}{"errors": result.Messages()})
			return models.None[models.Session]()
		}
	}

	var persisted models.Session
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		s.logger.Warn("Ignoring undecodable persisted session", map[string]interface{}{"error": err.Error()})
		return models.None[models.Session]()
	}
	return models.Some(s.normalize(persisted))
}

// reconcile computes the starting session from the persisted record and the
// live provider state, replays mutations made while both were pending and
// persists the result. A nil live means the provider never reported.
func (s *Store) reconcile(ctx context.Context, persisted models.Optional[models.Session], live *auth.StateChange) {
	s.mu.Lock()
	clearedEarly := s.clearedEarly
	s.mu.Unlock()

	now := s.now()
	base := models.DefaultSession()
	rule := "defaults"

	p, hasPersisted := persisted.Get()
	switch {
	case hasPersisted && clearedEarly:
		rule = "cleared-before-load"
	case hasPersisted && p.IsExpired(now):
		rule = "expired"
	case hasPersisted && live == nil:
		base, rule = p, "persisted"
	case hasPersisted && !live.SignedIn():
		base, rule = p.WithoutAuth(), "signed-out"
	case hasPersisted && p.IsAuthenticated() && p.UserID == live.Identity.UserID:
		base, rule = p, "same-user"
		if profile, err := s.profile(ctx, p.UserID); err != nil {
			s.logger.Warn("Keeping cached profile fields", map[string]interface{}{"error": err.Error()})
		} else {
			base.AccountType = profile.AccountType
			base.Active = profile.Active
		}
	case live != nil && live.SignedIn():
		// a different user, or no usable record: start fresh for the live
		// user on top of whatever locations were persisted
		if hasPersisted {
			base = p.WithoutAuth()
		}
		profile, err := s.profile(ctx, live.Identity.UserID)
		if err != nil {
			s.logger.Warn("Profile unavailable for signed-in user", map[string]interface{}{"error": err.Error()})
		}
		base = models.AuthenticatedPatch(live.Identity.UserID, profile, now, s.opts.TTL).Apply(base)
		rule = "live-user"
	}

	s.mu.Lock()
	final := base
	for _, patch := range s.pending {
		final = s.normalize(patch.Apply(final))
	}
	replayed := len(s.pending)
	s.pending = nil
	s.clearedEarly = false
	s.reconciled = true
	v, snap, persist := s.commitLocked(final)
	s.mu.Unlock()

	s.logger.Info("Session reconciled", map[string]interface{}{
		"rule":          rule,
		"authenticated": snap.IsAuthenticated(),
		"replayed":      replayed,
	})
	if persist {
		s.persistAsync(v, snap)
	}
}

// watchAuth applies provider notifications after reconciliation. Queued
// notifications collapse to the most recent one.
func (s *Store) watchAuth(changes <-chan auth.StateChange) {
	defer s.wg.Done()
	for c := range changes {
		s.authOps.Lock()
		s.applyLive(latest(c, changes))
		s.authOps.Unlock()
	}
}

func (s *Store) applyLive(c auth.StateChange) {
	current := s.Snapshot()

	if !c.SignedIn() {
		if current.IsAuthenticated() {
			s.logger.Info("Signed out by identity provider", map[string]interface{}{"userId": current.UserID})
			s.Clear()
		}
		return
	}

	userID := c.Identity.UserID
	if current.IsAuthenticated() && current.UserID == userID {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	profile, err := s.profile(ctx, userID)
	if err != nil {
		s.logger.Warn("Profile unavailable for signed-in user", map[string]interface{}{"error": err.Error()})
	}
	s.logger.Info("Signed in by identity provider", map[string]interface{}{"userId": userID})
	s.Update(models.AuthenticatedPatch(userID, profile, s.now(), s.opts.TTL))
}

// profile reads the user's profile document. A missing document yields an
// empty profile; a failed read yields an empty profile and the error.
func (s *Store) profile(ctx context.Context, userID string) (models.Profile, error) {
	fields, err := s.docs.GetDoc(ctx, models.UserCollection, userID)
	if stderrors.Is(err, docstore.ErrNotFound) {
		s.logger.Warn("User profile document missing", map[string]interface{}{"userId": userID})
		return models.Profile{}, nil
	}
	if err != nil {
		return models.Profile{}, errors.NewDocumentReadFailedError(models.UserCollection, userID, err)
	}
	return models.ProfileFromFields(fields), nil
}

func latest(c auth.StateChange, changes <-chan auth.StateChange) auth.StateChange {
	for {
		select {
		case next, ok := <-changes:
			if !ok {
				return c
			}
			c = next
		default:
			return c
		}
	}
}
