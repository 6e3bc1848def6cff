package session

import (
	"context"

	"hazard-reporter/internal/common/errors"
	"hazard-reporter/internal/common/metrics"
	"hazard-reporter/internal/models"
)

// Login signs in with the identity provider, reads the user's profile and
// folds the result into the session. Inactive accounts are signed straight
// back out and rejected.
func (s *Store) Login(ctx context.Context, email, password string) (models.Session, error) {
	s.authOps.Lock()
	defer s.authOps.Unlock()

	identity, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		metrics.AuthOperations.WithLabelValues("login", "failed").Inc()
		s.logger.Warn("Login failed", map[string]interface{}{"error": err.Error()})
		return models.Session{}, standardize(err, func(cause error) *errors.StandardError {
			return errors.NewAuthFailedError("", cause)
		})
	}

	profile, err := s.profile(ctx, identity.UserID)
	if err != nil {
		s.logger.Warn("Continuing login without profile fields", map[string]interface{}{
			"userId": identity.UserID,
			"error":  err.Error(),
		})
	}

	if active, ok := profile.Active.Get(); ok && active == models.StatusInactive {
		if signOutErr := s.provider.SignOut(ctx); signOutErr != nil {
			s.logger.Error("Failed to sign out inactive account", map[string]interface{}{
				"userId": identity.UserID,
				"error":  signOutErr.Error(),
			})
		}
		metrics.AuthOperations.WithLabelValues("login", "inactive").Inc()
		s.logger.Warn("Rejected login for inactive account", map[string]interface{}{"userId": identity.UserID})
		return models.Session{}, errors.NewAccountInactiveError(identity.UserID)
	}

	s.Update(models.AuthenticatedPatch(identity.UserID, profile, s.now(), s.opts.TTL))
	metrics.AuthOperations.WithLabelValues("login", "success").Inc()
	s.logger.Info("User logged in", map[string]interface{}{"userId": identity.UserID})
	return s.Snapshot(), nil
}

// SignUp creates an account, writes its default profile and signs the new
// user in. A failed profile write is logged; the user is still signed in.
func (s *Store) SignUp(ctx context.Context, email, password string) (models.Session, error) {
	s.authOps.Lock()
	defer s.authOps.Unlock()

	identity, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		metrics.AuthOperations.WithLabelValues("signup", "failed").Inc()
		s.logger.Warn("Sign-up failed", map[string]interface{}{"error": err.Error()})
		return models.Session{}, standardize(err, func(cause error) *errors.StandardError {
			return errors.NewSignUpFailedError("", cause)
		})
	}

	profile := models.DefaultProfile()
	if err := s.docs.SetDoc(ctx, models.UserCollection, identity.UserID, profile.Fields()); err != nil {
		s.logger.Error("Failed to write profile for new account", map[string]interface{}{
			"userId": identity.UserID,
			"error":  err.Error(),
		})
	}

	s.Update(models.AuthenticatedPatch(identity.UserID, profile, s.now(), s.opts.TTL))
	metrics.AuthOperations.WithLabelValues("signup", "success").Inc()
	s.logger.Info("User signed up", map[string]interface{}{"userId": identity.UserID})
	return s.Snapshot(), nil
}

// Logout ends the provider session and clears the local one. The local
// session is cleared even when the provider call fails.
func (s *Store) Logout(ctx context.Context) error {
	s.authOps.Lock()
	defer s.authOps.Unlock()

	userID := s.Snapshot().UserID
	signOutErr := s.provider.SignOut(ctx)
	s.Clear()

	if signOutErr != nil {
		metrics.AuthOperations.WithLabelValues("logout", "failed").Inc()
		s.logger.Error("Provider sign-out failed; local session cleared", map[string]interface{}{
			"userId": userID,
			"error":  signOutErr.Error(),
		})
		if stdErr, ok := errors.AsStandardError(signOutErr); ok && stdErr.Code == errors.ErrCodeSignOutFailed {
			return stdErr
		}
		return errors.NewSignOutFailedError(signOutErr)
	}

	metrics.AuthOperations.WithLabelValues("logout", "success").Inc()
	s.logger.Info("User logged out", map[string]interface{}{"userId": userID})
	return nil
}

// standardize passes StandardErrors through and wraps anything else.
func standardize(err error, wrap func(error) *errors.StandardError) error {
	if stdErr, ok := errors.AsStandardError(err); ok {
		return stdErr
	}
	return wrap(err)
}
