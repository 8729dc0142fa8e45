// Package auth manages the worker's backend session and the Google
// credentials used by the agenda mirror.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/harrisonrobin/fieldtask/pkg/api"
	"github.com/harrisonrobin/fieldtask/pkg/model"
	"github.com/harrisonrobin/fieldtask/pkg/store"
	"go.uber.org/zap"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (api.LoginResult, error)
}

// Invalidator cancels in-flight work tied to the current session.
type Invalidator interface {
	Invalidate()
}

type Stopper interface {
	Stop() error
}

type Session struct {
	auth    Authenticator
	cache   *store.Cache
	syncs   Invalidator
	tracker Stopper
	logger  *zap.Logger
}

// NewSession wires logout to the given sync engine and tracker; either may
// be nil.
func NewSession(auth Authenticator, cache *store.Cache, syncs Invalidator, tracker Stopper, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{auth: auth, cache: cache, syncs: syncs, tracker: tracker, logger: logger.Named("session")}
}

// Login authenticates and persists the user and token.
func (s *Session) Login(ctx context.Context, email, password string) (model.User, error) {
	if email == "" || password == "" {
		return model.User{}, &api.AuthError{Message: "email and password are required"}
	}
	res, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return model.User{}, err
	}
	if res.User.ID == "" {
		return model.User{}, &api.AuthError{Message: "login response did not include a user"}
	}
	if err := s.cache.SetUser(ctx, res.User); err != nil {
		return model.User{}, err
	}
	if err := s.cache.SetToken(ctx, res.Token); err != nil {
		return model.User{}, err
	}
	s.logger.Info("logged in", zap.String("user_id", res.User.ID))
	return res.User, nil
}

// Logout stops session work first, then clears the session and snapshot.
func (s *Session) Logout(ctx context.Context) error {
	if s.syncs != nil {
		s.syncs.Invalidate()
	}
	var errs []error
	if s.tracker != nil {
		if err := s.tracker.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop tracking: %w", err))
		}
	}
	if err := s.cache.ClearSession(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.cache.ClearSnapshot(ctx); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info("logged out")
	return errors.Join(errs...)
}

// CurrentUser returns the stored user or an *api.AuthError.
func (s *Session) CurrentUser(ctx context.Context) (model.User, error) {
	user, ok, err := s.cache.User(ctx)
	if err != nil {
		return model.User{}, err
	}
	if !ok {
		return model.User{}, &api.AuthError{Message: "not logged in"}
	}
	return user, nil
}
