package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/s-rangarajan/festicart/internal/api"
	"github.com/s-rangarajan/festicart/internal/cart"
	pkgerrors "github.com/s-rangarajan/festicart/internal/errors"
	"github.com/s-rangarajan/festicart/internal/logger"
	"github.com/s-rangarajan/festicart/internal/redis"
)

const DefaultTokenKey = "auth_token"

// Backend is the slice of the ticketing API the session drives.
type Backend interface {
	Login(context.Context, api.LoginRequest) (api.AuthResult, error)
	Register(context.Context, api.RegisterRequest) (api.AuthResult, error)
	Logout(context.Context) error
	Me(context.Context) (api.ClientProfile, error)
	UpdateProfile(context.Context, api.ProfileUpdate) error
	ChangePassword(context.Context, api.PasswordChange) error
	DeleteAccount(context.Context) error
}

// Session keeps the bearer token and the last known profile in redis. The
// token lives under its own key so the profile cache can be dropped without
// logging the user out.
type Session struct {
	backend    Backend
	store      redis.Cmdable
	tokenKey   string
	profileKey string
	log        *logger.Logger
}

func NewSession(backend Backend, store redis.Cmdable, tokenKey string, log *logger.Logger) *Session {
	if tokenKey == "" {
		tokenKey = DefaultTokenKey
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Session{
		backend:    backend,
		store:      store,
		tokenKey:   tokenKey,
		profileKey: tokenKey + ":profile",
		log:        log,
	}
}

// Token satisfies api.TokenSource. No stored token is not an error.
func (s *Session) Token(ctx context.Context) (string, error) {
	token, err := s.store.Get(ctx, s.tokenKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading auth token: %w", err)
	}
	return token, nil
}

func (s *Session) LoggedIn(ctx context.Context) (bool, error) {
	token, err := s.Token(ctx)
	return token != "", err
}

// Profile returns the cached profile. ok is false when nobody is logged in.
func (s *Session) Profile(ctx context.Context) (api.ClientProfile, bool, error) {
	raw, err := s.store.Get(ctx, s.profileKey).Bytes()
	if err == redis.Nil {
		return api.ClientProfile{}, false, nil
	}
	if err != nil {
		return api.ClientProfile{}, false, fmt.Errorf("error reading cached profile: %w", err)
	}

	var profile api.ClientProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return api.ClientProfile{}, false, fmt.Errorf("error unmarshaling cached profile: %w", err)
	}
	return profile, true, nil
}

// UserID is the id of the logged in client, or an unauthorized error.
func (s *Session) UserID(ctx context.Context) (cart.ID, error) {
	loggedIn, err := s.LoggedIn(ctx)
	if err != nil {
		return "", err
	}
	profile, ok, err := s.Profile(ctx)
	if err != nil {
		return "", err
	}
	if !loggedIn || !ok || profile.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "you need to be logged in")
	}
	return profile.ID, nil
}

func (s *Session) Login(ctx context.Context, req api.LoginRequest) (api.ClientProfile, error) {
	result, err := s.backend.Login(ctx, req)
	if err != nil {
		return api.ClientProfile{}, wrapBackend(err, "login failed")
	}
	return result.Client, s.persist(ctx, result)
}

func (s *Session) Register(ctx context.Context, req api.RegisterRequest) (api.ClientProfile, error) {
	result, err := s.backend.Register(ctx, req)
	if err != nil {
		return api.ClientProfile{}, wrapBackend(err, "registration failed")
	}
	return result.Client, s.persist(ctx, result)
}

// Logout always forgets the local session. A failed remote logout is only
// logged since the token is gone either way.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.backend.Logout(ctx); err != nil {
		s.log.Warn(s.log.WithField(ctx, "error", err.Error()), "remote logout failed")
	}
	return s.forget(ctx)
}

// Me refreshes the cached profile from the backend.
func (s *Session) Me(ctx context.Context) (api.ClientProfile, error) {
	profile, err := s.backend.Me(ctx)
	if err != nil {
		if api.IsStatus(err, http.StatusUnauthorized) {
			if forgetErr := s.forget(ctx); forgetErr != nil {
				s.log.Error(ctx, "error forgetting expired session", forgetErr)
			}
			return api.ClientProfile{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "session expired")
		}
		return api.ClientProfile{}, wrapBackend(err, "could not load your profile")
	}
	if err := s.saveProfile(ctx, profile); err != nil {
		return api.ClientProfile{}, err
	}
	return profile, nil
}

func (s *Session) UpdateProfile(ctx context.Context, req api.ProfileUpdate) (api.ClientProfile, error) {
	if err := s.backend.UpdateProfile(ctx, req); err != nil {
		return api.ClientProfile{}, wrapBackend(err, "could not update your profile")
	}

	profile, _, err := s.Profile(ctx)
	if err != nil {
		return api.ClientProfile{}, err
	}
	profile.LastName = req.LastName
	profile.FirstName = req.FirstName
	profile.Email = req.Email
	profile.Phone = digits(req.Phone)
	if err := s.saveProfile(ctx, profile); err != nil {
		return api.ClientProfile{}, err
	}
	return profile, nil
}

func (s *Session) ChangePassword(ctx context.Context, req api.PasswordChange) error {
	if err := s.backend.ChangePassword(ctx, req); err != nil {
		return wrapBackend(err, "could not change your password")
	}
	return nil
}

// DeleteAccount removes the account remotely, then the local session.
func (s *Session) DeleteAccount(ctx context.Context) error {
	if err := s.backend.DeleteAccount(ctx); err != nil {
		return wrapBackend(err, "could not delete your account")
	}
	return s.forget(ctx)
}

func (s *Session) persist(ctx context.Context, result api.AuthResult) error {
	if err := s.store.Set(ctx, s.tokenKey, result.Token, 0).Err(); err != nil {
		return fmt.Errorf("error saving auth token: %w", err)
	}
	if err := s.saveProfile(ctx, result.Client); err != nil {
		return err
	}
	s.log.Info(s.log.WithUserID(ctx, result.Client.ID.String()), "session opened")
	return nil
}

func (s *Session) saveProfile(ctx context.Context, profile api.ClientProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("error marshaling profile: %w", err)
	}
	if err := s.store.Set(ctx, s.profileKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("error saving profile: %w", err)
	}
	return nil
}

func (s *Session) forget(ctx context.Context) error {
	if err := s.store.Del(ctx, s.tokenKey, s.profileKey).Err(); err != nil {
		return fmt.Errorf("error clearing session: %w", err)
	}
	return nil
}

// wrapBackend keeps local validation errors as they are and tags everything
// else with the server message when there is one.
func wrapBackend(err error, fallback string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	message := api.Message(err)
	if message == "" {
		message = fallback
	}
	code := pkgerrors.CodeDependency
	switch {
	case api.IsStatus(err, http.StatusUnauthorized):
		code = pkgerrors.CodeUnauthorized
	case api.IsStatus(err, http.StatusUnprocessableEntity), api.IsStatus(err, http.StatusBadRequest):
		code = pkgerrors.CodeValidation
	}
	return pkgerrors.Wrap(code, err, message)
}

func digits(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			out = append(out, r)
		}
	}
	return string(out)
}
