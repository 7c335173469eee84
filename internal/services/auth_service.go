package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"financefam/internal/cache"
	"financefam/internal/core"
	"financefam/internal/storage"
)

const (
	MsgUserNotFound       = "User not found."
	MsgInvalidCredentials = "Invalid username or password."
)

// AuthService issues session tokens. A session is a snapshot of the user or
// admin at login time and is not refreshed if the record later changes.
type AuthService struct {
	users    storage.UserStore
	admins   storage.AdminStore
	sessions cache.Cache[core.Session]
	newToken func() (string, error)
}

func NewAuthService(users storage.UserStore, admins storage.AdminStore, sessions cache.Cache[core.Session]) *AuthService {
	return &AuthService{
		users:    users,
		admins:   admins,
		sessions: sessions,
		newToken: randomToken,
	}
}

func (s *AuthService) LoginUser(ctx context.Context, userID string) (string, core.Session, error) {
	u, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return "", core.Session{}, core.NewDomainError(core.ErrNotFound, MsgUserNotFound)
	}
	if err != nil {
		return "", core.Session{}, fmt.Errorf("get user: %w", err)
	}
	sess := core.Session{User: &u}
	token, err := s.start(sess)
	if err != nil {
		return "", core.Session{}, err
	}
	slog.InfoContext(ctx, "User logged in", "component", "auth", "user_id", u.ID)
	return token, sess, nil
}

func (s *AuthService) LoginAdmin(ctx context.Context, username, password string) (string, core.Session, error) {
	admins, err := s.admins.ListAdmins(ctx)
	if err != nil {
		return "", core.Session{}, fmt.Errorf("list admins: %w", err)
	}
	for _, a := range admins {
		if a.Username != username {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(a.Password), []byte(password)) != 1 {
			break
		}
		sess := core.Session{Admin: &a}
		token, err := s.start(sess)
		if err != nil {
			return "", core.Session{}, err
		}
		slog.InfoContext(ctx, "Admin logged in", "component", "auth", "username", a.Username)
		return token, sess, nil
	}
	slog.WarnContext(ctx, "Admin login rejected", "component", "auth", "username", username)
	return "", core.Session{}, core.NewDomainError(core.ErrInvalidCredentials, MsgInvalidCredentials)
}

// Logout reports whether the token belonged to a live session.
func (s *AuthService) Logout(token string) bool {
	return s.sessions.Delete(token)
}

func (s *AuthService) Session(token string) (core.Session, bool) {
	if token == "" {
		return core.Session{}, false
	}
	return s.sessions.Get(token)
}

func (s *AuthService) start(sess core.Session) (string, error) {
	token, err := s.newToken()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	s.sessions.Set(token, sess)
	return token, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
