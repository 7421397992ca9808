package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"finanzas/internal/storage"
)

const CookieName = "finanzas_session"

var ErrNoSession = errors.New("no valid session")

// SessionStore is the persistence the manager needs.
type SessionStore interface {
	CreateSession(ctx context.Context, s storage.Session) error
	GetSession(ctx context.Context, token string) (storage.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// Manager issues and resolves cookie-backed sessions.
type Manager struct {
	store  SessionStore
	ttl    time.Duration
	secure bool
}

func NewManager(store SessionStore, ttl time.Duration, secure bool) *Manager {
	return &Manager{store: store, ttl: ttl, secure: secure}
}

// Issue creates a session for the user and sets the cookie.
func (m *Manager) Issue(ctx context.Context, w http.ResponseWriter, userID string) error {
	token, err := newToken()
	if err != nil {
		return err
	}

	now := time.Now()
	s := storage.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}
	if err := m.store.CreateSession(ctx, s); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Resolve returns the user ID behind the request's session cookie. Expired
// sessions are deleted on sight.
func (m *Manager) Resolve(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", ErrNoSession
	}

	s, err := m.store.GetSession(r.Context(), cookie.Value)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("resolve session: %w", err)
	}

	if time.Now().After(s.ExpiresAt) {
		_ = m.store.DeleteSession(r.Context(), s.Token)
		return "", ErrNoSession
	}
	return s.UserID, nil
}

// Clear destroys the request's session and expires the cookie.
func (m *Manager) Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(CookieName)
	if err == nil {
		if err := m.store.DeleteSession(ctx, cookie.Value); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
