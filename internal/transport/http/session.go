package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"quizhost/internal/app"
	"quizhost/internal/domain"
)

// SessionManager ties a signed cookie holding the session id to server-side state.
type SessionManager struct {
	repo   app.SessionRepository
	codec  *securecookie.SecureCookie
	name   string
	maxAge time.Duration
}

func NewSessionManager(repo app.SessionRepository, secret, cookieName string, maxAge time.Duration) *SessionManager {
	if cookieName == "" {
		cookieName = "quizhost_session"
	}
	codec := securecookie.New([]byte(secret), nil)
	codec.MaxAge(int(maxAge.Seconds()))
	return &SessionManager{repo: repo, codec: codec, name: cookieName, maxAge: maxAge}
}

// requestSession is the session state threaded through a single request.
type requestSession struct {
	id    string
	isNew bool
	domain.Session
}

// Load returns the caller's session, or a fresh unsaved one when the cookie
// is missing, forged or points at expired state.
func (m *SessionManager) Load(r *http.Request) (*requestSession, error) {
	if c, err := r.Cookie(m.name); err == nil {
		var id string
		if err := m.codec.Decode(m.name, c.Value, &id); err == nil {
			sess, ok, err := m.repo.Get(r.Context(), id)
			if err != nil {
				return nil, err
			}
			if ok {
				return &requestSession{id: id, Session: sess}, nil
			}
		}
	}
	return &requestSession{id: uuid.NewString(), isNew: true}, nil
}

// Save persists the session and (re)issues the cookie.
func (m *SessionManager) Save(ctx context.Context, w http.ResponseWriter, s *requestSession) error {
	if err := m.repo.Save(ctx, s.id, s.Session); err != nil {
		return err
	}
	encoded, err := m.codec.Encode(m.name, s.id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.isNew = false
	return nil
}

// Destroy drops the stored state and expires the cookie.
func (m *SessionManager) Destroy(ctx context.Context, w http.ResponseWriter, s *requestSession) error {
	if err := m.repo.Delete(ctx, s.id); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.Session = domain.Session{}
	s.isNew = true
	return nil
}
