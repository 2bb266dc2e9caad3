package handler

import (
	"context"
	"net/http"
	"time"

	"ewintr.nl/capsum/auth"
	"github.com/gorilla/sessions"
)

const (
	sessionName   = "capsum"
	sessionMaxAge = 7 * 24 * 60 * 60

	keyUserID       = "user_id"
	keyEmail        = "email"
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyExpiresAt    = "expires_at"
	keyVerifier     = "verifier"
)

type SessionUser struct {
	ID          string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

// Sessions keeps the signed in user in a signed cookie.
type Sessions struct {
	store sessions.Store
	now   func() time.Time
}

func NewSessions(secret string, secure bool) *Sessions {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Sessions{
		store: store,
		now:   time.Now,
	}
}

// User returns the signed in user. A session with an expired access token
// counts as signed out until it is refreshed.
func (s *Sessions) User(r *http.Request) (SessionUser, bool) {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		return SessionUser{}, false
	}
	id, _ := session.Values[keyUserID].(string)
	if id == "" {
		return SessionUser{}, false
	}
	expiresAt, _ := session.Values[keyExpiresAt].(int64)
	if expiresAt > 0 && s.now().Unix() >= expiresAt {
		return SessionUser{}, false
	}
	email, _ := session.Values[keyEmail].(string)
	token, _ := session.Values[keyAccessToken].(string)

	return SessionUser{
		ID:          id,
		Email:       email,
		AccessToken: token,
		ExpiresAt:   time.Unix(expiresAt, 0),
	}, true
}

// SignIn stores the session of the auth provider. It is called again with the
// new session after every refresh.
func (s *Sessions) SignIn(w http.ResponseWriter, r *http.Request, as *auth.Session) (SessionUser, error) {
	session, _ := s.store.Get(r, sessionName)
	delete(session.Values, keyVerifier)
	expiresAt := as.ExpiresAt
	if expiresAt == 0 && as.ExpiresIn > 0 {
		expiresAt = s.now().Add(time.Duration(as.ExpiresIn) * time.Second).Unix()
	}
	session.Values[keyUserID] = as.User.ID
	session.Values[keyEmail] = as.User.Email
	session.Values[keyAccessToken] = as.AccessToken
	session.Values[keyRefreshToken] = as.RefreshToken
	session.Values[keyExpiresAt] = expiresAt

	user := SessionUser{
		ID:          as.User.ID,
		Email:       as.User.Email,
		AccessToken: as.AccessToken,
		ExpiresAt:   time.Unix(expiresAt, 0),
	}

	return user, session.Save(r, w)
}

// RefreshToken returns the refresh token of a signed in user, whether the
// access token is expired or not.
func (s *Sessions) RefreshToken(r *http.Request) string {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		return ""
	}
	if id, _ := session.Values[keyUserID].(string); id == "" {
		return ""
	}
	token, _ := session.Values[keyRefreshToken].(string)

	return token
}

func (s *Sessions) SetVerifier(w http.ResponseWriter, r *http.Request, verifier string) error {
	session, _ := s.store.Get(r, sessionName)
	session.Values[keyVerifier] = verifier

	return session.Save(r, w)
}

func (s *Sessions) Verifier(r *http.Request) string {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		return ""
	}
	verifier, _ := session.Values[keyVerifier].(string)

	return verifier
}

func (s *Sessions) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.store.Get(r, sessionName)
	session.Values = map[any]any{}
	session.Options.MaxAge = -1

	return session.Save(r, w)
}

type userKey struct{}

func withUser(ctx context.Context, user SessionUser) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func userFrom(ctx context.Context) (SessionUser, bool) {
	user, ok := ctx.Value(userKey{}).(SessionUser)
	return user, ok
}
