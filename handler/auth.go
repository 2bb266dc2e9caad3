package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"

	"ewintr.nl/capsum/auth"
	"golang.org/x/exp/slog"
	"golang.org/x/oauth2"
)

type Authenticator interface {
	SignInWithOTP(ctx context.Context, email, redirectTo, codeChallenge string) error
	ExchangeCode(ctx context.Context, code, verifier string) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

type AuthAPI struct {
	provider    Authenticator
	sessions    *Sessions
	redirectURL string
	logger      *slog.Logger
}

func NewAuthAPI(provider Authenticator, sessions *Sessions, redirectURL string, logger *slog.Logger) *AuthAPI {
	return &AuthAPI{
		provider:    provider,
		sessions:    sessions,
		redirectURL: redirectURL,
		logger:      logger,
	}
}

func (a *AuthAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action, _ := ShiftPath(r.URL.Path)

	switch {
	case r.Method == http.MethodGet && action == "sign-in":
		a.SignInPage(w, r)
	case r.Method == http.MethodPost && action == "sign-in":
		a.SignIn(w, r)
	case r.Method == http.MethodGet && action == "confirm":
		a.Confirm(w, r)
	case r.Method == http.MethodPost && action == "sign-out":
		a.SignOut(w, r)
	default:
		Error(w, http.StatusNotFound, "not found", fmt.Errorf("method %s with subpath %q was not registered in the auth api", r.Method, action))
	}
}

func (a *AuthAPI) SignInPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.CurrentUser(w, r); ok {
		http.Redirect(w, r, "/video", http.StatusSeeOther)
		return
	}

	Message(w, http.StatusOK, "sign in with your email address")
}

func (a *AuthAPI) SignIn(w http.ResponseWriter, r *http.Request) {
	email, err := formValue(r, "email")
	if err != nil {
		Error(w, http.StatusBadRequest, "could not read request", err)
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid email address", err)
		return
	}

	verifier := oauth2.GenerateVerifier()
	if err := a.sessions.SetVerifier(w, r, verifier); err != nil {
		a.returnErr(w, http.StatusInternalServerError, "could not save session", err)
		return
	}
	if err := a.provider.SignInWithOTP(r.Context(), addr.Address, a.redirectURL, oauth2.S256ChallengeFromVerifier(verifier)); err != nil {
		a.returnErr(w, http.StatusBadGateway, "could not send magic link", err)
		return
	}

	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (a *AuthAPI) Confirm(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		Error(w, http.StatusBadRequest, "missing code", errors.New("the sign in link has no code"))
		return
	}

	session, err := a.provider.ExchangeCode(r.Context(), code, a.sessions.Verifier(r))
	if err != nil {
		a.logger.Info("could not exchange code", slog.String("error", err.Error()))
		http.Redirect(w, r, signInPath, http.StatusSeeOther)
		return
	}
	if _, err := a.sessions.SignIn(w, r, session); err != nil {
		a.returnErr(w, http.StatusInternalServerError, "could not save session", err)
		return
	}
	a.logger.Info("user signed in", slog.String("user", session.User.ID))

	http.Redirect(w, r, "/video", http.StatusSeeOther)
}

// CurrentUser returns the signed in user. An expired access token is
// refreshed and the new session is written to w.
func (a *AuthAPI) CurrentUser(w http.ResponseWriter, r *http.Request) (SessionUser, bool) {
	if user, ok := a.sessions.User(r); ok {
		return user, true
	}
	refreshToken := a.sessions.RefreshToken(r)
	if refreshToken == "" {
		return SessionUser{}, false
	}

	session, err := a.provider.Refresh(r.Context(), refreshToken)
	if err != nil {
		a.logger.Info("could not refresh session", slog.String("error", err.Error()))
		return SessionUser{}, false
	}
	user, err := a.sessions.SignIn(w, r, session)
	if err != nil {
		a.logger.Error("could not save session", slog.String("user", session.User.ID), slog.String("error", err.Error()))
		return SessionUser{}, false
	}
	a.logger.Debug("session refreshed", slog.String("user", user.ID))

	return user, true
}

func (a *AuthAPI) SignOut(w http.ResponseWriter, r *http.Request) {
	if user, ok := a.sessions.User(r); ok && user.AccessToken != "" {
		if err := a.provider.SignOut(r.Context(), user.AccessToken); err != nil {
			a.logger.Warn("could not sign out at auth provider", slog.String("user", user.ID), slog.String("error", err.Error()))
		}
	}
	if err := a.sessions.Clear(w, r); err != nil {
		a.returnErr(w, http.StatusInternalServerError, "could not clear session", err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (a *AuthAPI) returnErr(w http.ResponseWriter, status int, message string, err error, details ...any) {
	a.logger.Error(message, slog.String("error", err.Error()), slog.String("details", fmt.Sprintf("%+v", details)))
	Error(w, status, message, err, details...)
}
