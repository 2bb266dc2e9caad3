package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

var ErrUnauthorized = errors.New("unauthorized")

type GoTrueInfo struct {
	URL     string
	AnonKey string
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

func (s *Session) complete() bool {
	return s.AccessToken != "" && s.User.ID != ""
}

// APIError is returned when GoTrue answers with a non 2xx status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth provider returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// GoTrue talks to the auth service of a Supabase project. Sign in happens
// through a magic link that carries a PKCE code.
//
// Refresh and logout go through gotrue-go. The magic link request and the code
// exchange are sent directly: gotrue-go's OTPRequest has no code_challenge or
// redirect_to, and its pkce TokenRequest sends "code" where GoTrue reads
// "auth_code".
type GoTrue struct {
	sdk     gotrue.Client
	client  *http.Client
	baseURL string
	anonKey string
}

func NewGoTrue(client *http.Client, info GoTrueInfo) *GoTrue {
	baseURL := strings.TrimRight(info.URL, "/") + "/auth/v1"
	return &GoTrue{
		sdk:     gotrue.New("", info.AnonKey).WithCustomGoTrueURL(baseURL).WithClient(*client),
		client:  client,
		baseURL: baseURL,
		anonKey: info.AnonKey,
	}
}

// SignInWithOTP mails a magic link to email. The link leads to redirectTo
// with a code that can be exchanged with the verifier behind codeChallenge.
func (g *GoTrue) SignInWithOTP(ctx context.Context, email, redirectTo, codeChallenge string) error {
	body := map[string]any{
		"email":                 email,
		"create_user":           true,
		"code_challenge":        codeChallenge,
		"code_challenge_method": "s256",
	}
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}

	return g.do(ctx, "/otp", query, body, nil)
}

func (g *GoTrue) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	body := map[string]string{
		"auth_code":     code,
		"code_verifier": verifier,
	}
	query := url.Values{"grant_type": []string{"pkce"}}

	var session Session
	if err := g.do(ctx, "/token", query, body, &session); err != nil {
		return nil, err
	}
	if !session.complete() {
		return nil, errors.New("auth provider returned an incomplete session")
	}

	return &session, nil
}

// Refresh trades a refresh token for a new session. GoTrue rotates refresh
// tokens, so the returned one replaces the old.
func (g *GoTrue) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := g.sdk.RefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("could not refresh session: %w", err)
	}
	session := fromTokenResponse(resp)
	if !session.complete() {
		return nil, errors.New("auth provider returned an incomplete session")
	}

	return session, nil
}

func (g *GoTrue) SignOut(ctx context.Context, accessToken string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := g.sdk.WithToken(accessToken).Logout(); err != nil {
		return fmt.Errorf("could not sign out: %w", err)
	}

	return nil
}

func fromTokenResponse(resp *types.TokenResponse) *Session {
	session := &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
		ExpiresAt:    resp.ExpiresAt,
		User:         User{Email: resp.User.Email},
	}
	if resp.User.ID != uuid.Nil {
		session.User.ID = resp.User.ID.String()
	}

	return session
}

func (g *GoTrue) do(ctx context.Context, path string, query url.Values, in, out any) error {
	u := g.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("apikey", g.anonKey)
	req.Header.Set("Authorization", "Bearer "+g.anonKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach auth provider: %w", err)
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, out)
}

func errorMessage(data []byte) string {
	var msg struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(data, &msg); err == nil {
		for _, m := range []string{msg.Msg, msg.Message, msg.ErrorDescription} {
			if m != "" {
				return m
			}
		}
	}

	return strings.TrimSpace(string(data))
}
