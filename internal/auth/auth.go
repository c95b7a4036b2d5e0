// Package auth supplies the signed-in user id and authorized HTTP clients.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jws"

	"todosync/internal/service"
)

// Scopes requested at login. openid and email make the token carry an
// id_token whose subject identifies the user.
var Scopes = []string{
	"https://www.googleapis.com/auth/tasks",
	"openid",
	"email",
}

func unauthenticated(msg string) error {
	return &service.Error{Kind: service.KindUnauthenticated, Op: "auth", Message: msg}
}

// Static is an AuthProvider with a fixed user id.
type Static struct {
	UserID string
}

// CurrentUserID implements service.AuthProvider.
func (s Static) CurrentUserID(ctx context.Context) (string, error) {
	if strings.TrimSpace(s.UserID) == "" {
		return "", unauthenticated("user not authenticated")
	}
	return s.UserID, nil
}

// storedToken is the token.json layout. oauth2.Token does not serialize its
// extra fields, so the ones needed later are kept next to it.
type storedToken struct {
	oauth2.Token
	IDToken string `json:"id_token,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// LoadToken reads a token file written by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("invalid token file: %w", err)
	}
	extra := map[string]interface{}{}
	if st.IDToken != "" {
		extra["id_token"] = st.IDToken
	}
	if st.UserID != "" {
		extra["user_id"] = st.UserID
	}
	tok := st.Token
	return tok.WithExtra(extra), nil
}

// SaveToken writes token to path with mode 0600.
func SaveToken(path string, token *oauth2.Token) error {
	st := storedToken{Token: *token}
	if v, ok := token.Extra("id_token").(string); ok {
		st.IDToken = v
	}
	if v, ok := token.Extra("user_id").(string); ok {
		st.UserID = v
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// UserIDFromToken extracts the user id from the id_token subject or the
// user_id extra field.
func UserIDFromToken(token *oauth2.Token) (string, error) {
	if raw, ok := token.Extra("id_token").(string); ok && raw != "" {
		claims, err := jws.Decode(raw)
		if err != nil {
			return "", fmt.Errorf("invalid id_token: %w", err)
		}
		if claims.Sub != "" {
			return claims.Sub, nil
		}
	}
	if id, ok := token.Extra("user_id").(string); ok && id != "" {
		return id, nil
	}
	return "", errors.New("token carries no user id")
}

// LoadOAuthConfig reads OAuth client credentials.
func LoadOAuthConfig(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth client: %w", err)
	}
	conf, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth client: %w", err)
	}
	return conf, nil
}

// TokenProvider reads the user id from a stored token. When no token is
// stored, Fallback (if set) is used instead.
type TokenProvider struct {
	TokenPath string
	Fallback  string
}

// CurrentUserID implements service.AuthProvider.
func (p *TokenProvider) CurrentUserID(ctx context.Context) (string, error) {
	tok, err := LoadToken(p.TokenPath)
	if err != nil {
		if p.Fallback != "" {
			return p.Fallback, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return "", unauthenticated("user not authenticated (run: todosync login)")
		}
		return "", &service.Error{Kind: service.KindUnauthenticated, Op: "auth", Err: err}
	}
	id, err := UserIDFromToken(tok)
	if err != nil {
		if p.Fallback != "" {
			return p.Fallback, nil
		}
		return "", &service.Error{Kind: service.KindUnauthenticated, Op: "auth", Err: err}
	}
	return id, nil
}

// HTTPClient returns a client that attaches the stored bearer token, if any.
// With OAuth client credentials present the token refreshes automatically.
func HTTPClient(ctx context.Context, clientPath, tokenPath string, timeout time.Duration) *http.Client {
	tok, err := LoadToken(tokenPath)
	if err != nil {
		return &http.Client{Timeout: timeout}
	}

	var ts oauth2.TokenSource = oauth2.StaticTokenSource(tok)
	if conf, err := LoadOAuthConfig(clientPath); err == nil {
		ts = conf.TokenSource(ctx, tok)
	}
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = timeout
	return client
}

// Valid reports whether the stored token can produce an access token.
func Valid(ctx context.Context, clientPath, tokenPath string) bool {
	tok, err := LoadToken(tokenPath)
	if err != nil || tok.RefreshToken == "" {
		return false
	}
	conf, err := LoadOAuthConfig(clientPath)
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = conf.TokenSource(ctx, tok).Token()
	return err == nil
}
