package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/good-yellow-bee/sitecraft/internal/models"
	"github.com/good-yellow-bee/sitecraft/internal/session"
)

type tokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

// Signup creates an account. It does not sign in.
func (c *Client) Signup(ctx context.Context, name, email, password string) (*models.User, error) {
	var user models.User
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/signup",
		body:   map[string]string{"name": name, "email": email, "password": password},
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Signin exchanges credentials for a token pair and stores the new session.
func (c *Client) Signin(ctx context.Context, email, password string) (*session.Session, error) {
	var tokens tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/signin",
		body:   map[string]string{"email": email, "password": password},
	}, &tokens)
	if err != nil {
		return nil, err
	}
	return c.storeTokens(tokens)
}

// Refresh rotates the stored refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context) (*session.Session, error) {
	sess, err := c.Session(ctx)
	if err != nil {
		return nil, err
	}
	if sess.RefreshToken == "" {
		return nil, ErrUnauthorized
	}

	var tokens tokenResponse
	err = c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/refresh",
		body:   map[string]string{"refreshToken": sess.RefreshToken},
	}, &tokens)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			c.clearSession()
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return c.storeTokens(tokens)
}

// Logout revokes the refresh token and clears the stored session. The local
// session is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	sess, err := c.Session(ctx)
	if err != nil {
		return err
	}
	defer c.clearSession()

	if sess.RefreshToken == "" {
		return nil
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/logout",
		body:   map[string]string{"refreshToken": sess.RefreshToken},
	}, nil)
}

func (c *Client) storeTokens(tokens tokenResponse) (*session.Session, error) {
	sess, err := session.New(c.baseURL, tokens.Token, tokens.RefreshToken)
	if err != nil {
		return nil, err
	}
	if c.store != nil {
		if err := c.store.Save(sess); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
	}
	return sess, nil
}

// Me returns the signed-in user's profile.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/users/me", auth: true}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignedIn is one client holding a live refresh token for the user. ID stays
// the same across refreshes.
type SignedIn struct {
	ID          string    `json:"id"`
	Client      string    `json:"client"`
	RefreshedAt time.Time `json:"refreshedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Sessions lists the signed-in clients of the current user, newest first.
func (c *Client) Sessions(ctx context.Context) ([]SignedIn, error) {
	var out []SignedIn
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/users/me/sessions", auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RevokeSession signs the client with the given session id out.
func (c *Client) RevokeSession(ctx context.Context, id string) error {
	path := "/api/users/me/sessions/" + url.PathEscape(id)
	return c.do(ctx, request{method: http.MethodDelete, path: path, auth: true}, nil)
}
