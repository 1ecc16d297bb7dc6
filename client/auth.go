package client

import (
	"context"
	"net/http"
)

// Login exchanges credentials for a token pair. The backend may send the
// payload at the top level or under data.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	in := LoginRequest{Username: username, Password: password}
	if err := c.check(in); err != nil {
		return nil, err
	}
	var env authEnvelope
	err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/login",
		body:      in,
		noRefresh: true,
	}, &env)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: env.token(), RefreshToken: env.refreshToken(), User: env.user()}, nil
}

// Logout invalidates the refresh token server-side.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	var env authEnvelope
	return c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/logout",
		body:      refreshRequest{RefreshToken: refreshToken},
		noRefresh: true,
	}, &env)
}

// Refresh trades a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	var env authEnvelope
	err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/refresh",
		body:      refreshRequest{RefreshToken: refreshToken},
		noRefresh: true,
	}, &env)
	if err != nil {
		return nil, err
	}
	return &RefreshResult{Token: env.token(), RefreshToken: env.refreshToken()}, nil
}

// Verify checks the current access token and returns the user it belongs to.
// The user is nil when the backend confirms the token without echoing it.
func (c *Client) Verify(ctx context.Context) (*User, error) {
	var env authEnvelope
	err := c.do(ctx, request{
		method:    http.MethodGet,
		path:      "/auth/verify",
		noRefresh: true,
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.user(), nil
}
