package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"homebudget/internal/core"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token. The token endpoint is
// a password-grant-style endpoint and takes form-encoded input, unlike
// every other call on this client. That distinction is part of the
// backend's authentication contract and must not be normalized away.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Token endpoint unreachable", "error", err)
		return "", ErrNetwork
	}
	defer resp.Body.Close()

	var token tokenResponse
	if err := decodeResponse(resp, &token); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// Register creates a new user account. No token is involved.
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPost, "/register/", "", registerRequest{Username: username, Password: password}, nil)
}

// Me resolves the profile belonging to the bearer token.
func (c *Client) Me(ctx context.Context, token string) (core.User, error) {
	var user core.User
	if err := c.do(ctx, http.MethodGet, "/users/me/", token, nil, &user); err != nil {
		return core.User{}, err
	}
	return user, nil
}
