package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type RegisteredUser struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

// Login exchanges credentials for an access token. The backend's OAuth2 form
// names the email field "username".
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var out LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", strings.NewReader(form.Encode()),
		"application/x-www-form-urlencoded", &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, email, password string) (*RegisteredUser, error) {
	var out RegisteredUser
	in := map[string]string{"email": email, "password": password}
	if err := c.sendJSON(ctx, http.MethodPost, "/auth/register", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
