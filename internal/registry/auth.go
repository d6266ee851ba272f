package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mamatnurahmat/devops-tools/internal/credentials"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges the registry pair for a session token. Any 4xx, or a
// success without a token, is AuthFailed.
func (c *Checker) Login(ctx context.Context, pair credentials.Pair) (token string, err error) {
	if !pair.Complete() {
		return "", failure.New(failure.CredentialsMissing, "registry.login", "registry credentials incomplete")
	}

	body, err := json.Marshal(loginRequest{Username: pair.Username, Password: pair.Secret})
	if err != nil {
		return "", fmt.Errorf("encode login request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.hubURL+"/v2/users/login/", bytes.NewReader(body))
	if err != nil {
		return "", failure.Wrap(failure.Unknown, "registry.login", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", failure.Network("registry.login", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close login response: %w", closeErr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", failure.New(failure.Unknown, "registry.login", "rate limited (HTTP 429)")
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", failure.New(failure.AuthFailed, "registry.login", "registry login failed (HTTP %d)", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", failure.New(failure.Unknown, "registry.login", "registry login returned HTTP %d", resp.StatusCode)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", failure.Wrap(failure.Unknown, "registry.login", fmt.Errorf("decode login response: %w", err))
	}
	if lr.Token == "" {
		return "", failure.New(failure.AuthFailed, "registry.login", "registry login returned no token")
	}
	return lr.Token, nil
}
