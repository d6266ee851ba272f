package bitbucket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mamatnurahmat/devops-tools/internal/failure"
)

// ErrNotFound is returned when the API answers 404 for a branch, tag,
// commit or file.
var ErrNotFound = errors.New("not found")

func (c *Client) getJSON(ctx context.Context, op, reqURL string, target any) error {
	body, err := c.get(ctx, op, reqURL, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return failure.Wrap(failure.Unknown, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, reqURL, accept string) (body []byte, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, failure.Wrap(failure.Unknown, op, err)
	}
	req.Header.Set("Accept", accept)
	req.SetBasicAuth(c.auth.Username, c.auth.Secret)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, failure.Network(op, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close response body: %w", closeErr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, failure.New(failure.AuthFailed, op, "source control rejected credentials (HTTP %d)", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, failure.New(failure.Unknown, op, "HTTP %d", resp.StatusCode)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure.Network(op, err)
	}
	return body, nil
}
