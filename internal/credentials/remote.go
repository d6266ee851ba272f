package credentials

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mamatnurahmat/devops-tools/internal/failure"
)

// RemoteProvider fetches the credential file contents from the bootstrap
// service, which stores them per user behind the cluster API proxy.
type RemoteProvider struct {
	URL      string
	Token    string
	Username string
	Insecure bool

	// Client defaults to http.DefaultClient, or an insecure client when
	// Insecure is set.
	Client *http.Client
}

func (p *RemoteProvider) Origin() Origin { return OriginRemote }

type remoteValue struct {
	Value string `json:"value"`
}

func (p *RemoteProvider) endpoint() (string, error) {
	var missing []string
	if p.URL == "" {
		missing = append(missing, "bootstrap.url")
	}
	if p.Token == "" {
		missing = append(missing, "bootstrap.token")
	}
	if p.Username == "" {
		missing = append(missing, "bootstrap.username")
	}
	if len(missing) > 0 {
		return "", failure.New(failure.CredentialsMissing, "credentials.remote",
			"remote credential service not configured: %s", strings.Join(missing, ", "))
	}
	return fmt.Sprintf("%s/api/v1/namespaces/default/services/http:auth-api:8080/proxy/v1/auth/%s",
		strings.TrimRight(p.URL, "/"), url.PathEscape(p.Username)), nil
}

func (p *RemoteProvider) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	if !p.Insecure {
		return http.DefaultClient
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	return &http.Client{Transport: transport}
}

func (p *RemoteProvider) do(ctx context.Context, method string, body any) (*http.Response, error) {
	endpoint, err := p.endpoint()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, failure.Wrap(failure.Unknown, "credentials.remote", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client().Do(req)
	if err != nil {
		return nil, failure.Network("credentials.remote", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_ = resp.Body.Close()
		return nil, failure.New(failure.AuthFailed, "credentials.remote", "bootstrap service rejected token (HTTP %d)", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_ = resp.Body.Close()
		return nil, failure.New(failure.Unknown, "credentials.remote", "HTTP %d", resp.StatusCode)
	}
	return resp, nil
}

// Lookup fetches the stored credentials for Username.
func (p *RemoteProvider) Lookup(ctx context.Context) (s Set, err error) {
	resp, err := p.do(ctx, http.MethodGet, nil)
	if err != nil {
		return Set{}, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close response body: %w", closeErr)
		}
	}()

	var payload remoteValue
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Set{}, failure.Wrap(failure.Unknown, "credentials.remote", fmt.Errorf("decode response: %w", err))
	}
	if payload.Value == "" {
		return Set{}, failure.New(failure.Unknown, "credentials.remote", "response missing 'value'")
	}
	fields := map[string]string{}
	if err := json.Unmarshal([]byte(payload.Value), &fields); err != nil {
		return Set{}, failure.Wrap(failure.Unknown, "credentials.remote", fmt.Errorf("decode stored credentials: %w", err))
	}
	return fromFields(fields), nil
}

// Push stores fields for Username, replacing what the service held.
func (p *RemoteProvider) Push(ctx context.Context, fields map[string]string) error {
	if len(fields) == 0 {
		return failure.New(failure.CredentialsMissing, "credentials.push", "nothing to store")
	}
	inner, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	resp, err := p.do(ctx, http.MethodPut, remoteValue{Value: string(inner)})
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
