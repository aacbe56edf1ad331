// Package backend is the typed client for the hosted backend service that
// owns authentication, tenant-scoped data and object storage. All wire-level
// concerns live here; callers see domain types and classified errors.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/fixdesk/fixdesk/internal/errors"
	"github.com/pkg/errors"
)

const defaultRequestTimeout = 15 * time.Second

// Client carries the connection settings shared by the auth, data and
// storage sub-clients.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	auth    *AuthClient
	data    *DataClient
	storage *StorageClient
}

// Option modifies a Client at construction time.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (primarily for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a backend client for the given base URL and publishable key.
func New(baseURL, apiKey string, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[backend.New] base URL is required")
	}
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range options {
		opt(c)
	}
	c.auth = &AuthClient{client: c, listeners: newListenerSet()}
	c.data = &DataClient{client: c}
	c.storage = &StorageClient{client: c}
	return c, nil
}

// Auth returns the authentication sub-client.
func (c *Client) Auth() *AuthClient {
	return c.auth
}

// Data returns the tenant-scoped table sub-client.
func (c *Client) Data() *DataClient {
	return c.data
}

// Storage returns the object storage sub-client.
func (c *Client) Storage() *StorageClient {
	return c.storage
}

// do issues a JSON request. A non-empty accessToken is sent as a bearer
// token alongside the API key. out may be nil for calls without a response
// body.
func (c *Client) do(ctx context.Context, method, path, accessToken string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "[Client.do] marshal request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "[Client.do] build request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "[Client.do] decode response")
		}
	}
	return nil
}

func (c *Client) setAuthHeaders(req *http.Request, accessToken string) {
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

// errorBody is the provider's JSON error envelope.
type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Message     string `json:"message"`
}

// statusError maps an HTTP error response onto the session layer's error
// taxonomy so callers upstream can apply the clear-vs-retry policy.
func statusError(resp *http.Response) error {
	var body errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	detail := body.Description
	if detail == "" {
		detail = body.Message
	}
	if detail == "" {
		detail = body.Error
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.Wrapf(apperrors.ErrUnauthorized, "status %d: %s", resp.StatusCode, detail)
	case resp.StatusCode == http.StatusNotFound:
		return errors.Wrapf(apperrors.ErrNotFound, "status %d: %s", resp.StatusCode, detail)
	case resp.StatusCode == http.StatusBadRequest && body.Error == "invalid_grant":
		return errors.Wrap(apperrors.ErrInvalidCredentials, detail)
	case resp.StatusCode >= 500:
		return errors.Wrapf(apperrors.ErrBackendUnavailable, "status %d: %s", resp.StatusCode, detail)
	}
	return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, detail)
}

// classifyTransportErr maps transport failures onto the transient bucket.
// Context deadlines become ErrTimeout so retry wrappers treat them uniformly.
func classifyTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(apperrors.ErrTimeout, err.Error())
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return errors.Wrap(apperrors.ErrBackendUnavailable, err.Error())
}
