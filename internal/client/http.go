package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/MikhailWahib/caskdb/internal/protocol"
	"github.com/MikhailWahib/caskdb/internal/shared"
)

const (
	kvEndpoint     = "/kv/"
	healthEndpoint = "/health"

	requestIDHeader = "X-Request-Id"
)

// HTTPClient calls the kvs-server HTTP API.
type HTTPClient struct {
	client *resty.Client
}

// NewHTTPClient creates a client for serverURL. A bare host:port is treated as http.
func NewHTTPClient(serverURL string) *HTTPClient {
	if !strings.Contains(serverURL, "://") {
		serverURL = "http://" + serverURL
	}
	c := resty.New().
		SetBaseURL(serverURL).
		SetTimeout(10 * time.Second).
		SetJSONMarshaler(protocol.Marshal).
		SetJSONUnmarshaler(protocol.Unmarshal)
	return &HTTPClient{client: c}
}

func (c *HTTPClient) request(ctx context.Context) *resty.Request {
	return c.client.R().
		SetContext(ctx).
		SetHeader(requestIDHeader, uuid.NewString()).
		SetError(&protocol.ErrorBody{})
}

// Set stores value under key.
func (c *HTTPClient) Set(ctx context.Context, key, value string) error {
	resp, err := c.request(ctx).
		SetBody(protocol.ValueBody{Value: value}).
		Put(keyPath(key))
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	if resp.StatusCode() != http.StatusNoContent {
		return responseError(resp)
	}
	return nil
}

// Get fetches the value under key.
func (c *HTTPClient) Get(ctx context.Context, key string) (string, bool, error) {
	var body protocol.ValueBody
	resp, err := c.request(ctx).
		SetResult(&body).
		Get(keyPath(key))
	if err != nil {
		return "", false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return body.Value, true, nil
	case http.StatusNotFound:
		if keyMissing(resp) {
			return "", false, nil
		}
	}
	return "", false, responseError(resp)
}

// Remove deletes key.
func (c *HTTPClient) Remove(ctx context.Context, key string) error {
	resp, err := c.request(ctx).
		Delete(keyPath(key))
	if err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	switch resp.StatusCode() {
	case http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		if keyMissing(resp) {
			return fmt.Errorf("%w: %q", shared.ErrKeyNotFound, key)
		}
	}
	return responseError(resp)
}

// Ping checks that the server is up.
func (c *HTTPClient) Ping(ctx context.Context) error {
	resp, err := c.request(ctx).Get(healthEndpoint)
	if err != nil {
		return fmt.Errorf("failed to ping: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return responseError(resp)
	}
	return nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.client.GetClient().CloseIdleConnections()
	return nil
}

// keyPath escapes key into a single path segment. The empty key maps to "/kv/".
func keyPath(key string) string {
	return kvEndpoint + url.PathEscape(key)
}

// keyMissing tells a key-level 404, which carries a JSON error body, apart
// from a request that matched no route.
func keyMissing(resp *resty.Response) bool {
	body, ok := resp.Error().(*protocol.ErrorBody)
	return ok && body.Error != ""
}

func responseError(resp *resty.Response) error {
	msg := resp.Status()
	if body, ok := resp.Error().(*protocol.ErrorBody); ok && body.Error != "" {
		msg = body.Error
	}
	status := protocol.StatusError
	if resp.StatusCode() == http.StatusBadRequest {
		status = protocol.StatusBadRequest
	}
	return protocol.Reply{Status: status, Error: msg}.Err()
}
