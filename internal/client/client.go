// Package client talks to kvs-server over HTTP or ZeroMQ.
package client

import (
	"context"
)

// Client is a connection to kvs-server. Remove of a missing key fails with
// an error matching caskdb.ErrKeyNotFound; Get of a missing key reports false.
type Client interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Remove(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*ZMQClient)(nil)
)
