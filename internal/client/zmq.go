package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"

	"github.com/MikhailWahib/caskdb/internal/protocol"
)

// ZMQClient sends commands over a ZeroMQ REQ socket. Calls are serialized
// since a REQ socket alternates strictly between send and receive.
type ZMQClient struct {
	mu     sync.Mutex
	socket zmq4.Socket
}

// NewZMQClient dials endpoint. A bare host:port is treated as tcp. The socket
// lives until ctx is cancelled or Close is called.
func NewZMQClient(ctx context.Context, endpoint string) (*ZMQClient, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "tcp://" + endpoint
	}
	socket := zmq4.NewReq(ctx)
	if err := socket.Dial(endpoint); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}
	return &ZMQClient{socket: socket}, nil
}

func (c *ZMQClient) roundTrip(ctx context.Context, cmd protocol.Command) (protocol.Reply, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Reply{}, err
	}
	cmd.ID = uuid.NewString()
	payload, err := protocol.Marshal(cmd)
	if err != nil {
		return protocol.Reply{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.socket.Send(zmq4.NewMsg(payload)); err != nil {
		return protocol.Reply{}, fmt.Errorf("failed to send %s: %w", cmd.Op, err)
	}
	msg, err := c.socket.Recv()
	if err != nil {
		return protocol.Reply{}, fmt.Errorf("failed to receive reply to %s: %w", cmd.Op, err)
	}

	var reply protocol.Reply
	if err := protocol.Unmarshal(msg.Bytes(), &reply); err != nil {
		return protocol.Reply{}, fmt.Errorf("invalid reply to %s: %w", cmd.Op, err)
	}
	if reply.ID != "" && reply.ID != cmd.ID {
		return protocol.Reply{}, fmt.Errorf("reply %s does not match request %s", reply.ID, cmd.ID)
	}
	return reply, nil
}

// Set stores value under key.
func (c *ZMQClient) Set(ctx context.Context, key, value string) error {
	reply, err := c.roundTrip(ctx, protocol.Command{Op: protocol.OpSet, Key: key, Value: value})
	if err != nil {
		return err
	}
	return reply.Err()
}

// Get fetches the value under key.
func (c *ZMQClient) Get(ctx context.Context, key string) (string, bool, error) {
	reply, err := c.roundTrip(ctx, protocol.Command{Op: protocol.OpGet, Key: key})
	if err != nil {
		return "", false, err
	}
	if err := reply.Err(); err != nil {
		return "", false, err
	}
	if reply.Value == nil {
		return "", false, nil
	}
	return *reply.Value, true, nil
}

// Remove deletes key.
func (c *ZMQClient) Remove(ctx context.Context, key string) error {
	reply, err := c.roundTrip(ctx, protocol.Command{Op: protocol.OpRemove, Key: key})
	if err != nil {
		return err
	}
	return reply.Err()
}

// Ping checks that the server is up.
func (c *ZMQClient) Ping(ctx context.Context) error {
	reply, err := c.roundTrip(ctx, protocol.Command{Op: protocol.OpPing})
	if err != nil {
		return err
	}
	return reply.Err()
}

// Close closes the socket.
func (c *ZMQClient) Close() error {
	return c.socket.Close()
}
