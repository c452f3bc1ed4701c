// Package server exposes a storage engine over HTTP and ZeroMQ. Both
// transports funnel every command through one Handler, which runs them one
// at a time against the engine.
package server

import (
	"fmt"
	"sync"

	"github.com/MikhailWahib/caskdb"
	"github.com/MikhailWahib/caskdb/internal/protocol"
	"github.com/phuslu/log"
)

// Handler serializes commands against a single engine.
type Handler struct {
	mu     sync.Mutex
	engine caskdb.KvsEngine
	logger *log.Logger
}

// NewHandler creates a Handler that owns engine.
func NewHandler(engine caskdb.KvsEngine, logger *log.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// Execute runs one command and reports its outcome.
func (h *Handler) Execute(cmd protocol.Command) protocol.Reply {
	if cmd.Op == protocol.OpPing {
		return protocol.Found(cmd.ID, protocol.Pong)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch cmd.Op {
	case protocol.OpSet:
		if err := h.engine.Set(cmd.Key, cmd.Value); err != nil {
			return h.failed(cmd, err)
		}
		return protocol.OK(cmd.ID)

	case protocol.OpGet:
		value, found, err := h.engine.Get(cmd.Key)
		if err != nil {
			return h.failed(cmd, err)
		}
		if !found {
			return protocol.OK(cmd.ID)
		}
		return protocol.Found(cmd.ID, value)

	case protocol.OpRemove:
		if err := h.engine.Remove(cmd.Key); err != nil {
			return h.failed(cmd, err)
		}
		return protocol.OK(cmd.ID)
	}

	return protocol.Failed(cmd.ID, fmt.Errorf("%w: unknown op %q", protocol.ErrBadRequest, cmd.Op))
}

func (h *Handler) failed(cmd protocol.Command, err error) protocol.Reply {
	reply := protocol.Failed(cmd.ID, err)
	if reply.Status == protocol.StatusError {
		h.logger.Error().Err(err).Str("op", string(cmd.Op)).Str("key", cmd.Key).Str("request_id", cmd.ID).Msg("command failed")
	}
	return reply
}

// Close closes the engine once no command is running.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine.Close()
}
