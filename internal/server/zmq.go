package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/phuslu/log"

	"github.com/MikhailWahib/caskdb/internal/protocol"
)

// Consecutive receive failures back off exponentially; Serve gives up after
// maxRecvFailures in a row.
var (
	recvBackoff     = 10 * time.Millisecond
	maxRecvBackoff  = time.Second
	maxRecvFailures = 8
)

// ZMQServer answers JSON commands on a ZeroMQ REP socket.
type ZMQServer struct {
	addr    string
	handler *Handler
	logger  *log.Logger
	socket  zmq4.Socket
	ctx     context.Context
}

// NewZMQServer creates a server for an endpoint such as tcp://127.0.0.1:4001.
func NewZMQServer(addr string, handler *Handler, logger *log.Logger) *ZMQServer {
	return &ZMQServer{addr: addr, handler: handler, logger: logger}
}

// Listen binds the socket. The socket stops when ctx is cancelled.
func (s *ZMQServer) Listen(ctx context.Context) error {
	s.ctx = ctx
	s.socket = zmq4.NewRep(ctx)
	if err := s.socket.Listen(s.addr); err != nil {
		_ = s.socket.Close()
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.logger.Info().Str("addr", s.addr).Msg("zmq server listening")
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *ZMQServer) Addr() net.Addr {
	if s.socket == nil {
		return nil
	}
	return s.socket.Addr()
}

// Serve answers commands until the context given to Listen is cancelled.
func (s *ZMQServer) Serve() error {
	defer s.socket.Close()
	failures := 0
	backoff := recvBackoff
	for {
		msg, err := s.socket.Recv()
		if err != nil {
			if s.ctx.Err() != nil {
				s.logger.Info().Msg("zmq server stopped")
				return nil
			}
			failures++
			if errors.Is(err, zmq4.ErrClosedConn) || failures >= maxRecvFailures {
				return fmt.Errorf("zmq receive failed after %d attempts: %w", failures, err)
			}
			s.logger.Warn().Err(err).Int("failures", failures).Dur("backoff", backoff).Msg("zmq receive failed")
			select {
			case <-s.ctx.Done():
				s.logger.Info().Msg("zmq server stopped")
				return nil
			case <-time.After(backoff):
			}
			backoff = min(2*backoff, maxRecvBackoff)
			continue
		}
		failures = 0
		backoff = recvBackoff

		var reply protocol.Reply
		cmd, err := protocol.DecodeCommand(msg.Bytes())
		if err != nil {
			reply = protocol.Failed("", err)
		} else {
			reply = s.handler.Execute(cmd)
		}

		payload, err := protocol.Marshal(reply)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to marshal reply")
			payload = []byte(`{"status":"error","error":"failed to marshal reply"}`)
		}
		if err := s.socket.Send(zmq4.NewMsg(payload)); err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			s.logger.Warn().Err(err).Str("request_id", cmd.ID).Msg("zmq send failed")
		}
	}
}

// Run listens and serves until ctx is cancelled.
func (s *ZMQServer) Run(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}
	return s.Serve()
}
