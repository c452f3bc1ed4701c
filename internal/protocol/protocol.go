// Package protocol defines the messages kvs-server and its clients exchange.
package protocol

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/MikhailWahib/caskdb/internal/shared"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Op names a command.
type Op string

const (
	OpSet    Op = "set"
	OpGet    Op = "get"
	OpRemove Op = "rm"
	OpPing   Op = "ping"
)

// Status is the outcome of a command.
type Status string

const (
	StatusOK         Status = "ok"
	StatusNotFound   Status = "not_found"
	StatusBadRequest Status = "bad_request"
	StatusError      Status = "error"
)

// Pong is the value of a successful ping reply.
const Pong = "pong"

var (
	// ErrBadRequest is returned for a command the server could not understand.
	ErrBadRequest = errors.New("bad request")
	// ErrServer is returned when the server failed to run a command.
	ErrServer = errors.New("server error")
)

// Command is one request to the server.
type Command struct {
	ID    string `json:"id,omitempty"`
	Op    Op     `json:"op"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
}

// Reply answers a Command. Value is set for a get that found its key and for ping.
type Reply struct {
	ID     string  `json:"id,omitempty"`
	Status Status  `json:"status"`
	Value  *string `json:"value,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// ValueBody is the HTTP request and response body carrying a value.
type ValueBody struct {
	Value string `json:"value"`
}

// ErrorBody is the HTTP body of a failed request.
type ErrorBody struct {
	Error string `json:"error"`
}

// OK returns a successful reply.
func OK(id string) Reply {
	return Reply{ID: id, Status: StatusOK}
}

// Found returns a successful reply carrying value.
func Found(id, value string) Reply {
	return Reply{ID: id, Status: StatusOK, Value: &value}
}

// Failed maps err to a reply status.
func Failed(id string, err error) Reply {
	status := StatusError
	switch {
	case errors.Is(err, shared.ErrKeyNotFound):
		status = StatusNotFound
	case errors.Is(err, ErrBadRequest):
		status = StatusBadRequest
	}
	return Reply{ID: id, Status: status, Error: err.Error()}
}

// Err turns a failed reply back into an error matching the server side one.
func (r Reply) Err() error {
	switch r.Status {
	case StatusOK:
		return nil
	case StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrKeyNotFound, r.Error)
	case StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, r.Error)
	}
	return fmt.Errorf("%w: %s", ErrServer, r.Error)
}

// Marshal encodes v as JSON.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes JSON into v.
func Unmarshal(b []byte, v any) error {
	return json.Unmarshal(b, v)
}

// DecodeCommand parses a command, failing with ErrBadRequest on malformed input.
func DecodeCommand(b []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(b, &c); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return c, nil
}
