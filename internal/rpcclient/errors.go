package rpcclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrSpawn wraps failures to launch the tool-server process.
	ErrSpawn = errors.New("tool server failed to start")

	// ErrHandshake means no offered protocol version was accepted.
	ErrHandshake = errors.New("tool server rejected every protocol version")

	// ErrNotReady means CallTool was used before a successful Start or
	// after Stop.
	ErrNotReady = errors.New("client is not ready")
)

// RPCError is the error object a server returns inside a response. Data
// carries the server-supplied error payload verbatim, when one was sent.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// ProtocolError reports that the server answered a request with an error.
// The server's error object is carried verbatim.
type ProtocolError struct {
	Method string
	RPC    *RPCError
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("tool server rejected %s: %v", e.Method, e.RPC)
}

func (e *ProtocolError) Unwrap() error { return e.RPC }
