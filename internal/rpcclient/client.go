// Package rpcclient speaks JSON-RPC 2.0 to a tool server over stdio.
// One client per server process; requests are serialized and correlated
// by id, and unrelated lines on the wire are discarded.
package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ledgerchat/ledgerchat/internal/toolproc"
)

// State tracks the client lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// protocolVersions is the handshake fallback chain, newest first. The first
// version the server accepts wins.
var protocolVersions = []string{"2025-06-18", "2025-03-26", "2024-11-05"}

const (
	clientName    = "ledgerchat"
	clientVersion = "0.1.0"

	defaultCallTimeout = 60 * time.Second
	handshakeTimeout   = 15 * time.Second
	terminateGrace     = 2 * time.Second
)

// transport is the pipe-level surface the client needs. toolproc.Proc
// satisfies it; tests substitute scripted fakes.
type transport interface {
	WriteLine(line string) error
	ReadLine(timeout time.Duration) (string, error)
	StderrTail() string
	Terminate(grace time.Duration) error
}

// Client drives one tool server.
type Client struct {
	spec toolproc.Command
	log  *slog.Logger

	// seam for tests
	spawn func(ctx context.Context, spec toolproc.Command) (transport, error)

	mu       sync.Mutex
	state    State
	proc     transport
	nextID   int64
	protoVer string
}

// New returns an unstarted client for the given server command.
func New(spec toolproc.Command, log *slog.Logger) *Client {
	return &Client{
		spec: spec,
		log:  log,
		spawn: func(ctx context.Context, spec toolproc.Command) (transport, error) {
			return toolproc.Start(ctx, spec)
		},
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ProtocolVersion returns the negotiated version, empty before Start.
func (c *Client) ProtocolVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protoVer
}

// Start spawns the server process and performs the initialize handshake,
// walking the protocol-version chain until the server accepts one. Calling
// Start on a ready client is a no-op; a stopped client can be started again.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateReady:
		return nil
	case StateInitializing:
		return fmt.Errorf("start already in progress")
	}

	c.state = StateInitializing
	proc, err := c.spawn(ctx, c.spec)
	if err != nil {
		c.state = StateFailed
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	c.proc = proc
	c.nextID = 0

	ver, err := c.handshake(ctx)
	if err != nil {
		_ = proc.Terminate(terminateGrace)
		c.proc = nil
		c.state = StateFailed
		return err
	}

	c.protoVer = ver
	c.state = StateReady
	c.log.Debug("tool server ready", "command", c.spec.Argv[0], "protocol", ver)
	return nil
}

func (c *Client) handshake(ctx context.Context) (string, error) {
	for _, ver := range protocolVersions {
		params := initializeParams{
			ProtocolVersion: ver,
			Capabilities:    map[string]any{},
			ClientInfo:      clientInfo{Name: clientName, Version: clientVersion},
		}
		raw, err := c.roundTrip(ctx, "initialize", params, handshakeTimeout)
		if err != nil {
			var protoErr *ProtocolError
			if errors.As(err, &protoErr) {
				c.log.Debug("protocol version rejected", "version", ver, "error", protoErr.RPC.Message)
				continue
			}
			return "", fmt.Errorf("initialize: %w", err)
		}

		var res initializeResult
		_ = json.Unmarshal(raw, &res)
		negotiated := res.ProtocolVersion
		if negotiated == "" {
			negotiated = ver
		}

		if err := c.notify("notifications/initialized", nil); err != nil {
			return "", fmt.Errorf("initialized notification: %w", err)
		}
		return negotiated, nil
	}
	return "", fmt.Errorf("%w (offered %v)", ErrHandshake, protocolVersions)
}

// CallTool invokes a tool and unwraps its result. Calls are serialized;
// one request is in flight at a time.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReady {
		return nil, fmt.Errorf("%w (state %s)", ErrNotReady, c.state)
	}
	if args == nil {
		args = map[string]any{}
	}

	raw, err := c.roundTrip(ctx, "tools/call", callToolParams{Name: name, Arguments: args}, defaultCallTimeout)
	if err != nil {
		var protoErr *ProtocolError
		if errors.As(err, &protoErr) {
			// Server-level rejection; the connection is still good.
			return nil, protoErr
		}
		// Transport trouble: the pipe is no longer trustworthy.
		_ = c.proc.Terminate(terminateGrace)
		c.state = StateFailed
		return nil, fmt.Errorf("calling %s: %w", name, err)
	}
	return unwrapToolResult(raw), nil
}

// roundTrip sends one request and reads lines until the matching response
// arrives. Lines with a different id, no id, or that are not JSON at all
// are discarded. Callers hold c.mu.
func (c *Client) roundTrip(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	c.nextID++
	id := c.nextID

	if err := c.send(request{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%s: %w", method, toolproc.ErrReadTimeout)
		}

		line, err := c.proc.ReadLine(remaining)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", method, err)
		}

		var resp response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			c.log.Debug("discarding non-JSON line", "line", truncate(line, 120))
			continue
		}
		if resp.ID == nil || *resp.ID != id {
			c.log.Debug("discarding unrelated line", "line", truncate(line, 120))
			continue
		}
		if resp.Error != nil {
			return nil, &ProtocolError{Method: method, RPC: resp.Error}
		}
		return resp.Result, nil
	}
}

func (c *Client) send(req request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", req.Method, err)
	}
	return c.proc.WriteLine(string(data))
}

func (c *Client) notify(method string, params any) error {
	return c.send(request{JSONRPC: "2.0", Method: method, Params: params})
}

// Stop terminates the server process. Safe to call at any time and more
// than once; after Stop the client can be started again from scratch.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.proc != nil {
		err = c.proc.Terminate(terminateGrace)
		c.proc = nil
	}
	c.nextID = 0
	c.protoVer = ""
	c.state = StateStopped
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
