package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ledgerchat/ledgerchat/internal/llm"
	"github.com/ledgerchat/ledgerchat/internal/logging"
	"github.com/ledgerchat/ledgerchat/internal/registry"
	"github.com/ledgerchat/ledgerchat/internal/rpcclient"
	"github.com/ledgerchat/ledgerchat/internal/session"
)

type fakeModel struct {
	turns []*llm.Completion
	errs  []error
	seen  [][]llm.Message
	tools []registry.FunctionSpec
}

func (m *fakeModel) Complete(ctx context.Context, messages []llm.Message, tools []registry.FunctionSpec) (*llm.Completion, error) {
	m.seen = append(m.seen, append([]llm.Message(nil), messages...))
	m.tools = tools
	i := len(m.seen) - 1
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.turns) {
		return m.turns[i], nil
	}
	return m.turns[len(m.turns)-1], nil
}

type fakeToolClient struct {
	serverID string
	startErr error
	callErr  error
	results  map[string]*rpcclient.ToolResult

	starts int
	stops  int
	calls  []string
}

func (c *fakeToolClient) Start(ctx context.Context) error {
	c.starts++
	return c.startErr
}

func (c *fakeToolClient) CallTool(ctx context.Context, name string, args map[string]any) (*rpcclient.ToolResult, error) {
	c.calls = append(c.calls, name)
	if c.callErr != nil {
		return nil, c.callErr
	}
	if res, ok := c.results[name]; ok {
		return res, nil
	}
	return &rpcclient.ToolResult{RawText: "{}"}, nil
}

func (c *fakeToolClient) Stop() error {
	c.stops++
	return nil
}

type fakeFactory struct {
	clients map[string]*fakeToolClient
	built   []string
}

func (f *fakeFactory) Client(serverID string) (ToolClient, error) {
	f.built = append(f.built, serverID)
	c, ok := f.clients[serverID]
	if !ok {
		return nil, fmt.Errorf("no client for %q", serverID)
	}
	return c, nil
}

func toolCall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:       id,
		Type:     "function",
		Function: llm.FunctionCall{Name: name, Arguments: args},
	}
}

func newLoop(model ModelCaller, factory ClientFactory) *Loop {
	return New(model, registry.New(nil), factory, logging.NewNop())
}

func defaultCtx() *session.Context {
	return &session.Context{EnabledServerIDs: []string{"hsa_ledger", "charity_ledger"}}
}

func userMessages() []llm.Message {
	return []llm.Message{{Role: "user", Content: "what's going on with my money?"}}
}

func TestPlainTextNeedsNoTools(t *testing.T) {
	model := &fakeModel{turns: []*llm.Completion{{Content: "All quiet."}}}
	factory := &fakeFactory{}
	loop := newLoop(model, factory)

	out, err := loop.Run(context.Background(), userMessages(), defaultCtx())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Reply != "All quiet." {
		t.Errorf("Reply = %q, want %q", out.Reply, "All quiet.")
	}
	if len(factory.built) != 0 {
		t.Errorf("built clients %v, want none", factory.built)
	}
	if len(model.tools) == 0 {
		t.Error("model received no tool schemas, want enabled-server tools")
	}
}

func TestToolRoundThenAnswer(t *testing.T) {
	hsa := &fakeToolClient{results: map[string]*rpcclient.ToolResult{
		"get_unreimbursed_balance": {
			RawText:        `{"total_unreimbursed":42.5,"count":3}`,
			Structured:     map[string]any{"total_unreimbursed": 42.5, "count": 3.0},
			DisplaySummary: `{"total_unreimbursed":42.5,"count":3}`,
		},
	}}
	model := &fakeModel{turns: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "get_unreimbursed_balance", "{}")}},
		{Content: "You have $42.50 waiting to be reimbursed."},
	}}
	factory := &fakeFactory{clients: map[string]*fakeToolClient{"hsa_ledger": hsa}}
	loop := newLoop(model, factory)
	sctx := defaultCtx()

	out, err := loop.Run(context.Background(), userMessages(), sctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Reply != "You have $42.50 waiting to be reimbursed." {
		t.Errorf("Reply = %q", out.Reply)
	}
	if hsa.starts != 1 || hsa.stops != 1 {
		t.Errorf("starts/stops = %d/%d, want 1/1", hsa.starts, hsa.stops)
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].Tool != "get_unreimbursed_balance" {
		t.Errorf("ToolCalls = %+v", out.ToolCalls)
	}
	if out.ToolCalls[0].Summary != `{"total_unreimbursed":42.5,"count":3}` {
		t.Errorf("ToolCalls[0].Summary = %q, want the result digest", out.ToolCalls[0].Summary)
	}
	if sctx.LastIntent != session.IntentBalance {
		t.Errorf("LastIntent = %q, want %q", sctx.LastIntent, session.IntentBalance)
	}

	// The second model turn must see the tool result in the transcript.
	second := model.seen[1]
	last := second[len(second)-1]
	if last.Role != "tool" || last.ToolCallID != "c1" {
		t.Fatalf("last message before second turn = %+v, want tool result for c1", last)
	}
	if !strings.Contains(last.Content, "42.5") {
		t.Errorf("tool message content = %q, want the balance payload", last.Content)
	}
}

func TestRoundLimit(t *testing.T) {
	hsa := &fakeToolClient{}
	model := &fakeModel{turns: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "read_ledger_entries", "{}")}},
	}}
	factory := &fakeFactory{clients: map[string]*fakeToolClient{"hsa_ledger": hsa}}
	loop := newLoop(model, factory)

	out, err := loop.Run(context.Background(), userMessages(), defaultCtx())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Reply != RoundLimitMessage {
		t.Errorf("Reply = %q, want the round-limit message", out.Reply)
	}
	if len(model.seen) != MaxRounds {
		t.Errorf("model called %d times, want exactly %d", len(model.seen), MaxRounds)
	}
	if hsa.stops != 1 {
		t.Errorf("stops = %d, want 1 even at the round limit", hsa.stops)
	}
}

func TestClientStartedOnceAcrossRounds(t *testing.T) {
	hsa := &fakeToolClient{}
	model := &fakeModel{turns: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "read_ledger_entries", "{}")}},
		{ToolCalls: []llm.ToolCall{toolCall("c2", "check_for_duplicates", `{"merchant":"CVS","amount":10}`)}},
		{Content: "done"},
	}}
	factory := &fakeFactory{clients: map[string]*fakeToolClient{"hsa_ledger": hsa}}
	loop := newLoop(model, factory)

	if _, err := loop.Run(context.Background(), userMessages(), defaultCtx()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if hsa.starts != 1 {
		t.Errorf("starts = %d, want 1 (client reused across rounds)", hsa.starts)
	}
	if hsa.stops != 1 {
		t.Errorf("stops = %d, want 1", hsa.stops)
	}
}

func TestToolFailureBecomesSyntheticResult(t *testing.T) {
	hsa := &fakeToolClient{callErr: errors.New("tool server exited unexpectedly")}
	model := &fakeModel{turns: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "get_unreimbursed_balance", "{}")}},
		{Content: "I couldn't check the ledger, sorry."},
	}}
	factory := &fakeFactory{clients: map[string]*fakeToolClient{"hsa_ledger": hsa}}
	loop := newLoop(model, factory)

	out, err := loop.Run(context.Background(), userMessages(), defaultCtx())
	if err != nil {
		t.Fatalf("Run() error = %v, tool failures must not abort the loop", err)
	}
	if out.Reply != "I couldn't check the ledger, sorry." {
		t.Errorf("Reply = %q", out.Reply)
	}

	second := model.seen[1]
	last := second[len(second)-1]
	if !strings.Contains(last.Content, `"success":false`) {
		t.Errorf("tool message = %q, want synthetic failed result", last.Content)
	}
}

func TestServerErrorPayloadReachesModel(t *testing.T) {
	hsa := &fakeToolClient{callErr: &rpcclient.ProtocolError{
		Method: "tools/call",
		RPC: &rpcclient.RPCError{
			Code:    -32602,
			Message: "invalid arguments",
			Data:    json.RawMessage(`{"field":"amount"}`),
		},
	}}
	model := &fakeModel{turns: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "append_expense_to_ledger", `{"amount":-1}`)}},
		{Content: "That amount isn't valid."},
	}}
	factory := &fakeFactory{clients: map[string]*fakeToolClient{"hsa_ledger": hsa}}
	loop := newLoop(model, factory)

	if _, err := loop.Run(context.Background(), userMessages(), defaultCtx()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	second := model.seen[1]
	last := second[len(second)-1]
	if !strings.Contains(last.Content, `"success":false`) {
		t.Errorf("tool message = %q, want synthetic failed result", last.Content)
	}
	if !strings.Contains(last.Content, `"data":{"field":"amount"}`) {
		t.Errorf("tool message = %q, want the server error payload carried through", last.Content)
	}
}

func TestStartFailureBecomesSyntheticResult(t *testing.T) {
	hsa := &fakeToolClient{startErr: errors.New("no such binary")}
	model := &fakeModel{turns: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "get_unreimbursed_balance", "{}")}},
		{Content: "The ledger tools are down right now."},
	}}
	factory := &fakeFactory{clients: map[string]*fakeToolClient{"hsa_ledger": hsa}}
	loop := newLoop(model, factory)

	out, err := loop.Run(context.Background(), userMessages(), defaultCtx())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Reply != "The ledger tools are down right now." {
		t.Errorf("Reply = %q", out.Reply)
	}
	if hsa.stops != 0 {
		t.Errorf("stops = %d for a client that never started, want 0", hsa.stops)
	}
}

func TestUnknownToolBecomesSyntheticResult(t *testing.T) {
	model := &fakeModel{turns: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "transfer_funds", "{}")}},
		{Content: "I can't do that."},
	}}
	factory := &fakeFactory{}
	loop := newLoop(model, factory)

	if _, err := loop.Run(context.Background(), userMessages(), defaultCtx()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	second := model.seen[1]
	last := second[len(second)-1]
	if !strings.Contains(last.Content, "unknown tool") {
		t.Errorf("tool message = %q, want unknown-tool failure", last.Content)
	}
	if len(factory.built) != 0 {
		t.Errorf("built clients %v for unknown tool, want none", factory.built)
	}
}

func TestDisabledServerBecomesSyntheticResult(t *testing.T) {
	model := &fakeModel{turns: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "add_numbers", `{"a":2,"b":2}`)}},
		{Content: "The calculator isn't available."},
	}}
	factory := &fakeFactory{}
	loop := newLoop(model, factory)

	if _, err := loop.Run(context.Background(), userMessages(), defaultCtx()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	second := model.seen[1]
	last := second[len(second)-1]
	if !strings.Contains(last.Content, "not enabled") {
		t.Errorf("tool message = %q, want not-enabled failure", last.Content)
	}
	if len(factory.built) != 0 {
		t.Errorf("built clients %v for disabled server, want none", factory.built)
	}
}

func TestModelErrorStillStopsClients(t *testing.T) {
	hsa := &fakeToolClient{}
	model := &fakeModel{
		turns: []*llm.Completion{
			{ToolCalls: []llm.ToolCall{toolCall("c1", "read_ledger_entries", "{}")}},
			nil,
		},
		errs: []error{nil, errors.New("rate limited")},
	}
	factory := &fakeFactory{clients: map[string]*fakeToolClient{"hsa_ledger": hsa}}
	loop := newLoop(model, factory)

	_, err := loop.Run(context.Background(), userMessages(), defaultCtx())
	if err == nil {
		t.Fatal("Run() error = nil, want model failure to propagate")
	}
	if hsa.stops != 1 {
		t.Fatalf("stops = %d, want 1 (cleanup runs on every exit path)", hsa.stops)
	}
}

func TestSloppyArgumentsAreNormalized(t *testing.T) {
	calc := &fakeToolClient{results: map[string]*rpcclient.ToolResult{
		"add_numbers": {Structured: map[string]any{"result": 4.0}},
	}}
	model := &fakeModel{turns: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "add_numbers", `{"a":"2","b":2,"note":"please"}`)}},
		{Content: "4"},
	}}
	factory := &fakeFactory{clients: map[string]*fakeToolClient{"calc": calc}}
	loop := newLoop(model, factory)
	sctx := &session.Context{EnabledServerIDs: []string{"calc"}}

	out, err := loop.Run(context.Background(), userMessages(), sctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(out.ToolCalls))
	}
	input := out.ToolCalls[0].Input
	if input["a"] != 2.0 || input["b"] != 2.0 {
		t.Errorf("normalized input = %v, want numeric a and b", input)
	}
	if _, leaked := input["note"]; leaked {
		t.Errorf("input = %v, unknown key should be dropped", input)
	}
}
