// Package orchestrator mediates between the model and the tool servers:
// it feeds tool schemas to the model, executes the calls the model asks
// for, and feeds the results back until the model answers in plain text.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ledgerchat/ledgerchat/internal/llm"
	"github.com/ledgerchat/ledgerchat/internal/registry"
	"github.com/ledgerchat/ledgerchat/internal/rpcclient"
	"github.com/ledgerchat/ledgerchat/internal/session"
)

// MaxRounds bounds how many model turns may request tools before the loop
// gives up.
const MaxRounds = 4

// RoundLimitMessage is the fixed reply when the model never produced plain
// text within MaxRounds.
const RoundLimitMessage = "I reached my tool-calling limit for this request. Please try asking again."

// ModelCaller is the model side of the loop.
type ModelCaller interface {
	Complete(ctx context.Context, messages []llm.Message, tools []registry.FunctionSpec) (*llm.Completion, error)
}

// ToolClient is one started tool-server connection.
type ToolClient interface {
	Start(ctx context.Context) error
	CallTool(ctx context.Context, name string, args map[string]any) (*rpcclient.ToolResult, error)
	Stop() error
}

// ClientFactory builds unstarted clients by server id. The loop starts a
// client lazily the first time a round needs its server, and stops every
// started client when the loop ends, however it ends.
type ClientFactory interface {
	Client(serverID string) (ToolClient, error)
}

// Outcome is the loop's final answer plus everything it called on the way.
type Outcome struct {
	Reply     string
	ToolCalls []session.ToolCallRecord
}

// Loop runs the tool-mediation rounds.
type Loop struct {
	model   ModelCaller
	reg     *registry.Registry
	clients ClientFactory
	log     *slog.Logger

	now func() time.Time
}

func New(model ModelCaller, reg *registry.Registry, clients ClientFactory, log *slog.Logger) *Loop {
	return &Loop{model: model, reg: reg, clients: clients, log: log, now: time.Now}
}

// Run drives up to MaxRounds model turns. Tool failures never abort the
// loop; they come back to the model as failed tool results. Model failures
// do abort it.
func (l *Loop) Run(ctx context.Context, messages []llm.Message, sctx *session.Context) (*Outcome, error) {
	started := make(map[string]ToolClient)
	defer func() {
		for id, client := range started {
			if err := client.Stop(); err != nil {
				l.log.Warn("stopping tool server", "server", id, "error", err)
			}
		}
	}()

	tools := l.reg.ModelSchema(sctx.EnabledServerIDs)
	msgs := append([]llm.Message(nil), messages...)
	var records []session.ToolCallRecord

	for round := 0; round < MaxRounds; round++ {
		comp, err := l.model.Complete(ctx, msgs, tools)
		if err != nil {
			return nil, fmt.Errorf("model turn %d: %w", round+1, err)
		}
		if len(comp.ToolCalls) == 0 {
			return &Outcome{Reply: comp.Content, ToolCalls: records}, nil
		}

		msgs = append(msgs, llm.Message{
			Role:      "assistant",
			Content:   comp.Content,
			ToolCalls: comp.ToolCalls,
		})

		for _, call := range comp.ToolCalls {
			payload, record := l.execute(ctx, started, call, sctx)
			records = append(records, record)
			msgs = append(msgs, llm.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    payload,
			})
		}
	}

	return &Outcome{Reply: RoundLimitMessage, ToolCalls: records}, nil
}

// execute runs one requested tool call. Every failure mode collapses into
// a synthetic failed result so the model can react to it.
func (l *Loop) execute(ctx context.Context, started map[string]ToolClient, call llm.ToolCall, sctx *session.Context) (string, session.ToolCallRecord) {
	name := call.Function.Name

	var rawArgs map[string]any
	if call.Function.Arguments != "" {
		_ = json.Unmarshal([]byte(call.Function.Arguments), &rawArgs)
	}

	def, _, ok := l.reg.Resolve(name)
	if !ok {
		return l.failure(name, "", rawArgs, fmt.Sprintf("unknown tool %q", name))
	}
	if !slices.Contains(sctx.EnabledServerIDs, def.ID) {
		return l.failure(name, def.ID, rawArgs, fmt.Sprintf("tool server %q is not enabled for this chat", def.ID))
	}

	args := registry.NormalizeArguments(name, rawArgs)

	client, ok := started[def.ID]
	if !ok {
		var err error
		client, err = l.clients.Client(def.ID)
		if err == nil {
			err = client.Start(ctx)
		}
		if err != nil {
			l.log.Warn("tool server unavailable", "server", def.ID, "error", err)
			return l.failure(name, def.ID, args, fmt.Sprintf("tool server %q failed to start: %v", def.ID, err))
		}
		started[def.ID] = client
	}

	res, err := client.CallTool(ctx, name, args)
	if err != nil {
		l.log.Warn("tool call failed", "server", def.ID, "tool", name, "error", err)
		return l.rpcFailure(name, def.ID, args, err)
	}

	l.recordIntent(name, res, sctx)

	record := session.ToolCallRecord{
		ServerID: def.ID,
		Tool:     name,
		Input:    args,
		Output:   res.Structured,
		Summary:  res.DisplaySummary,
	}
	return res.RawText, record
}

func (l *Loop) failure(tool, serverID string, args map[string]any, reason string) (string, session.ToolCallRecord) {
	return l.failureWithData(tool, serverID, args, reason, nil)
}

// rpcFailure keeps any error payload the server attached to its rejection,
// so the model sees what the server actually said.
func (l *Loop) rpcFailure(tool, serverID string, args map[string]any, err error) (string, session.ToolCallRecord) {
	var protoErr *rpcclient.ProtocolError
	if errors.As(err, &protoErr) {
		return l.failureWithData(tool, serverID, args, fmt.Sprintf("tool call failed: %v", err), protoErr.RPC.Data)
	}
	return l.failure(tool, serverID, args, fmt.Sprintf("tool call failed: %v", err))
}

func (l *Loop) failureWithData(tool, serverID string, args map[string]any, reason string, data json.RawMessage) (string, session.ToolCallRecord) {
	payload := map[string]any{"success": false, "error": reason}
	if len(data) > 0 {
		payload["data"] = data
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded), session.ToolCallRecord{
		ServerID: serverID,
		Tool:     tool,
		Input:    args,
		Output:   payload,
		Summary:  reason,
	}
}

// recordIntent keeps the router's follow-up context in sync when the model
// answers a question the router also understands.
func (l *Loop) recordIntent(tool string, res *rpcclient.ToolResult, sctx *session.Context) {
	if res.Structured == nil {
		return
	}
	switch tool {
	case "get_unreimbursed_balance":
		sctx.RecordResult(session.IntentBalance, res.Structured, l.now())
	case "get_charitable_summary":
		sctx.RecordResult(session.IntentCharitable, res.Structured, l.now())
	}
}
