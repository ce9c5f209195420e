package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledgerchat/ledgerchat/internal/orchestrator"
	"github.com/ledgerchat/ledgerchat/internal/registry"
	"github.com/ledgerchat/ledgerchat/internal/rpcclient"
	"github.com/ledgerchat/ledgerchat/internal/toolproc"
)

// Factory builds real rpcclient clients from registry definitions. It
// satisfies orchestrator.ClientFactory.
type Factory struct {
	reg *registry.Registry
	log *slog.Logger
}

func NewFactory(reg *registry.Registry, log *slog.Logger) *Factory {
	return &Factory{reg: reg, log: log}
}

func (f *Factory) Client(serverID string) (orchestrator.ToolClient, error) {
	def, ok := f.reg.Server(serverID)
	if !ok {
		return nil, fmt.Errorf("unknown tool server %q", serverID)
	}
	spec := toolproc.Command{Argv: def.Command, Dir: def.Dir, Env: def.Env}
	return rpcclient.New(spec, f.log), nil
}

// turnClients adapts a ClientFactory to the router's call surface: clients
// start lazily on first use and all live only for the current turn.
type turnClients struct {
	factory orchestrator.ClientFactory
	log     *slog.Logger
	started map[string]orchestrator.ToolClient
}

func newTurnClients(factory orchestrator.ClientFactory, log *slog.Logger) *turnClients {
	return &turnClients{
		factory: factory,
		log:     log,
		started: make(map[string]orchestrator.ToolClient),
	}
}

func (t *turnClients) CallTool(ctx context.Context, serverID, toolName string, args map[string]any) (*rpcclient.ToolResult, error) {
	client, ok := t.started[serverID]
	if !ok {
		c, err := t.factory.Client(serverID)
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			return nil, err
		}
		t.started[serverID] = c
		client = c
	}
	return client.CallTool(ctx, toolName, args)
}

func (t *turnClients) StopAll() {
	for id, client := range t.started {
		if err := client.Stop(); err != nil {
			t.log.Warn("stopping tool server", "server", id, "error", err)
		}
	}
	t.started = make(map[string]orchestrator.ToolClient)
}
