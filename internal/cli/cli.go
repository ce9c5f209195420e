// Package cli is the terminal front end: a one-shot question or an
// interactive chat loop.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ledgerchat/ledgerchat/internal/chat"
	"github.com/ledgerchat/ledgerchat/internal/config"
	"github.com/ledgerchat/ledgerchat/internal/llm"
	"github.com/ledgerchat/ledgerchat/internal/logging"
	"github.com/ledgerchat/ledgerchat/internal/registry"
	"github.com/ledgerchat/ledgerchat/internal/session"
)

const (
	exitOK       = 0
	exitInternal = 1
	exitUsageErr = 2
)

// Run is the main CLI entry point. Returns an exit code.
func Run(args []string) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerchat: %v\n", err)
		printUsage(os.Stderr)
		return exitUsageErr
	}
	if opts.help {
		printUsage(os.Stdout)
		return exitOK
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerchat: %v\n", err)
		return exitInternal
	}
	if verr := config.Validate(cfg); verr != nil {
		fmt.Fprintf(os.Stderr, "ledgerchat: invalid config: %v\n", verr)
		return exitUsageErr
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := logging.New(level)

	reg := registry.New(cfg)
	model, err := llm.New(cfg.Model, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerchat: %v\n", err)
		return exitUsageErr
	}
	svc := chat.NewService(reg, model, chat.NewFactory(reg, log), session.NewManager(0), log)

	if opts.message != "" {
		return runOnce(svc, opts)
	}
	return runInteractive(svc, opts)
}

func loadConfig(opts *options) (*config.Config, error) {
	if opts.configPath != "" {
		return config.LoadFrom(opts.configPath)
	}
	return config.Load()
}

func runOnce(svc *chat.Service, opts *options) int {
	resp, err := svc.Handle(context.Background(), chat.Request{
		SessionID:        opts.sessionID,
		Message:          opts.message,
		EnabledServerIDs: opts.enable,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerchat: %v\n", err)
		return exitInternal
	}

	fmt.Println(resp.Reply)
	if opts.verbose {
		printToolCalls(os.Stderr, resp.ToolCalls)
	}
	return exitOK
}

func printToolCalls(w io.Writer, calls []session.ToolCallRecord) {
	for _, call := range calls {
		fmt.Fprintf(w, "[tool] %s/%s %v -> %s\n", call.ServerID, call.Tool, call.Input, call.Summary)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: ledgerchat [FLAGS] [MESSAGE]

With MESSAGE, asks one question and exits. Without it, opens an
interactive chat (commands: /reset, /quit).

Flags:
  --config PATH    config file (default: $XDG_CONFIG_HOME/ledgerchat/config.toml)
  --session ID     continue an existing session
  --enable IDS     comma-separated tool servers to enable (repeatable);
                   defaults to the config's default_enabled_servers
  -v, --verbose    debug logging plus tool-call traces
  -h, --help       this help
`)
}
