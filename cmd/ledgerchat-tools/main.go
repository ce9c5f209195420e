// ledgerchat-tools is the bundled tool server: an MCP stdio server backed
// by an in-memory ledger, so ledgerchat has something real to talk to in
// development and demos. One domain per subcommand.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var s *server.MCPServer
	switch os.Args[1] {
	case "hsa":
		s = newHSAServer(seedLedger())
	case "charity":
		s = newCharityServer(seedLedger())
	case "calc":
		s = newCalcServer()
	default:
		fmt.Fprintf(os.Stderr, "ledgerchat-tools: unknown server %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerchat-tools: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: ledgerchat-tools <hsa|charity|calc>

Serves one tool domain over stdio:
  hsa      HSA expense ledger tools
  charity  charitable giving ledger tools
  calc     arithmetic helpers
`)
}

// structured wraps a payload as both structuredContent and JSON text, so
// clients that only read text still get the full payload.
func structured(payload any) *mcp.CallToolResult {
	text, _ := json.Marshal(payload)
	return mcp.NewToolResultStructured(payload, string(text))
}
