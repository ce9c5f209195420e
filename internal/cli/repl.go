package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledgerchat/ledgerchat/internal/chat"
)

func runInteractive(svc *chat.Service, opts *options) int {
	fmt.Println("ledgerchat — ask about your HSA and charitable ledgers. /reset clears context, /quit exits.")

	sessionID := opts.sessionID
	enable := opts.enable
	sc := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !sc.Scan() {
			fmt.Println()
			return exitOK
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return exitOK
		case "/reset":
			if sessionID != "" {
				svc.Reset(sessionID)
			}
			fmt.Println("Context cleared.")
			continue
		}

		resp, err := svc.Handle(context.Background(), chat.Request{
			SessionID:        sessionID,
			Message:          line,
			EnabledServerIDs: enable,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "ledgerchat: %v\n", err)
			continue
		}
		sessionID = resp.SessionID
		// Only pass the override once; the session remembers it after that.
		enable = nil

		fmt.Println(resp.Reply)
		if opts.verbose {
			printToolCalls(os.Stderr, resp.ToolCalls)
		}
		fmt.Println()
	}
}
