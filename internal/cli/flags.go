package cli

import (
	"fmt"
	"strings"
)

type options struct {
	configPath string
	sessionID  string
	enable     []string // nil means "use defaults"
	verbose    bool
	help       bool
	message    string
}

func parseArgs(args []string) (*options, error) {
	opts := &options{}
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-h" || arg == "--help":
			opts.help = true
		case arg == "-v" || arg == "--verbose":
			opts.verbose = true
		case arg == "--config":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --config")
			}
			i++
			opts.configPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			opts.configPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--session":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --session")
			}
			i++
			opts.sessionID = args[i]
		case strings.HasPrefix(arg, "--session="):
			opts.sessionID = strings.TrimPrefix(arg, "--session=")
		case arg == "--enable":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --enable")
			}
			i++
			opts.enable = appendServerIDs(opts.enable, args[i])
		case strings.HasPrefix(arg, "--enable="):
			opts.enable = appendServerIDs(opts.enable, strings.TrimPrefix(arg, "--enable="))
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown flag: %s", arg)
		default:
			positional = append(positional, arg)
		}
	}

	opts.message = strings.TrimSpace(strings.Join(positional, " "))
	return opts, nil
}

func appendServerIDs(ids []string, value string) []string {
	if ids == nil {
		ids = []string{}
	}
	for _, id := range strings.Split(value, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
