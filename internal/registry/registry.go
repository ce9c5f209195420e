// Package registry is the static table of tool servers and their tools,
// merged with user-configured servers, plus the argument normalizer that
// turns the model's sloppy arguments into typed ones.
package registry

import (
	"sort"

	"github.com/ledgerchat/ledgerchat/internal/config"
)

// Tool describes one callable tool and its function-calling schema.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Definition describes one tool server: how to launch it and what it serves.
type Definition struct {
	ID             string
	Name           string
	Description    string
	Command        []string
	Dir            string
	Env            map[string]string
	DefaultEnabled bool
	Tools          []Tool
}

func objectSchema(required []string, props map[string]any) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// builtinServers is the compiled-in server table. The bundled
// ledgerchat-tools binary serves each domain behind a subcommand.
var builtinServers = []Definition{
	{
		ID:             "hsa_ledger",
		Name:           "HSA Ledger",
		Description:    "Tracks HSA-eligible medical expenses and reimbursement status.",
		Command:        []string{"ledgerchat-tools", "hsa"},
		DefaultEnabled: true,
		Tools: []Tool{
			{
				Name:        "get_unreimbursed_balance",
				Description: "Total amount of unreimbursed HSA-eligible expenses.",
				Schema:      objectSchema(nil, map[string]any{}),
			},
			{
				Name:        "read_ledger_entries",
				Description: "List HSA ledger entries, optionally filtered by status.",
				Schema: objectSchema(nil, map[string]any{
					"status": map[string]any{"type": "string", "enum": []string{"unreimbursed", "reimbursed", "all"}},
					"limit":  map[string]any{"type": "integer"},
				}),
			},
			{
				Name:        "update_expense_status",
				Description: "Mark an expense reimbursed or unreimbursed.",
				Schema: objectSchema([]string{"expense_id", "status"}, map[string]any{
					"expense_id": map[string]any{"type": "string"},
					"status":     map[string]any{"type": "string", "enum": []string{"unreimbursed", "reimbursed"}},
				}),
			},
			{
				Name:        "check_for_duplicates",
				Description: "Check whether a similar expense is already recorded.",
				Schema: objectSchema([]string{"merchant", "amount"}, map[string]any{
					"merchant": map[string]any{"type": "string"},
					"amount":   map[string]any{"type": "number"},
					"date":     map[string]any{"type": "string"},
				}),
			},
			{
				Name:        "append_expense_to_ledger",
				Description: "Record a new HSA-eligible expense.",
				Schema: objectSchema([]string{"date", "merchant", "amount"}, map[string]any{
					"date":        map[string]any{"type": "string"},
					"merchant":    map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"amount":      map[string]any{"type": "number"},
					"status":      map[string]any{"type": "string", "enum": []string{"unreimbursed", "reimbursed"}},
				}),
			},
		},
	},
	{
		ID:             "charity_ledger",
		Name:           "Charitable Giving Ledger",
		Description:    "Tracks charitable donations and their tax deductibility.",
		Command:        []string{"ledgerchat-tools", "charity"},
		DefaultEnabled: true,
		Tools: []Tool{
			{
				Name:        "get_charitable_summary",
				Description: "Summarize charitable giving, overall or for one year.",
				Schema: objectSchema(nil, map[string]any{
					"year":                map[string]any{"type": "integer"},
					"tax_deductible_only": map[string]any{"type": "boolean"},
				}),
			},
			{
				Name:        "read_charitable_ledger_entries",
				Description: "List recorded donations, optionally filtered.",
				Schema: objectSchema(nil, map[string]any{
					"year":         map[string]any{"type": "integer"},
					"organization": map[string]any{"type": "string"},
					"limit":        map[string]any{"type": "integer"},
				}),
			},
			{
				Name:        "append_charitable_donation_to_ledger",
				Description: "Record a new charitable donation.",
				Schema: objectSchema([]string{"date", "organization", "amount"}, map[string]any{
					"date":           map[string]any{"type": "string"},
					"organization":   map[string]any{"type": "string"},
					"amount":         map[string]any{"type": "number"},
					"tax_deductible": map[string]any{"type": "boolean"},
					"description":    map[string]any{"type": "string"},
				}),
			},
			{
				Name:        "check_charitable_duplicates",
				Description: "Check whether a similar donation is already recorded.",
				Schema: objectSchema([]string{"organization", "amount"}, map[string]any{
					"organization": map[string]any{"type": "string"},
					"amount":       map[string]any{"type": "number"},
					"date":         map[string]any{"type": "string"},
				}),
			},
		},
	},
	{
		ID:             "calc",
		Name:           "Calculator",
		Description:    "Simple arithmetic helpers.",
		Command:        []string{"ledgerchat-tools", "calc"},
		DefaultEnabled: false,
		Tools: []Tool{
			{
				Name:        "add_numbers",
				Description: "Add two numbers and return the sum.",
				Schema: objectSchema([]string{"a", "b"}, map[string]any{
					"a": map[string]any{"type": "number"},
					"b": map[string]any{"type": "number"},
				}),
			},
		},
	},
}

// Registry resolves tools to servers.
type Registry struct {
	servers   map[string]Definition
	order     []string
	toolIndex map[string]string // tool name -> server id

	configDefaults []string
}

// New builds the registry from the builtin table plus any custom servers in
// the config. A custom server with a builtin's id replaces the builtin.
func New(cfg *config.Config) *Registry {
	r := &Registry{
		servers:   make(map[string]Definition),
		toolIndex: make(map[string]string),
	}
	for _, def := range builtinServers {
		r.servers[def.ID] = def
		r.order = append(r.order, def.ID)
	}

	if cfg != nil {
		r.configDefaults = append([]string(nil), cfg.DefaultEnabledServers...)

		customIDs := make([]string, 0, len(cfg.Servers))
		for id := range cfg.Servers {
			customIDs = append(customIDs, id)
		}
		sort.Strings(customIDs)
		for _, id := range customIDs {
			def := fromConfig(id, cfg.Servers[id])
			if _, exists := r.servers[id]; !exists {
				r.order = append(r.order, id)
			}
			r.servers[id] = def
		}
	}

	for _, id := range r.order {
		for _, tool := range r.servers[id].Tools {
			if _, taken := r.toolIndex[tool.Name]; !taken {
				r.toolIndex[tool.Name] = id
			}
		}
	}
	return r
}

func fromConfig(id string, srv config.ServerConfig) Definition {
	def := Definition{
		ID:             id,
		Name:           srv.Name,
		Description:    srv.Description,
		Command:        srv.Command,
		Dir:            srv.Dir,
		Env:            srv.Env,
		DefaultEnabled: srv.DefaultEnabled,
	}
	if def.Name == "" {
		def.Name = id
	}
	for _, tool := range srv.Tools {
		// Config servers declare tool names only; arguments pass through
		// as the model supplies them.
		def.Tools = append(def.Tools, Tool{
			Name:   tool,
			Schema: objectSchema(nil, map[string]any{}),
		})
	}
	return def
}

// Server returns the definition for a server id.
func (r *Registry) Server(id string) (Definition, bool) {
	def, ok := r.servers[id]
	return def, ok
}

// Resolve maps a tool name to its server and tool definition.
func (r *Registry) Resolve(toolName string) (Definition, Tool, bool) {
	id, ok := r.toolIndex[toolName]
	if !ok {
		return Definition{}, Tool{}, false
	}
	def := r.servers[id]
	for _, tool := range def.Tools {
		if tool.Name == toolName {
			return def, tool, true
		}
	}
	return Definition{}, Tool{}, false
}

// Definitions returns all servers in stable order: builtins first, then
// custom servers sorted by id.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.servers[id])
	}
	return out
}

// DefaultEnabledIDs returns the server ids enabled when neither the request
// nor the config says otherwise.
func (r *Registry) DefaultEnabledIDs() []string {
	var out []string
	for _, id := range r.order {
		if r.servers[id].DefaultEnabled {
			out = append(out, id)
		}
	}
	return out
}

// NormalizeEnabledServerIDs validates a requested enabled-server list:
// unknown ids are dropped, duplicates removed, order preserved. A nil
// request falls back to the config's default list, then to the table's
// default-enabled servers.
func (r *Registry) NormalizeEnabledServerIDs(requested []string) []string {
	if requested == nil {
		if len(r.configDefaults) > 0 {
			requested = r.configDefaults
		} else {
			return r.DefaultEnabledIDs()
		}
	}

	seen := make(map[string]bool, len(requested))
	out := make([]string, 0, len(requested))
	for _, id := range requested {
		if seen[id] {
			continue
		}
		if _, ok := r.servers[id]; !ok {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// FunctionSpec is one entry of the function-calling tools array sent to
// the model.
type FunctionSpec struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ModelSchema returns the function-calling schema for every tool on the
// enabled servers.
func (r *Registry) ModelSchema(enabledIDs []string) []FunctionSpec {
	var out []FunctionSpec
	for _, id := range enabledIDs {
		def, ok := r.servers[id]
		if !ok {
			continue
		}
		for _, tool := range def.Tools {
			out = append(out, FunctionSpec{
				Type: "function",
				Function: FunctionDef{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.Schema,
				},
			})
		}
	}
	return out
}
