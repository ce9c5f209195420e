// Package router answers a closed set of money questions deterministically,
// without involving the model: balance checks, charitable summaries, simple
// addition, and short-lived follow-ups on a previous answer.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/ledgerchat/ledgerchat/internal/registry"
	"github.com/ledgerchat/ledgerchat/internal/rpcclient"
	"github.com/ledgerchat/ledgerchat/internal/session"
)

// Clients provides ready tool clients by server id.
type Clients interface {
	CallTool(ctx context.Context, serverID, toolName string, args map[string]any) (*rpcclient.ToolResult, error)
}

// Result is a routed reply. Handled=false means the message is not one of
// the router's patterns and should go to the model.
type Result struct {
	Handled   bool
	Reply     string
	ToolCalls []session.ToolCallRecord
}

// Router matches messages against fixed intent patterns.
type Router struct {
	reg     *registry.Registry
	clients Clients
	log     *slog.Logger

	now func() time.Time
}

func New(reg *registry.Registry, clients Clients, log *slog.Logger) *Router {
	return &Router{reg: reg, clients: clients, log: log, now: time.Now}
}

var (
	balanceWordsRe = regexp.MustCompile(`(?i)\b(balance|how much|total|unreimbursed)\b`)
	hsaContextRe   = regexp.MustCompile(`(?i)\bhsa\b|\breimburse|\bmedical\s+expense`)
	charityRe      = regexp.MustCompile(`(?i)\bcharit\w*|\bdonat\w*|\bgave\b|\bgiving\b`)
	summaryVerbRe  = regexp.MustCompile(`(?i)\b(summary|summarize|total|how much|overview|gave|donated|given)\b`)

	detailsRe = regexp.MustCompile(`(?i)\b(show|more|full)\s+(me\s+)?(the\s+)?details?\b|\bdetails\s+please\b|\bbreak\s+(it|that)\s+down\b|\bitemize\b`)

	addExprRe     = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*\+\s*(-?\d+(?:\.\d+)?)`)
	addWordsRe    = regexp.MustCompile(`(?i)\badd\s+(-?\d+(?:\.\d+)?)\s+(?:and|to)\s+(-?\d+(?:\.\d+)?)`)
	toolMentionRe = regexp.MustCompile(`(?i)\baddition\s+tool\b|\badd_numbers\b|\btool\s+server\b|\bmcp\b`)
)

// Route tries the detectors in fixed order: dual-summary, balance,
// charitable, arithmetic, follow-up. The dual check runs before the
// single-domain ones so "both" questions never collapse into one answer.
// Balance words alone are enough for the balance intent; charity wording
// pulls the message out of the balance path.
func (r *Router) Route(ctx context.Context, msg string, sctx *session.Context) (*Result, error) {
	wantsCharity := charityRe.MatchString(msg) && summaryVerbRe.MatchString(msg)
	wantsBalance := balanceWordsRe.MatchString(msg) && !charityRe.MatchString(msg)
	wantsDual := balanceWordsRe.MatchString(msg) && hsaContextRe.MatchString(msg) && wantsCharity

	switch {
	case wantsDual:
		return r.dualSummary(ctx, sctx)
	case wantsBalance:
		return r.balance(ctx, sctx)
	case wantsCharity:
		return r.charitableSummary(ctx, sctx)
	}

	if a, b, ok := extractAddition(msg); ok {
		enabled := slices.Contains(sctx.EnabledServerIDs, "calc")
		if enabled || toolMentionRe.MatchString(msg) {
			return r.addition(ctx, a, b)
		}
		// No calculator enabled and none asked for; let the model answer.
		return &Result{}, nil
	}

	if detailsRe.MatchString(msg) {
		return r.followUp(ctx, sctx)
	}

	return &Result{}, nil
}

func (r *Router) balance(ctx context.Context, sctx *session.Context) (*Result, error) {
	if !slices.Contains(sctx.EnabledServerIDs, "hsa_ledger") {
		return &Result{
			Handled: true,
			Reply:   "The HSA ledger tools are disabled for this chat, so I can't look up your balance. Enable the hsa_ledger server and ask again.",
		}, nil
	}

	res, err := r.clients.CallTool(ctx, "hsa_ledger", "get_unreimbursed_balance", map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("balance lookup: %w", err)
	}

	reply := renderBalance(res.Structured)
	sctx.RecordResult(session.IntentBalance, res.Structured, r.now())
	return &Result{
		Handled: true,
		Reply:   reply,
		ToolCalls: []session.ToolCallRecord{{
			ServerID: "hsa_ledger",
			Tool:     "get_unreimbursed_balance",
			Input:    map[string]any{},
			Output:   res.Structured,
			Summary:  res.DisplaySummary,
		}},
	}, nil
}

func (r *Router) charitableSummary(ctx context.Context, sctx *session.Context) (*Result, error) {
	if !slices.Contains(sctx.EnabledServerIDs, "charity_ledger") {
		return &Result{
			Handled: true,
			Reply:   "The charitable giving tools are disabled for this chat, so I can't summarize your donations. Enable the charity_ledger server and ask again.",
		}, nil
	}

	res, err := r.clients.CallTool(ctx, "charity_ledger", "get_charitable_summary", map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("charitable summary: %w", err)
	}

	reply := renderCharitable(res.Structured)
	sctx.RecordResult(session.IntentCharitable, res.Structured, r.now())
	return &Result{
		Handled: true,
		Reply:   reply,
		ToolCalls: []session.ToolCallRecord{{
			ServerID: "charity_ledger",
			Tool:     "get_charitable_summary",
			Input:    map[string]any{},
			Output:   res.Structured,
			Summary:  res.DisplaySummary,
		}},
	}, nil
}

// dualSummary answers questions that span both ledgers with one combined
// reply. Both results land in context; the charitable one becomes the
// most recent intent.
func (r *Router) dualSummary(ctx context.Context, sctx *session.Context) (*Result, error) {
	bal, err := r.balance(ctx, sctx)
	if err != nil {
		return nil, err
	}
	char, err := r.charitableSummary(ctx, sctx)
	if err != nil {
		return nil, err
	}
	return &Result{
		Handled:   true,
		Reply:     bal.Reply + "\n\n" + char.Reply,
		ToolCalls: append(bal.ToolCalls, char.ToolCalls...),
	}, nil
}

func (r *Router) addition(ctx context.Context, a, b float64) (*Result, error) {
	args := map[string]any{"a": a, "b": b}
	res, err := r.clients.CallTool(ctx, "calc", "add_numbers", args)
	if err != nil {
		return nil, fmt.Errorf("addition: %w", err)
	}

	sum := a + b
	if v, ok := number(res.Structured, "result"); ok {
		sum = v
	}
	reply := fmt.Sprintf("Using the addition tool: %s + %s = %s",
		formatNumber(a), formatNumber(b), formatNumber(sum))
	return &Result{
		Handled: true,
		Reply:   reply,
		ToolCalls: []session.ToolCallRecord{{
			ServerID: "calc",
			Tool:     "add_numbers",
			Input:    args,
			Output:   res.Structured,
			Summary:  res.DisplaySummary,
		}},
	}, nil
}

// followUp resolves "show me the details" against whatever intent was
// answered within the follow-up window. Stale or absent context means the
// message is not handled here.
func (r *Router) followUp(ctx context.Context, sctx *session.Context) (*Result, error) {
	if sctx.LastIntent == "" {
		return &Result{}, nil
	}
	if _, ok := sctx.Recent(sctx.LastIntent, r.now()); !ok {
		return &Result{}, nil
	}

	var serverID, tool string
	var args map[string]any
	switch sctx.LastIntent {
	case session.IntentBalance:
		serverID, tool = "hsa_ledger", "read_ledger_entries"
		args = map[string]any{"status": "unreimbursed"}
	case session.IntentCharitable:
		serverID, tool = "charity_ledger", "read_charitable_ledger_entries"
		args = map[string]any{}
	default:
		return &Result{}, nil
	}

	res, err := r.clients.CallTool(ctx, serverID, tool, args)
	if err != nil {
		return nil, fmt.Errorf("follow-up details: %w", err)
	}

	return &Result{
		Handled: true,
		Reply:   renderEntries(res.Structured),
		ToolCalls: []session.ToolCallRecord{{
			ServerID: serverID,
			Tool:     tool,
			Input:    args,
			Output:   res.Structured,
			Summary:  res.DisplaySummary,
		}},
	}, nil
}

// extractAddition pulls the two operands out of "2 + 2" or "add 2 and 2".
func extractAddition(msg string) (a, b float64, ok bool) {
	m := addExprRe.FindStringSubmatch(msg)
	if m == nil {
		m = addWordsRe.FindStringSubmatch(msg)
	}
	if m == nil {
		return 0, 0, false
	}
	a, errA := strconv.ParseFloat(m[1], 64)
	b2, errB := strconv.ParseFloat(m[2], 64)
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return a, b2, true
}

// formatNumber prints whole numbers without a decimal point.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
