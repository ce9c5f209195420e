package main

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func newHSAServer(l *ledger) *server.MCPServer {
	s := server.NewMCPServer("hsa-ledger", version)

	s.AddTool(mcp.NewTool("get_unreimbursed_balance",
		mcp.WithDescription("Total amount of unreimbursed HSA-eligible expenses."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		total, count := l.unreimbursedBalance()
		return structured(map[string]any{
			"total_unreimbursed": total,
			"count":              count,
		}), nil
	})

	s.AddTool(mcp.NewTool("read_ledger_entries",
		mcp.WithDescription("List HSA ledger entries, optionally filtered by status."),
		mcp.WithString("status", mcp.Description("unreimbursed, reimbursed, or all")),
		mcp.WithNumber("limit", mcp.Description("maximum entries to return")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries := l.readExpenses(request.GetString("status", "all"), request.GetInt("limit", 0))
		return structured(map[string]any{"entries": entries, "count": len(entries)}), nil
	})

	s.AddTool(mcp.NewTool("update_expense_status",
		mcp.WithDescription("Mark an expense reimbursed or unreimbursed."),
		mcp.WithString("expense_id", mcp.Required()),
		mcp.WithString("status", mcp.Required(), mcp.Description("unreimbursed or reimbursed")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := request.GetString("expense_id", "")
		status := request.GetString("status", "")
		if status != "unreimbursed" && status != "reimbursed" {
			return mcp.NewToolResultError("status must be unreimbursed or reimbursed"), nil
		}
		if err := l.updateExpenseStatus(id, status); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return structured(map[string]any{"success": true, "expense_id": id, "status": status}), nil
	})

	s.AddTool(mcp.NewTool("check_for_duplicates",
		mcp.WithDescription("Check whether a similar expense is already recorded."),
		mcp.WithString("merchant", mcp.Required()),
		mcp.WithNumber("amount", mcp.Required()),
		mcp.WithString("date"),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dups := l.findDuplicateExpenses(
			request.GetString("merchant", ""),
			request.GetFloat("amount", 0),
			request.GetString("date", ""),
		)
		return structured(map[string]any{"duplicates": dups, "count": len(dups)}), nil
	})

	s.AddTool(mcp.NewTool("append_expense_to_ledger",
		mcp.WithDescription("Record a new HSA-eligible expense."),
		mcp.WithString("date", mcp.Required()),
		mcp.WithString("merchant", mcp.Required()),
		mcp.WithString("description"),
		mcp.WithNumber("amount", mcp.Required()),
		mcp.WithString("status", mcp.Description("defaults to unreimbursed")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		added := l.appendExpense(expense{
			Date:        request.GetString("date", ""),
			Merchant:    request.GetString("merchant", ""),
			Description: request.GetString("description", ""),
			Amount:      request.GetFloat("amount", 0),
			Status:      request.GetString("status", ""),
		})
		return structured(map[string]any{"success": true, "entry": added}), nil
	})

	return s
}
