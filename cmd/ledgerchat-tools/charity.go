package main

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func newCharityServer(l *ledger) *server.MCPServer {
	s := server.NewMCPServer("charity-ledger", version)

	s.AddTool(mcp.NewTool("get_charitable_summary",
		mcp.WithDescription("Summarize charitable giving, overall or for one year."),
		mcp.WithNumber("year", mcp.Description("restrict to one calendar year")),
		mcp.WithBoolean("tax_deductible_only"),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sum := l.summarizeDonations(
			request.GetInt("year", 0),
			request.GetBool("tax_deductible_only", false),
		)
		return structured(sum), nil
	})

	s.AddTool(mcp.NewTool("read_charitable_ledger_entries",
		mcp.WithDescription("List recorded donations, optionally filtered."),
		mcp.WithNumber("year"),
		mcp.WithString("organization"),
		mcp.WithNumber("limit"),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries := l.readDonations(
			request.GetInt("year", 0),
			request.GetString("organization", ""),
			request.GetInt("limit", 0),
		)
		return structured(map[string]any{"entries": entries, "count": len(entries)}), nil
	})

	s.AddTool(mcp.NewTool("append_charitable_donation_to_ledger",
		mcp.WithDescription("Record a new charitable donation."),
		mcp.WithString("date", mcp.Required()),
		mcp.WithString("organization", mcp.Required()),
		mcp.WithNumber("amount", mcp.Required()),
		mcp.WithBoolean("tax_deductible"),
		mcp.WithString("description"),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		added := l.appendDonation(donation{
			Date:          request.GetString("date", ""),
			Organization:  request.GetString("organization", ""),
			Amount:        request.GetFloat("amount", 0),
			TaxDeductible: request.GetBool("tax_deductible", true),
			Description:   request.GetString("description", ""),
		})
		return structured(map[string]any{"success": true, "entry": added}), nil
	})

	s.AddTool(mcp.NewTool("check_charitable_duplicates",
		mcp.WithDescription("Check whether a similar donation is already recorded."),
		mcp.WithString("organization", mcp.Required()),
		mcp.WithNumber("amount", mcp.Required()),
		mcp.WithString("date"),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dups := l.findDuplicateDonations(
			request.GetString("organization", ""),
			request.GetFloat("amount", 0),
			request.GetString("date", ""),
		)
		return structured(map[string]any{"duplicates": dups, "count": len(dups)}), nil
	})

	return s
}
