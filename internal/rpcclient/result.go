package rpcclient

import (
	"encoding/json"
	"strings"
)

// displaySummaryMax bounds the one-line digest shown in traces.
const displaySummaryMax = 180

// ToolResult is an unwrapped tools/call result.
//
// RawText is the first text content block, "{}" when the server sent none.
// Structured is the structuredContent object when present, otherwise a
// best-effort parse of RawText as a JSON object, otherwise nil.
// DisplaySummary is RawText collapsed to a single bounded line, for
// transcripts and tool-call traces.
type ToolResult struct {
	RawText        string
	Structured     map[string]any
	DisplaySummary string
	IsError        bool
}

type wireToolResult struct {
	Content           []wireContent  `json:"content"`
	StructuredContent map[string]any `json:"structuredContent"`
	IsError           bool           `json:"isError"`
}

type wireContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func unwrapToolResult(raw json.RawMessage) *ToolResult {
	var wire wireToolResult
	_ = json.Unmarshal(raw, &wire)

	out := &ToolResult{RawText: "{}", IsError: wire.IsError}
	for _, c := range wire.Content {
		if c.Type == "text" {
			out.RawText = c.Text
			break
		}
	}
	out.DisplaySummary = summarize(out.RawText)

	if wire.StructuredContent != nil {
		out.Structured = wire.StructuredContent
		return out
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(out.RawText), &payload); err == nil {
		out.Structured = payload
	}
	return out
}

// summarize collapses text to one line and truncates it on a rune boundary.
func summarize(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if r := []rune(s); len(r) > displaySummaryMax {
		s = string(r[:displaySummaryMax]) + "..."
	}
	return s
}
