// Package session holds per-conversation state: the rolling message
// history and the tool-result context the router uses for follow-ups.
package session

import "time"

// FollowUpWindow is how long a recorded tool result stays eligible for
// follow-up questions like "show me the details".
const FollowUpWindow = 30 * time.Minute

// Intents recognized by the router and orchestrator.
const (
	IntentBalance    = "balance_query"
	IntentCharitable = "charitable_summary"
)

// ToolCallRecord captures one tool invocation for display and audit.
// Summary is the one-line result digest shown in traces.
type ToolCallRecord struct {
	ServerID string
	Tool     string
	Input    map[string]any
	Output   map[string]any
	Summary  string
}

// IntentResult is a tool payload remembered under an intent.
type IntentResult struct {
	Payload map[string]any
	At      time.Time
}

// Context is the conversation-scoped tool memory. It is not safe for
// concurrent use; the owning Session serializes access.
type Context struct {
	LastIntent       string
	EnabledServerIDs []string

	results map[string]IntentResult
}

// RecordResult remembers a payload under an intent and marks that intent
// as the most recent one.
func (c *Context) RecordResult(intent string, payload map[string]any, at time.Time) {
	if c.results == nil {
		c.results = make(map[string]IntentResult)
	}
	c.results[intent] = IntentResult{Payload: payload, At: at}
	c.LastIntent = intent
}

// Recent returns the remembered result for an intent if it is still inside
// the follow-up window.
func (c *Context) Recent(intent string, now time.Time) (IntentResult, bool) {
	res, ok := c.results[intent]
	if !ok {
		return IntentResult{}, false
	}
	if now.Sub(res.At) > FollowUpWindow {
		return IntentResult{}, false
	}
	return res, true
}

// Reset clears all remembered results and the last intent. The enabled
// server list survives a reset.
func (c *Context) Reset() {
	c.LastIntent = ""
	c.results = nil
}
