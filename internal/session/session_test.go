package session

import (
	"fmt"
	"testing"
	"time"
)

func TestRecentInsideWindow(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	payload := map[string]any{"total_unreimbursed": 42.5, "count": 3.0}

	var ctx Context
	ctx.RecordResult(IntentBalance, payload, now)

	if ctx.LastIntent != IntentBalance {
		t.Fatalf("LastIntent = %q, want %q", ctx.LastIntent, IntentBalance)
	}

	tests := []struct {
		name  string
		later time.Duration
		fresh bool
	}{
		{"29 minutes later", 29 * time.Minute, true},
		{"exactly 30 minutes", 30 * time.Minute, true},
		{"31 minutes later", 31 * time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := ctx.Recent(IntentBalance, now.Add(tt.later))
			if ok != tt.fresh {
				t.Fatalf("Recent() ok = %v, want %v", ok, tt.fresh)
			}
			if tt.fresh && res.Payload["count"] != 3.0 {
				t.Errorf("Payload[count] = %v, want 3", res.Payload["count"])
			}
		})
	}
}

func TestRecentUnknownIntent(t *testing.T) {
	var ctx Context
	if _, ok := ctx.Recent(IntentCharitable, time.Now()); ok {
		t.Fatal("Recent() on empty context = ok, want miss")
	}
}

func TestResetKeepsEnabledServers(t *testing.T) {
	var ctx Context
	ctx.EnabledServerIDs = []string{"hsa_ledger"}
	ctx.RecordResult(IntentBalance, map[string]any{"count": 1.0}, time.Now())

	ctx.Reset()

	if ctx.LastIntent != "" {
		t.Errorf("LastIntent = %q after Reset, want empty", ctx.LastIntent)
	}
	if _, ok := ctx.Recent(IntentBalance, time.Now()); ok {
		t.Error("Recent() after Reset = ok, want miss")
	}
	if len(ctx.EnabledServerIDs) != 1 {
		t.Errorf("EnabledServerIDs = %v, want preserved", ctx.EnabledServerIDs)
	}
}

func TestSessionHistoryTrim(t *testing.T) {
	s := &Session{ID: "test"}
	now := time.Now()
	for i := 0; i < maxMessages+20; i++ {
		s.Append("user", fmt.Sprintf("message %d", i), now)
	}

	msgs := s.Messages()
	if len(msgs) != maxMessages {
		t.Fatalf("len(Messages()) = %d, want %d", len(msgs), maxMessages)
	}
	if msgs[0].Content != "message 20" {
		t.Fatalf("oldest surviving message = %q, want %q", msgs[0].Content, "message 20")
	}
}

func TestManagerGeneratesIDs(t *testing.T) {
	m := NewManager(0)

	a := m.Get("")
	b := m.Get("")
	if a.ID == "" || b.ID == "" {
		t.Fatal("generated session id is empty")
	}
	if a.ID == b.ID {
		t.Fatalf("two fresh sessions share id %q", a.ID)
	}

	again := m.Get(a.ID)
	if again != a {
		t.Fatal("Get(existing id) returned a different session")
	}
}

func TestManagerSweepExpiresIdleSessions(t *testing.T) {
	m := NewManager(30 * time.Minute)
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	stale := m.Get("stale")
	stale.Append("user", "hello", base.Add(-time.Hour))
	fresh := m.Get("fresh")
	fresh.Append("user", "hi", base.Add(-time.Minute))

	removed := m.Sweep()
	if removed != 1 {
		t.Fatalf("Sweep() removed %d, want 1", removed)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d after sweep, want 1", m.Len())
	}
	if got := m.Get("fresh"); got != fresh {
		t.Fatal("fresh session was evicted")
	}
}
