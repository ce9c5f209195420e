// Package chat answers one user message at a time: the deterministic
// router gets first refusal, everything else goes through the model loop.
package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/ledgerchat/ledgerchat/internal/llm"
	"github.com/ledgerchat/ledgerchat/internal/orchestrator"
	"github.com/ledgerchat/ledgerchat/internal/registry"
	"github.com/ledgerchat/ledgerchat/internal/router"
	"github.com/ledgerchat/ledgerchat/internal/session"
)

const systemPrompt = "You are a careful household-finance assistant. You help track " +
	"HSA-eligible medical expenses and charitable donations. Use the available tools " +
	"to answer questions about the user's ledgers; never invent amounts. Keep replies short."

// Request is one incoming user message.
type Request struct {
	SessionID string
	Message   string
	// EnabledServerIDs overrides which tool servers this chat may use.
	// nil keeps the session's current list (or the defaults).
	EnabledServerIDs []string
}

// Response is the assistant's turn.
type Response struct {
	SessionID string
	Reply     string
	Title     string
	ToolCalls []session.ToolCallRecord
}

// Service owns the router-first-then-model flow.
type Service struct {
	reg      *registry.Registry
	model    orchestrator.ModelCaller
	factory  orchestrator.ClientFactory
	sessions *session.Manager
	log      *slog.Logger

	now func() time.Time
}

func NewService(reg *registry.Registry, model orchestrator.ModelCaller, factory orchestrator.ClientFactory, sessions *session.Manager, log *slog.Logger) *Service {
	return &Service{
		reg:      reg,
		model:    model,
		factory:  factory,
		sessions: sessions,
		log:      log,
		now:      time.Now,
	}
}

// Handle processes one message. Tool servers started for this turn are
// stopped before it returns, no matter how the turn went.
func (s *Service) Handle(ctx context.Context, req Request) (*Response, error) {
	sess := s.sessions.Get(req.SessionID)
	sess.Lock()
	defer sess.Unlock()

	requested := req.EnabledServerIDs
	if requested == nil && sess.Ctx.EnabledServerIDs != nil {
		requested = sess.Ctx.EnabledServerIDs
	}
	sess.Ctx.EnabledServerIDs = s.reg.NormalizeEnabledServerIDs(requested)

	if sess.Title == "" {
		sess.Title = InitialTitle(req.Message)
	}
	sess.Append("user", req.Message, s.now())

	turn := newTurnClients(s.factory, s.log)
	defer turn.StopAll()

	reply, calls, err := s.answer(ctx, turn, sess, req.Message)
	if err != nil {
		return nil, err
	}

	sess.Append("assistant", reply, s.now())
	return &Response{
		SessionID: sess.ID,
		Reply:     reply,
		Title:     sess.Title,
		ToolCalls: calls,
	}, nil
}

func (s *Service) answer(ctx context.Context, turn *turnClients, sess *session.Session, msg string) (string, []session.ToolCallRecord, error) {
	r := router.New(s.reg, turn, s.log)
	routed, err := r.Route(ctx, msg, &sess.Ctx)
	if err != nil {
		// A routed tool failed; the model loop gets a fresh shot with its
		// own synthetic-failure handling.
		s.log.Warn("router tool failure, deferring to model", "error", err)
		routed = &router.Result{}
	}
	if routed.Handled {
		return routed.Reply, routed.ToolCalls, nil
	}

	loop := orchestrator.New(s.model, s.reg, s.factory, s.log)
	out, err := loop.Run(ctx, s.transcript(sess), &sess.Ctx)
	if err != nil {
		return "", nil, err
	}
	return out.Reply, out.ToolCalls, nil
}

// transcript builds the model conversation: system prompt plus the stored
// history, which already ends with the current user message.
func (s *Service) transcript(sess *session.Session) []llm.Message {
	msgs := []llm.Message{{Role: "system", Content: systemPrompt}}
	for _, m := range sess.Messages() {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	return msgs
}

// Reset clears a session's tool context and history metadata for /reset.
func (s *Service) Reset(sessionID string) {
	sess := s.sessions.Get(sessionID)
	sess.Lock()
	defer sess.Unlock()
	sess.Ctx.Reset()
}
