package agent

import (
	"context"
	"log/slog"

	"github.com/relayhub/relay-gateway/internal/channel"
	"github.com/relayhub/relay-gateway/internal/dispatch"
	"github.com/relayhub/relay-gateway/internal/routing"
	"github.com/relayhub/relay-gateway/internal/session"
)

// Loop consumes inbound channel messages and runs each through the routing
// pipeline: classify, dispatch, reply.
type Loop struct {
	policy     *routing.Policy
	dispatcher *dispatch.Dispatcher
	sessions   *session.Store
	logger     *slog.Logger
}

// NewLoop creates an agent loop.
func NewLoop(policy *routing.Policy, dispatcher *dispatch.Dispatcher, sessions *session.Store, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{policy: policy, dispatcher: dispatcher, sessions: sessions, logger: logger}
}

// Run processes messages from the adapter until its incoming channel closes
// or the context is done. Each message is handled independently.
func (l *Loop) Run(ctx context.Context, adapter channel.Adapter) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-adapter.Incoming():
			if !ok {
				return
			}
			go l.Process(ctx, msg, adapter)
		}
	}
}

// Process routes a single message and sends the reply back on the adapter.
func (l *Loop) Process(ctx context.Context, msg *channel.Message, adapter channel.Adapter) {
	l.sessions.AddUserMessage(msg.UserID, msg.Content)

	decision := l.policy.Route(ctx, msg.Content)
	res, err := l.dispatcher.Dispatch(ctx, decision.Model, msg.Content)
	if err != nil {
		l.logger.Error("dispatch failed", "channel", adapter.Name(), "model", decision.Model, "error", err)
		l.sessions.AddAssistantMessage(msg.UserID, dispatch.FailureReply, "", "", nil)
		adapter.SendMessage(msg.UserID, &channel.Response{Reply: dispatch.FailureReply})
		return
	}

	perf := res.Performance
	l.sessions.AddAssistantMessage(msg.UserID, res.Reply, res.Model, decision.Reasoning, &perf)
	adapter.SendMessage(msg.UserID, &channel.Response{
		Reply:       res.Reply,
		Model:       res.Model,
		Reasoning:   decision.Reasoning,
		Performance: &perf,
	})
}
