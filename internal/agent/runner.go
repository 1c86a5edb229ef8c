// Package agent runs the retrieval-augmented support agent: one
// generate-with-tools loop per visitor message, with each tool scoped
// to a single well-defined state mutation.
package agent

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/ThunderboltDev/Resound/internal/ai"
	"github.com/ThunderboltDev/Resound/internal/conversation"
	"github.com/ThunderboltDev/Resound/internal/events"
	"github.com/ThunderboltDev/Resound/internal/knowledge"
	"github.com/ThunderboltDev/Resound/internal/thread"
)

// EventPublisher and LivePublisher mirror the orchestrator's optional
// side channels; either may be nil.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev events.Event) error
}

type LivePublisher interface {
	PublishTurn(ctx context.Context, threadID string, turn *thread.Turn) error
}

// Runner drives the agent for one thread at a time. It is stateless
// across invocations; all state lives in the stores.
type Runner struct {
	provider    ai.ToolProvider
	interpreter ai.Provider
	threads     *thread.Repo
	convs       *conversation.Repo
	search      knowledge.Searcher

	window      int
	maxRounds   int
	searchLimit int

	eventPub EventPublisher
	livePub  LivePublisher
}

func NewRunner(provider ai.ToolProvider, interpreter ai.Provider, threads *thread.Repo, convs *conversation.Repo, search knowledge.Searcher, window, maxRounds, searchLimit int) *Runner {
	if window <= 0 || window > 200 {
		window = 40
	}
	if maxRounds <= 0 {
		maxRounds = 5
	}
	if searchLimit <= 0 {
		searchLimit = 5
	}
	return &Runner{
		provider:    provider,
		interpreter: interpreter,
		threads:     threads,
		convs:       convs,
		search:      search,
		window:      window,
		maxRounds:   maxRounds,
		searchLimit: searchLimit,
	}
}

func (r *Runner) WithEvents(p EventPublisher) *Runner {
	r.eventPub = p
	return r
}

func (r *Runner) WithLive(p LivePublisher) *Runner {
	r.livePub = p
	return r
}

// Reply generates the agent's turn for the thread, letting the model
// call tools between generation rounds. Once a tool closes the
// conversation (resolve/escalate), no further agent text is appended
// within this turn. Provider errors propagate to the caller; the work
// is never cancelled by concurrent status changes.
func (r *Runner) Reply(ctx context.Context, threadID string) error {
	history, err := r.threads.RecentTurns(ctx, threadID, r.window)
	if err != nil {
		return err
	}

	msgs := make([]ai.Message, 0, len(history)+1)
	msgs = append(msgs, ai.Message{Role: "system", Content: SupportAgentPrompt})
	for _, t := range history {
		if t.Content == "" {
			continue
		}
		msgs = append(msgs, ai.Message{Role: providerRole(t.Role), Content: t.Content})
	}

	tools := r.tools(threadID)
	defs := make([]ai.ToolDef, 0, len(tools))
	byName := make(map[string]tool, len(tools))
	for _, t := range tools {
		defs = append(defs, t.def)
		byName[t.def.Name] = t
	}

	start := time.Now()
	for round := 0; round < r.maxRounds; round++ {
		res, err := r.provider.ChatTools(ctx, msgs, defs)
		if err != nil {
			// upstream failure: not retried here; the visitor turn stays
			// persisted without a reply
			return err
		}

		if len(res.ToolCalls) == 0 {
			if strings.TrimSpace(res.Content) != "" {
				turn, err := r.threads.AppendTurn(ctx, threadID, thread.RoleAgent, res.Content)
				if err != nil {
					return err
				}
				r.publishTurn(ctx, threadID, turn)
			}
			return nil
		}

		msgs = append(msgs, ai.Message{Role: "assistant", Content: res.Content, ToolCalls: res.ToolCalls})

		closed := false
		for _, call := range res.ToolCalls {
			t, ok := byName[call.Name]
			var result string
			var closing bool
			if !ok {
				result = errUnknownTool.Error() + ": " + call.Name
			} else {
				result, closing = t.invoke(ctx, call.Arguments)
			}
			msgs = append(msgs, ai.Message{Role: "tool", Content: result, ToolCallID: call.ID})
			if closing {
				closed = true
			}
		}

		if closed {
			// closing tool call ends the turn; no trailing agent text
			return nil
		}
	}

	log.Printf("agent reply thread=%s exhausted %d tool rounds cost=%s", threadID, r.maxRounds, time.Since(start))
	return nil
}

// Enhance rewrites an operator's draft reply through the provider.
// Nothing is persisted; the operator decides what to send.
func Enhance(ctx context.Context, p ai.Provider, draft string) (string, error) {
	return p.Chat(ctx, []ai.Message{
		{Role: "system", Content: OperatorEnhancementPrompt},
		{Role: "user", Content: draft},
	})
}

func providerRole(turnRole string) string {
	if turnRole == thread.RoleVisitor {
		return "user"
	}
	// agent and operator turns both read as the support side
	return "assistant"
}

func (r *Runner) publishEvent(ctx context.Context, eventType string, conv *conversation.Conversation) {
	if r.eventPub == nil {
		return
	}
	ev := events.Event{
		Type:           eventType,
		ConversationID: conv.ConversationID,
		OrganizationID: conv.OrganizationID,
		ThreadID:       conv.ThreadID,
		At:             time.Now(),
	}
	if err := r.eventPub.PublishEvent(ctx, ev); err != nil {
		log.Printf("agent publish event type=%s thread=%s err=%v", eventType, conv.ThreadID, err)
	}
}

func (r *Runner) publishTurn(ctx context.Context, threadID string, turn *thread.Turn) {
	if r.livePub == nil || turn == nil {
		return
	}
	if err := r.livePub.PublishTurn(ctx, threadID, turn); err != nil {
		log.Printf("agent publish turn thread=%s err=%v", threadID, err)
	}
}
