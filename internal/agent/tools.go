package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ThunderboltDev/Resound/internal/ai"
	"github.com/ThunderboltDev/Resound/internal/conversation"
	"github.com/ThunderboltDev/Resound/internal/events"
	"github.com/ThunderboltDev/Resound/internal/thread"
)

// Tool names as exposed to the model.
const (
	ToolSearch   = "search"
	ToolResolve  = "resolveConversation"
	ToolEscalate = "escalateConversation"
)

// Fallback strings returned to the model when a tool cannot complete.
// Tool failures degrade to agent-visible text; they never abort the turn.
const (
	msgConversationNotFound = "Conversation not found."
	msgSearchUnavailable    = "The knowledge base is temporarily unavailable."
	msgStatusUpdateFailed   = "Failed to update the conversation status."
	msgResolved             = "The conversation has been marked as resolved."
	msgEscalated            = "The conversation has been escalated to a human operator."
)

// tool couples the definition sent to the provider with its executor.
// invoke returns the tool-result text plus whether the call closed the
// conversation (resolve/escalate end the agent's turn).
type tool struct {
	def    ai.ToolDef
	invoke func(ctx context.Context, args json.RawMessage) (result string, closing bool)
}

var searchParams = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "The search query to find relevant information"
		}
	},
	"required": ["query"]
}`)

var emptyParams = json.RawMessage(`{"type": "object", "properties": {}}`)

// tools builds the registry scoped to one thread. Each invoke performs
// at most one state mutation so a duplicated call re-applies cleanly.
func (r *Runner) tools(threadID string) []tool {
	return []tool{
		{
			def: ai.ToolDef{
				Name:        ToolSearch,
				Description: "Search the knowledge base for relevant information to help answer user questions.",
				Parameters:  searchParams,
			},
			invoke: func(ctx context.Context, args json.RawMessage) (string, bool) {
				return r.runSearch(ctx, threadID, args), false
			},
		},
		{
			def: ai.ToolDef{
				Name:        ToolResolve,
				Description: "Mark this conversation as resolved when the user's issue is solved.",
				Parameters:  emptyParams,
			},
			invoke: func(ctx context.Context, args json.RawMessage) (string, bool) {
				return r.setStatus(ctx, threadID, conversation.TriggerAgentResolve)
			},
		},
		{
			def: ai.ToolDef{
				Name:        ToolEscalate,
				Description: "Escalate this conversation to a human operator when you cannot help.",
				Parameters:  emptyParams,
			},
			invoke: func(ctx context.Context, args json.RawMessage) (string, bool) {
				return r.setStatus(ctx, threadID, conversation.TriggerAgentEscalate)
			},
		},
	}
}

// runSearch resolves the organization from the thread, queries the
// knowledge index in that namespace, and synthesizes a concise answer
// through the interpreter pass. Every failure degrades to text.
func (r *Runner) runSearch(ctx context.Context, threadID string, args json.RawMessage) string {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil || strings.TrimSpace(in.Query) == "" {
		return "Missing search query."
	}

	conv, err := r.convs.GetByThreadID(ctx, threadID)
	if err != nil {
		return msgConversationNotFound
	}

	res, err := r.search.Search(ctx, conv.OrganizationID, in.Query, r.searchLimit)
	if err != nil {
		log.Printf("search tool thread=%s err=%v", threadID, err)
		return msgSearchUnavailable
	}

	titles := make([]string, 0, len(res.Entries))
	for _, e := range res.Entries {
		title := e.Title
		if title == "" {
			title = "*No title found*"
		}
		titles = append(titles, title)
	}
	contextText := fmt.Sprintf("Found results in %s. Here is the context: \n\n%s",
		strings.Join(titles, ", "), res.Text)

	answer, err := r.interpreter.Chat(ctx, []ai.Message{
		{Role: "system", Content: SearchInterpreterPrompt},
		{Role: "user", Content: fmt.Sprintf("User asked: %q \n\nSearch results: %s", in.Query, contextText)},
	})
	if err != nil {
		// interpreter down: hand the raw context to the agent instead
		log.Printf("search interpreter thread=%s err=%v", threadID, err)
		return contextText
	}

	// persist the synthesized answer as an agent turn so the visitor
	// sees it even if the outer generation adds nothing
	if turn, err := r.threads.AppendTurn(ctx, threadID, thread.RoleAgent, answer); err == nil {
		r.publishTurn(ctx, threadID, turn)
	}
	return answer
}

// setStatus applies one agent-driven transition. The mutation is a
// single status patch; re-applying it is idempotent.
func (r *Runner) setStatus(ctx context.Context, threadID string, trigger conversation.Trigger) (string, bool) {
	conv, err := r.convs.GetByThreadID(ctx, threadID)
	if err != nil {
		return msgConversationNotFound, false
	}

	next, err := conversation.Transition(conv.Status, trigger)
	if err != nil {
		return msgStatusUpdateFailed, false
	}
	if err := r.convs.UpdateStatusByThreadID(ctx, threadID, next); err != nil {
		log.Printf("tool status update thread=%s trigger=%s err=%v", threadID, trigger, err)
		return msgStatusUpdateFailed, false
	}

	switch next {
	case conversation.StatusResolved:
		r.publishEvent(ctx, events.TypeResolved, conv)
		return msgResolved, true
	default:
		r.publishEvent(ctx, events.TypeEscalated, conv)
		return msgEscalated, true
	}
}

var errUnknownTool = errors.New("unknown tool")
