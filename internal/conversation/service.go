package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ThunderboltDev/Resound/internal/common"
	"github.com/ThunderboltDev/Resound/internal/events"
	"github.com/ThunderboltDev/Resound/internal/session"
	"github.com/ThunderboltDev/Resound/internal/thread"
)

// AgentRunner produces the agent's reply for one thread, executing its
// tools as it goes. Implemented by internal/agent; tests use fakes.
type AgentRunner interface {
	Reply(ctx context.Context, threadID string) error
}

// Settings resolves per-organization widget configuration.
type Settings interface {
	GreetingFor(ctx context.Context, organizationID string) (string, error)
}

// EventPublisher fans conversation lifecycle events out to the
// notification queue. May be nil (events disabled).
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev events.Event) error
}

// LivePublisher pushes appended turns to live feed subscribers.
// May be nil (live updates disabled).
type LivePublisher interface {
	PublishTurn(ctx context.Context, threadID string, turn *thread.Turn) error
}

// Service is the Conversation Orchestrator: it validates sessions,
// decides whether the agent or a human owns the next reply, and owns
// every status transition.
type Service struct {
	repo     *Repo
	sessions *session.Registry
	threads  *thread.Repo
	runner   AgentRunner
	settings Settings
	eventPub EventPublisher
	livePub  LivePublisher
}

func NewService(repo *Repo, sessions *session.Registry, threads *thread.Repo, runner AgentRunner, settings Settings) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		threads:  threads,
		runner:   runner,
		settings: settings,
	}
}

// WithEvents attaches the AMQP event publisher.
func (s *Service) WithEvents(p EventPublisher) *Service {
	s.eventPub = p
	return s
}

// WithLive attaches the live-update publisher.
func (s *Service) WithLive(p LivePublisher) *Service {
	s.livePub = p
	return s
}

// ConversationView is a list row for the dashboard and the widget
// inbox: the conversation plus its newest turn and visitor session.
type ConversationView struct {
	Conversation
	LastTurn *thread.Turn            `json:"last_turn,omitempty"`
	Session  *session.VisitorSession `json:"visitor_session,omitempty"`
}

// requireSession validates and returns the session, mapping every
// invalid outcome to ErrUnauthorized.
func (s *Service) requireSession(ctx context.Context, sessionID string) (*session.VisitorSession, error) {
	res, err := s.sessions.Validate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, ErrUnauthorized
	}
	return res.Session, nil
}

// CreateConversation starts a new conversation for a valid session:
// empty thread, status unresolved, and the organization's greeting (if
// configured) seeded as the first agent turn.
func (s *Service) CreateConversation(ctx context.Context, organizationID, sessionID string) (*Conversation, error) {
	sess, err := s.requireSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OrganizationID != organizationID {
		return nil, ErrUnauthorized
	}

	threadID, err := s.threads.CreateThread(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	if s.settings != nil {
		greeting, err := s.settings.GreetingFor(ctx, organizationID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if greeting != "" {
			if _, err := s.threads.AppendTurn(ctx, threadID, thread.RoleAgent, greeting); err != nil {
				return nil, err
			}
		}
	}

	cid, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	conv := &Conversation{
		ConversationID: cid,
		OrganizationID: organizationID,
		SessionID:      sessionID,
		ThreadID:       threadID,
		Status:         StatusUnresolved,
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// SubmitVisitorMessage re-validates the session on every call, appends
// the visitor turn, and invokes the agent when the conversation is
// AI-owned. Agent failures leave the visitor turn persisted with no
// reply; the widget treats the missing reply as pending.
func (s *Service) SubmitVisitorMessage(ctx context.Context, conversationID, sessionID, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if _, err := s.requireSession(ctx, sessionID); err != nil {
		return err
	}

	conv, err := s.repo.GetByConversationID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.SessionID != sessionID {
		return ErrUnauthorized
	}

	// resolved conversations reject visitor writes before any append
	if _, err := Transition(conv.Status, TriggerVisitorMessage); err != nil {
		return err
	}

	turn, err := s.threads.AppendTurn(ctx, conv.ThreadID, thread.RoleVisitor, text)
	if err != nil {
		return err
	}
	s.publishTurn(ctx, conv.ThreadID, turn)

	if !conv.Status.AgentOwned() {
		// escalated: a human owns the reply, the agent stays silent
		return nil
	}

	// Synchronous agent invocation. A concurrent operator takeover does
	// not abort this work; its reply still lands (accepted bounded
	// inconsistency window).
	if err := s.runner.Reply(ctx, conv.ThreadID); err != nil {
		return fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}
	return nil
}

// SubmitOperatorMessage forces escalation before the message append is
// observable, then appends the operator turn. The agent is never
// invoked on this path.
func (s *Service) SubmitOperatorMessage(ctx context.Context, organizationID, conversationID, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	conv, err := s.repo.GetByConversationID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.OrganizationID != organizationID {
		return ErrUnauthorized
	}

	next, err := Transition(conv.Status, TriggerOperatorMessage)
	if err != nil {
		return err
	}
	if next != conv.Status {
		if err := s.repo.UpdateStatus(ctx, conversationID, next); err != nil {
			return err
		}
		s.publishEvent(ctx, events.TypeEscalated, conv)
	}

	turn, err := s.threads.AppendTurn(ctx, conv.ThreadID, thread.RoleOperator, text)
	if err != nil {
		return err
	}
	s.publishTurn(ctx, conv.ThreadID, turn)
	return nil
}

// SetStatus is the operator's manual override. Any of the three values
// is accepted regardless of current state; the dashboard enforces the
// cycle order, not the backend.
func (s *Service) SetStatus(ctx context.Context, organizationID, conversationID string, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	conv, err := s.repo.GetByConversationID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.OrganizationID != organizationID {
		return ErrUnauthorized
	}

	if err := s.repo.UpdateStatus(ctx, conversationID, status); err != nil {
		return err
	}

	switch status {
	case StatusEscalated:
		s.publishEvent(ctx, events.TypeEscalated, conv)
	case StatusResolved:
		s.publishEvent(ctx, events.TypeResolved, conv)
	}
	return nil
}

// GetForVisitor loads a conversation only if it belongs to the session.
func (s *Service) GetForVisitor(ctx context.Context, conversationID, sessionID string) (*Conversation, error) {
	if _, err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	conv, err := s.repo.GetByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.SessionID != sessionID {
		return nil, ErrUnauthorized
	}
	return conv, nil
}

// GetForOperator loads a conversation within the operator's
// organization scope, with the visitor session attached (the session
// may be expired; it is still shown).
func (s *Service) GetForOperator(ctx context.Context, organizationID, conversationID string) (*ConversationView, error) {
	conv, err := s.repo.GetByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.OrganizationID != organizationID {
		return nil, ErrNotFound
	}

	view := &ConversationView{Conversation: *conv}
	if sess, err := s.sessions.Get(ctx, conv.SessionID); err == nil {
		view.Session = sess
	}
	if last, err := s.threads.LastTurn(ctx, conv.ThreadID); err == nil {
		view.LastTurn = last
	}
	return view, nil
}

// ListForOperator pages the dashboard inbox, newest first, optionally
// filtered by status. Each row carries a preview turn and the session.
func (s *Service) ListForOperator(ctx context.Context, organizationID string, status *Status, limit int, beforeID uint64) ([]ConversationView, error) {
	convs, err := s.repo.ListByOrganization(ctx, organizationID, status, limit, beforeID)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, convs, true), nil
}

// ListForSession pages the widget inbox for one visitor session.
func (s *Service) ListForSession(ctx context.Context, sessionID string, limit int, beforeID uint64) ([]ConversationView, error) {
	if _, err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	convs, err := s.repo.ListBySession(ctx, sessionID, limit, beforeID)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, convs, false), nil
}

// ListVisitorTurns returns the rendered feed page for the widget.
func (s *Service) ListVisitorTurns(ctx context.Context, conversationID, sessionID string, limit int, beforeID uint64) ([]thread.Turn, error) {
	conv, err := s.GetForVisitor(ctx, conversationID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.threads.ListTurns(ctx, conv.ThreadID, limit, beforeID)
}

// ListOperatorTurns returns the rendered feed page for the dashboard.
func (s *Service) ListOperatorTurns(ctx context.Context, organizationID, conversationID string, limit int, beforeID uint64) ([]thread.Turn, error) {
	view, err := s.GetForOperator(ctx, organizationID, conversationID)
	if err != nil {
		return nil, err
	}
	return s.threads.ListTurns(ctx, view.ThreadID, limit, beforeID)
}

func (s *Service) decorate(ctx context.Context, convs []Conversation, withSession bool) []ConversationView {
	views := make([]ConversationView, 0, len(convs))
	for i := range convs {
		view := ConversationView{Conversation: convs[i]}
		if last, err := s.threads.LastTurn(ctx, convs[i].ThreadID); err == nil {
			view.LastTurn = last
		}
		if withSession {
			if sess, err := s.sessions.Get(ctx, convs[i].SessionID); err == nil {
				view.Session = sess
			}
		}
		views = append(views, view)
	}
	return views
}

func (s *Service) publishEvent(ctx context.Context, eventType string, conv *Conversation) {
	if s.eventPub == nil {
		return
	}
	ev := events.Event{
		Type:           eventType,
		ConversationID: conv.ConversationID,
		OrganizationID: conv.OrganizationID,
		ThreadID:       conv.ThreadID,
		At:             time.Now(),
	}
	if err := s.eventPub.PublishEvent(ctx, ev); err != nil {
		// notifications are best-effort; the transition already happened
		log.Printf("publish event type=%s conversation=%s err=%v", eventType, conv.ConversationID, err)
	}
}

func (s *Service) publishTurn(ctx context.Context, threadID string, turn *thread.Turn) {
	if s.livePub == nil || turn == nil {
		return
	}
	if err := s.livePub.PublishTurn(ctx, threadID, turn); err != nil {
		log.Printf("publish turn thread=%s err=%v", threadID, err)
	}
}
