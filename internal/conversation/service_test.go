package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/ThunderboltDev/Resound/internal/events"
	"github.com/ThunderboltDev/Resound/internal/session"
	"github.com/ThunderboltDev/Resound/internal/thread"
)

type fakeRunner struct {
	threads []string
	err     error
}

func (f *fakeRunner) Reply(ctx context.Context, threadID string) error {
	f.threads = append(f.threads, threadID)
	return f.err
}

type fakeSettings struct {
	greeting string
}

func (f *fakeSettings) GreetingFor(ctx context.Context, organizationID string) (string, error) {
	return f.greeting, nil
}

type fakeBus struct {
	events []events.Event
}

func (f *fakeBus) PublishEvent(ctx context.Context, ev events.Event) error {
	f.events = append(f.events, ev)
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&session.VisitorSession{}, &thread.Thread{}, &thread.Turn{}, &Conversation{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type testEnv struct {
	svc      *Service
	repo     *Repo
	threads  *thread.Repo
	sessions *session.Registry
	runner   *fakeRunner
	bus      *fakeBus
	now      time.Time
	clock    *time.Time
}

func newTestEnv(t *testing.T, greeting string) *testEnv {
	t.Helper()
	db := openTestDB(t)

	now := time.Now()
	clock := &now
	sessions := session.NewRegistry(db).WithClock(func() time.Time { return *clock })

	repo := NewRepo(db)
	threads := thread.NewRepo(db)
	runner := &fakeRunner{}
	bus := &fakeBus{}

	svc := NewService(repo, sessions, threads, runner, &fakeSettings{greeting: greeting}).WithEvents(bus)
	return &testEnv{
		svc:      svc,
		repo:     repo,
		threads:  threads,
		sessions: sessions,
		runner:   runner,
		bus:      bus,
		now:      now,
		clock:    clock,
	}
}

func (e *testEnv) newSession(t *testing.T, orgID string) string {
	t.Helper()
	sid, err := e.sessions.Create(context.Background(), orgID, "Visitor", "", session.Metadata{})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sid
}

func (e *testEnv) newConversation(t *testing.T, orgID, sid string) *Conversation {
	t.Helper()
	conv, err := e.svc.CreateConversation(context.Background(), orgID, sid)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conv
}

func TestCreateConversation_SeedsGreeting(t *testing.T) {
	env := newTestEnv(t, "Hi! How can we help?")
	sid := env.newSession(t, "org_a")

	conv := env.newConversation(t, "org_a", sid)
	if conv.Status != StatusUnresolved {
		t.Fatalf("status = %s, want unresolved", conv.Status)
	}

	turns, err := env.threads.ListTurns(context.Background(), conv.ThreadID, 10, 0)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want the greeting", len(turns))
	}
	if turns[0].Role != thread.RoleAgent || turns[0].Content != "Hi! How can we help?" {
		t.Fatalf("unexpected greeting turn: %+v", turns[0])
	}
}

func TestCreateConversation_NoGreeting(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")

	conv := env.newConversation(t, "org_a", sid)
	turns, err := env.threads.ListTurns(context.Background(), conv.ThreadID, 10, 0)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("got %d turns, want empty thread", len(turns))
	}
}

func TestCreateConversation_OrgMismatch(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")

	if _, err := env.svc.CreateConversation(context.Background(), "org_b", sid); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestSubmitVisitorMessage_InvokesAgent(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")
	conv := env.newConversation(t, "org_a", sid)

	if err := env.svc.SubmitVisitorMessage(context.Background(), conv.ConversationID, sid, "How do I reset my password?"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if len(env.runner.threads) != 1 || env.runner.threads[0] != conv.ThreadID {
		t.Fatalf("agent invocations = %v, want [%s]", env.runner.threads, conv.ThreadID)
	}

	turns, _ := env.threads.ListTurns(context.Background(), conv.ThreadID, 10, 0)
	if len(turns) != 1 || turns[0].Role != thread.RoleVisitor {
		t.Fatalf("expected one visitor turn, got %+v", turns)
	}
}

func TestSubmitVisitorMessage_EscalatedSkipsAgent(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")
	conv := env.newConversation(t, "org_a", sid)

	if err := env.repo.UpdateStatus(context.Background(), conv.ConversationID, StatusEscalated); err != nil {
		t.Fatalf("update status: %v", err)
	}

	if err := env.svc.SubmitVisitorMessage(context.Background(), conv.ConversationID, sid, "Anyone there?"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(env.runner.threads) != 0 {
		t.Fatalf("agent should stay silent on escalated conversations")
	}

	turns, _ := env.threads.ListTurns(context.Background(), conv.ThreadID, 10, 0)
	if len(turns) != 1 {
		t.Fatalf("visitor turn should still append, got %d turns", len(turns))
	}
}

func TestSubmitVisitorMessage_ResolvedRejected(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")
	conv := env.newConversation(t, "org_a", sid)

	if err := env.repo.UpdateStatus(context.Background(), conv.ConversationID, StatusResolved); err != nil {
		t.Fatalf("update status: %v", err)
	}

	if err := env.svc.SubmitVisitorMessage(context.Background(), conv.ConversationID, sid, "One more thing"); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}

	// rejected before any append
	turns, _ := env.threads.ListTurns(context.Background(), conv.ThreadID, 10, 0)
	if len(turns) != 0 {
		t.Fatalf("no turn should persist on a resolved conversation, got %d", len(turns))
	}
}

func TestSubmitVisitorMessage_Empty(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")
	conv := env.newConversation(t, "org_a", sid)

	if err := env.svc.SubmitVisitorMessage(context.Background(), conv.ConversationID, sid, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
}

func TestSubmitVisitorMessage_ExpiredSession(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")
	conv := env.newConversation(t, "org_a", sid)

	*env.clock = env.now.Add(session.SessionTTL + time.Minute)

	if err := env.svc.SubmitVisitorMessage(context.Background(), conv.ConversationID, sid, "hello?"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if len(env.runner.threads) != 0 {
		t.Fatalf("agent must not run for an expired session")
	}
}

func TestSubmitVisitorMessage_AgentFailure(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")
	conv := env.newConversation(t, "org_a", sid)

	env.runner.err = errors.New("provider down")

	err := env.svc.SubmitVisitorMessage(context.Background(), conv.ConversationID, sid, "help")
	if !errors.Is(err, ErrAgentUnavailable) {
		t.Fatalf("err = %v, want ErrAgentUnavailable", err)
	}

	// the visitor turn survived the agent failure
	turns, _ := env.threads.ListTurns(context.Background(), conv.ThreadID, 10, 0)
	if len(turns) != 1 || turns[0].Role != thread.RoleVisitor {
		t.Fatalf("visitor turn should persist, got %+v", turns)
	}
}

func TestSubmitVisitorMessage_WrongSession(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")
	other := env.newSession(t, "org_a")
	conv := env.newConversation(t, "org_a", sid)

	if err := env.svc.SubmitVisitorMessage(context.Background(), conv.ConversationID, other, "hi"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestSubmitOperatorMessage_EscalatesFirst(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")
	conv := env.newConversation(t, "org_a", sid)

	if err := env.svc.SubmitOperatorMessage(context.Background(), "org_a", conv.ConversationID, "Taking over."); err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := env.repo.GetByConversationID(context.Background(), conv.ConversationID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusEscalated {
		t.Fatalf("status = %s, want escalated", got.Status)
	}
	if len(env.runner.threads) != 0 {
		t.Fatalf("operator path must never invoke the agent")
	}
	if len(env.bus.events) != 1 || env.bus.events[0].Type != events.TypeEscalated {
		t.Fatalf("expected one escalated event, got %+v", env.bus.events)
	}

	turns, _ := env.threads.ListTurns(context.Background(), conv.ThreadID, 10, 0)
	if len(turns) != 1 || turns[0].Role != thread.RoleOperator {
		t.Fatalf("expected operator turn, got %+v", turns)
	}
}

func TestSubmitOperatorMessage_ReopensResolved(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")
	conv := env.newConversation(t, "org_a", sid)

	if err := env.repo.UpdateStatus(context.Background(), conv.ConversationID, StatusResolved); err != nil {
		t.Fatalf("update status: %v", err)
	}

	if err := env.svc.SubmitOperatorMessage(context.Background(), "org_a", conv.ConversationID, "Following up."); err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, _ := env.repo.GetByConversationID(context.Background(), conv.ConversationID)
	if got.Status != StatusEscalated {
		t.Fatalf("status = %s, want escalated (reopened)", got.Status)
	}
}

func TestSubmitOperatorMessage_OrgScope(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")
	conv := env.newConversation(t, "org_a", sid)

	if err := env.svc.SubmitOperatorMessage(context.Background(), "org_b", conv.ConversationID, "hi"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestSubmitOperatorMessage_StaysEscalated(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")
	conv := env.newConversation(t, "org_a", sid)

	if err := env.svc.SubmitOperatorMessage(context.Background(), "org_a", conv.ConversationID, "first"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := env.svc.SubmitOperatorMessage(context.Background(), "org_a", conv.ConversationID, "second"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// only the transition publishes, not the repeat message
	if len(env.bus.events) != 1 {
		t.Fatalf("expected a single escalated event, got %d", len(env.bus.events))
	}
}

func TestSetStatus(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")
	conv := env.newConversation(t, "org_a", sid)

	if err := env.svc.SetStatus(context.Background(), "org_a", conv.ConversationID, StatusResolved); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, _ := env.repo.GetByConversationID(context.Background(), conv.ConversationID)
	if got.Status != StatusResolved {
		t.Fatalf("status = %s, want resolved", got.Status)
	}
	if len(env.bus.events) != 1 || env.bus.events[0].Type != events.TypeResolved {
		t.Fatalf("expected resolved event, got %+v", env.bus.events)
	}

	// manual override accepts any valid target, resolved included
	if err := env.svc.SetStatus(context.Background(), "org_a", conv.ConversationID, StatusUnresolved); err != nil {
		t.Fatalf("set status back: %v", err)
	}

	if err := env.svc.SetStatus(context.Background(), "org_a", conv.ConversationID, Status("open")); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestListForOperator_StatusFilter(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")

	first := env.newConversation(t, "org_a", sid)
	second := env.newConversation(t, "org_a", sid)
	if err := env.repo.UpdateStatus(context.Background(), second.ConversationID, StatusEscalated); err != nil {
		t.Fatalf("update status: %v", err)
	}

	st := StatusEscalated
	views, err := env.svc.ListForOperator(context.Background(), "org_a", &st, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 || views[0].ConversationID != second.ConversationID {
		t.Fatalf("filtered list = %+v", views)
	}

	all, err := env.svc.ListForOperator(context.Background(), "org_a", nil, 10, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d conversations, want 2", len(all))
	}
	// newest first
	if all[0].ConversationID != second.ConversationID || all[1].ConversationID != first.ConversationID {
		t.Fatalf("unexpected order: %+v", all)
	}
}

func TestListForSession_ScopedAndDecorated(t *testing.T) {
	env := newTestEnv(t, "Welcome!")
	sid := env.newSession(t, "org_a")
	other := env.newSession(t, "org_a")
	conv := env.newConversation(t, "org_a", sid)
	env.newConversation(t, "org_a", other)

	views, err := env.svc.ListForSession(context.Background(), sid, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 || views[0].ConversationID != conv.ConversationID {
		t.Fatalf("session list = %+v", views)
	}
	if views[0].LastTurn == nil || views[0].LastTurn.Content != "Welcome!" {
		t.Fatalf("expected greeting preview, got %+v", views[0].LastTurn)
	}
}

func TestGetForOperator_KeepsExpiredSessionVisible(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")
	conv := env.newConversation(t, "org_a", sid)

	*env.clock = env.now.Add(session.SessionTTL + time.Hour)

	view, err := env.svc.GetForOperator(context.Background(), "org_a", conv.ConversationID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Session == nil || view.Session.SessionID != sid {
		t.Fatalf("operator view should include the expired session, got %+v", view.Session)
	}
}

func TestGetForOperator_OtherOrgHidden(t *testing.T) {
	env := newTestEnv(t, "")
	sid := env.newSession(t, "org_a")
	conv := env.newConversation(t, "org_a", sid)

	if _, err := env.svc.GetForOperator(context.Background(), "org_b", conv.ConversationID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
