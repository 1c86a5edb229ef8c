package thread

import (
	"context"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Thread{}, &Turn{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedThread(t *testing.T, repo *Repo, contents ...string) string {
	t.Helper()
	tid, err := repo.CreateThread(context.Background(), "org")
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	for i, c := range contents {
		role := RoleVisitor
		if i%2 == 1 {
			role = RoleAgent
		}
		if _, err := repo.AppendTurn(context.Background(), tid, role, c); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	return tid
}

func TestAppendOrdering(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	tid := seedThread(t, repo, "a", "b", "c")

	turns, err := repo.RecentTurns(context.Background(), tid, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	for i := 1; i < len(turns); i++ {
		if turns[i].ID <= turns[i-1].ID {
			t.Fatalf("ordering not monotonic: %d then %d", turns[i-1].ID, turns[i].ID)
		}
	}
	if turns[0].Content != "a" || turns[2].Content != "c" {
		t.Fatalf("unexpected ASC order: %q .. %q", turns[0].Content, turns[2].Content)
	}
}

func TestListTurns_Pagination(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	tid := seedThread(t, repo, "1", "2", "3", "4", "5")

	page1, err := repo.ListTurns(context.Background(), tid, 2, 0)
	if err != nil {
		t.Fatalf("page1: %v", err)
	}
	if len(page1) != 2 || page1[0].Content != "5" || page1[1].Content != "4" {
		t.Fatalf("unexpected page1: %+v", page1)
	}

	// "load more" fetches older turns
	page2, err := repo.ListTurns(context.Background(), tid, 2, page1[len(page1)-1].ID)
	if err != nil {
		t.Fatalf("page2: %v", err)
	}
	if len(page2) != 2 || page2[0].Content != "3" || page2[1].Content != "2" {
		t.Fatalf("unexpected page2: %+v", page2)
	}
}

// Empty tool-only turns stay in storage but never render in the feed.
func TestListTurns_FiltersEmptyContent(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	tid := seedThread(t, repo, "hello")
	if _, err := repo.AppendTurn(context.Background(), tid, RoleAgent, ""); err != nil {
		t.Fatalf("append empty: %v", err)
	}

	feed, err := repo.ListTurns(context.Background(), tid, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("feed should hide empty turns, got %d", len(feed))
	}

	all, err := repo.RecentTurns(context.Background(), tid, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("storage should retain empty turns, got %d", len(all))
	}
}

func TestRecentTurns_WindowBound(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	tid := seedThread(t, repo, "1", "2", "3", "4", "5")

	turns, err := repo.RecentTurns(context.Background(), tid, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected window of 3, got %d", len(turns))
	}
	// newest 3, oldest first
	if turns[0].Content != "3" || turns[2].Content != "5" {
		t.Fatalf("unexpected window: %+v", turns)
	}
}

func TestLastTurn(t *testing.T) {
	repo := NewRepo(openTestDB(t))

	tid, err := repo.CreateThread(context.Background(), "org")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	last, err := repo.LastTurn(context.Background(), tid)
	if err != nil {
		t.Fatalf("last on empty: %v", err)
	}
	if last != nil {
		t.Fatalf("expected nil for empty thread")
	}

	if _, err := repo.AppendTurn(context.Background(), tid, RoleVisitor, "hi"); err != nil {
		t.Fatalf("append: %v", err)
	}
	last, err = repo.LastTurn(context.Background(), tid)
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last == nil || last.Content != "hi" {
		t.Fatalf("unexpected last turn: %+v", last)
	}
}
