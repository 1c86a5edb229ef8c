package thread

import (
	"context"

	"gorm.io/gorm"

	"github.com/ThunderboltDev/Resound/internal/common"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// CreateThread allocates an empty thread owned by ownerKey and returns
// its id. The id is assigned once and never reassigned.
func (r *Repo) CreateThread(ctx context.Context, ownerKey string) (string, error) {
	tid, err := common.NewULID()
	if err != nil {
		return "", err
	}
	t := &Thread{ThreadID: tid, OwnerKey: ownerKey}
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return "", err
	}
	return tid, nil
}

func (r *Repo) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	var t Thread
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// AppendTurn appends one turn. Ordering is whatever order the store
// accepts the writes in; there is no cross-writer coordination.
func (r *Repo) AppendTurn(ctx context.Context, threadID, role, content string) (*Turn, error) {
	turn := &Turn{ThreadID: threadID, Role: role, Content: content}
	if err := r.db.WithContext(ctx).Create(turn).Error; err != nil {
		return nil, err
	}
	return turn, nil
}

// ListTurns returns turns in DESC id order (newest -> oldest) for
// reverse-chronological page loading; "load more" passes the last id
// back as beforeID. Empty-content turns are filtered out of the feed
// but remain in storage.
func (r *Repo) ListTurns(ctx context.Context, threadID string, limit int, beforeID uint64) ([]Turn, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := r.db.WithContext(ctx).
		Where("thread_id = ? AND content <> ''", threadID).
		Order("id DESC").
		Limit(limit)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var turns []Turn
	if err := q.Find(&turns).Error; err != nil {
		return nil, err
	}
	return turns, nil
}

// RecentTurns returns the newest `limit` turns in ASC order (oldest ->
// newest), including empty tool-only turns. This is the agent's context
// window.
func (r *Repo) RecentTurns(ctx context.Context, threadID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 40
	}
	var desc []Turn
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id DESC").
		Limit(limit).
		Find(&desc).Error; err != nil {
		return nil, err
	}

	// reverse to ASC
	asc := make([]Turn, 0, len(desc))
	for i := len(desc) - 1; i >= 0; i-- {
		asc = append(asc, desc[i])
	}
	return asc, nil
}

// LastTurn returns the newest non-empty turn, or nil for an empty thread.
// Used for conversation list previews.
func (r *Repo) LastTurn(ctx context.Context, threadID string) (*Turn, error) {
	turns, err := r.ListTurns(ctx, threadID, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, nil
	}
	return &turns[0], nil
}
