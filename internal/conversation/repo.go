package conversation

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, c *Conversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) GetByConversationID(ctx context.Context, conversationID string) (*Conversation, error) {
	var c Conversation
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repo) GetByThreadID(ctx context.Context, threadID string) (*Conversation, error) {
	var c Conversation
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// UpdateStatus patches the status column only. No version check: the
// state space is small and every transition is idempotent under
// re-application, so last write wins.
func (r *Repo) UpdateStatus(ctx context.Context, conversationID string, status Status) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("conversation_id = ?", conversationID).
		Update("status", status).Error
}

func (r *Repo) UpdateStatusByThreadID(ctx context.Context, threadID string, status Status) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("thread_id = ?", threadID).
		Update("status", status).Error
}

// ListByOrganization returns conversations newest-first, optionally
// filtered by status. beforeID pages through older rows.
func (r *Repo) ListByOrganization(ctx context.Context, organizationID string, status *Status, limit int, beforeID uint64) ([]Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("id DESC").
		Limit(limit)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var convs []Conversation
	if err := q.Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

// ListBySession returns a visitor session's conversations newest-first.
func (r *Repo) ListBySession(ctx context.Context, sessionID string, limit int, beforeID uint64) ([]Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var convs []Conversation
	if err := q.Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}
