package session

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ThunderboltDev/Resound/internal/common"
)

// Validation failure reasons. An invalid session is not an error: it is
// the signal for the widget to re-run the visitor handshake.
const (
	ReasonNotFound = "not found"
	ReasonExpired  = "expired"
)

// ValidationResult is the outcome of Validate. Callers branch on Valid;
// Reason is set only when Valid is false.
type ValidationResult struct {
	Valid   bool            `json:"valid"`
	Reason  string          `json:"reason,omitempty"`
	Session *VisitorSession `json:"-"`
}

// Registry issues and validates anonymous visitor sessions.
type Registry struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db, now: time.Now}
}

// WithClock overrides the time source. Test hook only.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Create inserts a new session with the fixed 24h TTL and returns its id.
func (r *Registry) Create(ctx context.Context, organizationID, displayName, email string, meta Metadata) (string, error) {
	sid, err := common.NewULID()
	if err != nil {
		return "", err
	}

	now := r.now()
	s := &VisitorSession{
		SessionID:      sid,
		OrganizationID: organizationID,
		DisplayName:    displayName,
		Email:          email,
		Metadata:       meta,
		ExpiresAt:      now.Add(SessionTTL),
		CreatedAt:      now,
	}
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return "", err
	}
	return sid, nil
}

// Validate checks existence and expiry. It is a pure read plus a time
// comparison; calling it repeatedly on the same session mutates nothing.
// Expired sessions report ReasonExpired, never ReasonNotFound.
func (r *Registry) Validate(ctx context.Context, sessionID string) (ValidationResult, error) {
	var s VisitorSession
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ValidationResult{Valid: false, Reason: ReasonNotFound}, nil
		}
		return ValidationResult{}, err
	}

	if !r.now().Before(s.ExpiresAt) {
		return ValidationResult{Valid: false, Reason: ReasonExpired, Session: &s}, nil
	}
	return ValidationResult{Valid: true, Session: &s}, nil
}

// Get loads a session regardless of expiry. Operator dashboards show
// session details for conversations that outlive their session.
func (r *Registry) Get(ctx context.Context, sessionID string) (*VisitorSession, error) {
	var s VisitorSession
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
