package conversation

import "time"

// Conversation is one support interaction. SessionID and ThreadID are
// assigned at creation and never reassigned; status is the only field
// that mutates, always as a single-column patch (last-write-wins).
type Conversation struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ConversationID string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"conversation_id"`
	OrganizationID string    `gorm:"type:varchar(26);not null;index:idx_conv_org_status,priority:1" json:"organization_id"`
	SessionID      string    `gorm:"type:varchar(26);index;not null" json:"session_id"`
	ThreadID       string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"thread_id"`
	Status         Status    `gorm:"type:varchar(16);not null;index:idx_conv_org_status,priority:2" json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }
