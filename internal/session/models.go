package session

import "time"

// SessionTTL is the fixed lifetime of a visitor session. Expiry is
// absolute: activity never extends it, and there is no renewal call.
const SessionTTL = 24 * time.Hour

// Metadata is the advisory device bag captured at the widget handshake.
// Opaque to the engine; stored for operator display only.
type Metadata struct {
	UserAgent        string `json:"user_agent,omitempty"`
	Language         string `json:"language,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
	ScreenResolution string `json:"screen_resolution,omitempty"`
	ViewportSize     string `json:"viewport_size,omitempty"`
	Referrer         string `json:"referrer,omitempty"`
	CurrentURL       string `json:"current_url,omitempty"`
}

// VisitorSession identifies an anonymous end user of one organization's
// widget. Created once per handshake and never mutated; it becomes
// unusable (but is not deleted) after ExpiresAt.
type VisitorSession struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID      string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	OrganizationID string    `gorm:"type:varchar(26);index;not null" json:"organization_id"`
	DisplayName    string    `gorm:"type:varchar(128);not null" json:"display_name"`
	Email          string    `gorm:"type:varchar(255);not null" json:"email"`
	Metadata       Metadata  `gorm:"serializer:json" json:"metadata"`
	ExpiresAt      time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

func (VisitorSession) TableName() string { return "visitor_sessions" }
