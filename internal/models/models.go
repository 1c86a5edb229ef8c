package models

import "time"

// Organization is one tenant of the widget. The organization id doubles
// as the knowledge index namespace.
type Organization struct {
	ID        string    `gorm:"type:varchar(26);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(128);not null" json:"name"`
	Slug      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"slug"`
	NotifyTo  string    `gorm:"type:varchar(255)" json:"-"` // escalation email target
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Organization) TableName() string { return "organizations" }

// WidgetSettings holds the per-organization widget configuration.
// GreetingMessage seeds new threads as the first agent turn.
type WidgetSettings struct {
	ID                 uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	OrganizationID     string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"organization_id"`
	GreetingMessage    string    `gorm:"type:text" json:"greeting_message"`
	DefaultSuggestions string    `gorm:"type:text" json:"default_suggestions"` // newline separated
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (WidgetSettings) TableName() string { return "widget_settings" }

// Operator is an authenticated staff member of one organization.
type Operator struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrganizationID string    `gorm:"type:varchar(26);index;not null" json:"organization_id"`
	Email          string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	DisplayName    string    `gorm:"type:varchar(128)" json:"display_name"`
	PasswordHash   string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Operator) TableName() string { return "operators" }
