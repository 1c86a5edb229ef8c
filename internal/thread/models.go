package thread

import "time"

// Turn roles. Tool-only agent turns may carry empty content; they are
// retained in storage but filtered from the rendered feed.
const (
	RoleVisitor  = "visitor"
	RoleAgent    = "agent"
	RoleOperator = "operator"
)

// Thread is the append-only log backing one conversation.
// OwnerKey is the organization id of the conversation that owns it.
type Thread struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ThreadID  string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"thread_id"`
	OwnerKey  string    `gorm:"type:varchar(26);index;not null" json:"owner_key"`
	CreatedAt time.Time `json:"created_at"`
}

func (Thread) TableName() string { return "threads" }

// Turn is one entry in a thread. The auto-increment ID is the ordering
// position: monotonically increasing per thread, never edited or deleted.
type Turn struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ThreadID  string    `gorm:"type:varchar(26);not null;index:idx_turns_thread_id" json:"thread_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Turn) TableName() string { return "thread_turns" }
