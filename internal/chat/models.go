package chat

import "time"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one turn of a transcript. It is owned by its Conversation and
// never edited once appended.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is one row per browser session. The transcript is stored as a
// single JSON document and only decoded at the store boundary.
type Conversation struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"session_id"`
	UserID     *uint64   `gorm:"column:user_id" json:"user_id"`
	Transcript string    `gorm:"column:conversation;type:longtext;not null" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Conversation) TableName() string { return "chatbot_conversations" }

// Messages decodes the stored transcript.
func (c *Conversation) Messages() ([]Message, error) {
	return DecodeTranscript(c.Transcript)
}
