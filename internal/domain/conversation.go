package domain

import "strings"

// Message is one conversational turn (user or assistant).
type Message struct {
	ID        MessageID `json:"id"`
	Author    Role      `json:"author"`
	Text      string    `json:"text"`
	CreatedAt Timestamp `json:"created_at"`
}

// Blank reports whether the message has no visible text.
func (m *Message) Blank() bool {
	return strings.TrimSpace(m.Text) == ""
}

// PromptTurn is one role-tagged entry of the model input.
type PromptTurn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}
