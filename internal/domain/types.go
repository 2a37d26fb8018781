package domain

import "time"

type UserID string
type MessageID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleSystem only appears in prompt turns, never on a stored message.
	RoleSystem Role = "system"
)

type Timestamp = time.Time
