package domain

import "time"

// JournalEntryID identifies a journal entry
type JournalEntryID string

// JournalEntry is a free-text note written by the user.
type JournalEntry struct {
	ID        JournalEntryID `json:"id"`
	UserID    UserID         `json:"user_id"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
}
