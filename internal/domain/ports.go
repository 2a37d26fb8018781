package domain

import "context"

// CompletionClient defines how the core application interacts with the
// generative-language service. A call is single shot: the whole prompt goes
// in, the generated text comes out.
type CompletionClient interface {
	Complete(ctx context.Context, turns []PromptTurn) (string, error)
}

// AuthProvider resolves the signed-in principal for a call.
type AuthProvider interface {
	CurrentUserID(ctx context.Context) (UserID, bool)
}

// MessageHandler receives every delivery of a message log subscription.
// msgs is the full ordered log (oldest first) when err is nil.
type MessageHandler func(msgs []*Message, err error)

// Subscription is a live registration on a message log.
type Subscription interface {
	Cancel()
}

// MessageLog is the per-user ordered chat history.
type MessageLog interface {
	AppendMessage(ctx context.Context, userID UserID, msg *Message) error
	Subscribe(ctx context.Context, userID UserID, fn MessageHandler) (Subscription, error)
}

// MoodStore defines mood persistence
type MoodStore interface {
	// LatestMood returns nil, nil when the user never logged a mood.
	LatestMood(ctx context.Context, userID UserID) (*MoodSnapshot, error)
	UpsertMood(ctx context.Context, mood *MoodSnapshot) error
	ListMoods(ctx context.Context, userID UserID, limit int) ([]*MoodSnapshot, error)
}

// JournalStore defines the minimum operations to persist the journal
type JournalStore interface {
	AppendJournalEntry(ctx context.Context, entry *JournalEntry) error
	ListJournalEntriesByUser(ctx context.Context, userID UserID, limit int) ([]*JournalEntry, error)
	CountJournalEntries(ctx context.Context, userID UserID) (int, error)
}

// EntitlementStore persists the premium flag per user.
type EntitlementStore interface {
	GetEntitlement(ctx context.Context, userID UserID) (UserEntitlement, error)
	SetEntitlement(ctx context.Context, userID UserID, ent UserEntitlement) error
}

// SubscriptionFunc adapts a plain cancel function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Cancel() { f() }
