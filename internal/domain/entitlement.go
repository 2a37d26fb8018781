package domain

// FreeJournalLimit is how many journal entries a non-premium user may keep.
const FreeJournalLimit = 3

// UserEntitlement is the capability set of one user. It is resolved per
// request and handed to whichever service needs it.
type UserEntitlement struct {
	Premium bool `json:"premium"`
}

func (e UserEntitlement) CanAddJournalEntry(existing int) bool {
	return e.Premium || existing < FreeJournalLimit
}
