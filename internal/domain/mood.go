package domain

import "time"

const (
	MinMoodValue = 1
	MaxMoodValue = 5
)

// MoodSnapshot is a daily emotional self-report on a 1..5 scale.
type MoodSnapshot struct {
	UserID    UserID    `json:"user_id"`
	Value     int       `json:"value"`
	Date      string    `json:"date"` // yyyy-mm-dd
	CreatedAt time.Time `json:"created_at"`
}

func ValidMoodValue(v int) bool {
	return v >= MinMoodValue && v <= MaxMoodValue
}

// MoodDocumentID is the per-day key, so logging twice on one day overwrites.
func MoodDocumentID(userID UserID, date string) string {
	return string(userID) + "_" + date
}
