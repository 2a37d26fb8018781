package conversation

import (
	"context"
	"time"

	"github.com/fakhriadk/calmbot/internal/domain"
	"github.com/fakhriadk/calmbot/internal/observability"
)

// WelcomeVariant is one of the canned greetings shown on an empty history.
type WelcomeVariant int

const (
	WelcomeDefault WelcomeVariant = iota
	WelcomeLow
	WelcomeNeutral
	WelcomeUpbeat
)

const defaultMoodLookupTimeout = 5 * time.Second

func (v WelcomeVariant) String() string {
	switch v {
	case WelcomeLow:
		return "low"
	case WelcomeNeutral:
		return "neutral"
	case WelcomeUpbeat:
		return "upbeat"
	default:
		return "default"
	}
}

// Text is the greeting shown to the user.
func (v WelcomeVariant) Text() string {
	switch v {
	case WelcomeLow:
		return "Hi, welcome back. I saw your last mood check-in. Whatever you are feeling today, I am here to listen."
	case WelcomeNeutral:
		return "Hi, welcome back. How are you doing today?"
	case WelcomeUpbeat:
		return "Hi! So good to see you in a good mood again today. I am happy for you! Anything fun happen today?"
	default:
		return "Hi, I'm CalmBot! 👋 I'm your personal companion for handling emotions and anxiety. What can I help you with today?"
	}
}

// SelectWelcome maps the latest mood scale to a greeting. found is false when
// the user has no mood record or the lookup failed.
func SelectWelcome(scale int, found bool) WelcomeVariant {
	if !found {
		return WelcomeDefault
	}
	switch scale {
	case 1, 2:
		return WelcomeLow
	case 3:
		return WelcomeNeutral
	case 4, 5:
		return WelcomeUpbeat
	default:
		return WelcomeDefault
	}
}

// Welcomer picks the greeting for a user from their most recent mood.
type Welcomer struct {
	moods   domain.MoodStore
	timeout time.Duration
}

func NewWelcomer(moods domain.MoodStore) *Welcomer {
	return &Welcomer{moods: moods, timeout: defaultMoodLookupTimeout}
}

// Variant never fails: any lookup problem resolves to WelcomeDefault.
func (w *Welcomer) Variant(ctx context.Context, userID domain.UserID) WelcomeVariant {
	log := observability.LoggerFromContext(ctx).With("user_id", userID)

	if w == nil || w.moods == nil {
		return WelcomeDefault
	}

	lookupCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	mood, err := w.moods.LatestMood(lookupCtx, userID)
	if err != nil {
		log.Warn("latest mood lookup failed, using default greeting", "error", err)
		return WelcomeDefault
	}
	if mood == nil {
		log.Debug("no mood entries found")
		return SelectWelcome(0, false)
	}

	v := SelectWelcome(mood.Value, true)
	log.Debug("welcome variant selected", "mood_value", mood.Value, "variant", v.String())
	return v
}
