package conversation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fakhriadk/calmbot/internal/adapters/storage/memory"
	"github.com/fakhriadk/calmbot/internal/app/conversation"
	"github.com/fakhriadk/calmbot/internal/domain"
	"github.com/fakhriadk/calmbot/internal/identity"
)

const testUser domain.UserID = "user-1"

func userCtx(uid domain.UserID) context.Context {
	return identity.WithUser(context.Background(), uid)
}

// fakeCompletion records every prompt and answers with reply or err. When
// release is set, calls wait for it (or for cancellation).
type fakeCompletion struct {
	mu      sync.Mutex
	calls   [][]domain.PromptTurn
	reply   string
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeCompletion) Complete(ctx context.Context, turns []domain.PromptTurn) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]domain.PromptTurn(nil), turns...))
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeCompletion) Calls() [][]domain.PromptTurn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type failingMoods struct{ domain.MoodStore }

func (failingMoods) LatestMood(context.Context, domain.UserID) (*domain.MoodSnapshot, error) {
	return nil, errors.New("mood backend down")
}

type fixture struct {
	log   *memory.MessageStore
	moods *memory.MoodStore
	llm   *fakeCompletion
	m     *conversation.Manager
}

func newFixture(t *testing.T, reply string) *fixture {
	t.Helper()
	f := &fixture{
		log:   memory.NewMessageStore(),
		moods: memory.NewMoodStore(),
		llm:   &fakeCompletion{reply: reply},
	}
	f.m = conversation.NewManager(conversation.Deps{
		Auth:              identity.ContextProvider{},
		Log:               f.log,
		Completion:        f.llm,
		Moods:             f.moods,
		CompletionTimeout: 5 * time.Second,
	})
	t.Cleanup(f.m.Stop)
	return f
}

func (f *fixture) logMood(t *testing.T, value int) {
	t.Helper()
	require.NoError(t, f.moods.UpsertMood(context.Background(), &domain.MoodSnapshot{
		UserID:    testUser,
		Value:     value,
		Date:      time.Now().Format("2006-01-02"),
		CreatedAt: time.Now(),
	}))
}

func (f *fixture) seed(t *testing.T, msgs ...string) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i, text := range msgs {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		require.NoError(t, f.log.AppendMessage(context.Background(), testUser, &domain.Message{
			ID:        domain.MessageID("seed-" + text),
			Author:    role,
			Text:      text,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
}

func texts(msgs []domain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}
