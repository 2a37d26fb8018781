package llm

import (
	"context"
	"fmt"

	"github.com/fakhriadk/calmbot/internal/domain"
)

// MockLLM answers without calling any provider. Used in local mode.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Complete(ctx context.Context, turns []domain.PromptTurn) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	last := ""
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == domain.RoleUser {
			last = turns[i].Text
			break
		}
	}
	if last == "" {
		return "I'm here. Tell me a bit about how you are feeling today.", nil
	}
	return fmt.Sprintf("I hear you. You said %q. Can you tell me a little more about how that makes you feel?", last), nil
}
