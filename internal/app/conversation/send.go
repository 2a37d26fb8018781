package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fakhriadk/calmbot/internal/domain"
	"github.com/fakhriadk/calmbot/internal/observability"
)

// TypingText is the content of the transient placeholder shown while the
// assistant reply is generated. The placeholder is never persisted.
const TypingText = "Typing..."

const (
	persistTimeout   = 10 * time.Second
	maxDiagnosticLen = 200
)

// SpeculationState tracks an optimistic local change until the completion
// result is known.
type SpeculationState int

const (
	SpeculationNone SpeculationState = iota
	SpeculationPending
	SpeculationConfirmed
	SpeculationRolledBack
)

func (s SpeculationState) String() string {
	switch s {
	case SpeculationPending:
		return "pending"
	case SpeculationConfirmed:
		return "confirmed"
	case SpeculationRolledBack:
		return "rolled_back"
	default:
		return "none"
	}
}

func (s SpeculationState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SpeculationState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "none", "":
		*s = SpeculationNone
	case "pending":
		*s = SpeculationPending
	case "confirmed":
		*s = SpeculationConfirmed
	case "rolled_back":
		*s = SpeculationRolledBack
	default:
		return fmt.Errorf("unknown speculation state %q", b)
	}
	return nil
}

// SendResult is the outcome of one Send.
type SendResult struct {
	User  *domain.Message  `json:"user,omitempty"`
	Reply *domain.Message  `json:"reply,omitempty"`
	State SpeculationState `json:"state"`
	// Err is the completion failure behind a rolled back send. The error turn
	// in Reply already carries its text.
	Err error `json:"-"`
}

// Send runs the send pipeline for q. Blank input is a no-op and returns a
// zero result. A completion failure is not returned as an error: the
// conversation gets an error turn and the result is SpeculationRolledBack.
func (m *Manager) Send(ctx context.Context, q string) (SendResult, error) {
	text := strings.TrimSpace(q)
	if text == "" {
		return SendResult{}, nil
	}

	uid, ok := m.auth.CurrentUserID(ctx)
	if !ok || uid == "" {
		return SendResult{}, ErrAuthMissing
	}

	log := observability.LoggerFromContext(ctx).With("user_id", uid)

	m.mu.Lock()
	switch {
	case !m.active:
		m.mu.Unlock()
		return SendResult{}, ErrSessionClosed
	case m.userID != uid:
		m.mu.Unlock()
		return SendResult{}, ErrAuthMissing
	case m.sending:
		m.mu.Unlock()
		return SendResult{}, ErrSendInFlight
	}

	gen, lifeCtx := m.gen, m.lifeCtx

	if m.soleGreetingLocked() {
		m.messages = nil
	}
	m.welcomeID = ""

	user := m.newMessageLocked(domain.RoleUser, text)
	placeholder := m.newMessageLocked(domain.RoleAssistant, TypingText)
	m.messages = append(m.messages, user, placeholder)
	m.placeholder = placeholder
	m.sending = true
	m.speculation = SpeculationPending
	view := m.changedLocked()
	m.mu.Unlock()
	m.notify(view)

	log.Info("sending chat message", "message_id", user.ID, "text_len", len(text))

	m.persist(ctx, uid, user)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		log.Info("chat session closed before completion", "message_id", user.ID)
		return SendResult{User: copyMessage(user), State: SpeculationRolledBack, Err: ErrSessionClosed}, ErrSessionClosed
	}
	history := m.historyLocked()
	// A delivery from before the write may have replaced the local turn.
	if !m.containsLocked(user.ID) {
		history = append(history, user)
	}
	prompt := AssemblePrompt(m.persona, history)
	m.mu.Unlock()

	callCtx, cancel := context.WithTimeout(lifeCtx, m.timeout)
	started := time.Now()
	reply, err := m.llm.Complete(callCtx, prompt)
	cancel()
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyReply
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		log.Info("chat session closed during completion, discarding reply",
			"message_id", user.ID,
			"latency_ms", time.Since(started).Milliseconds(),
		)
		return SendResult{User: copyMessage(user), State: SpeculationRolledBack, Err: ErrSessionClosed}, ErrSessionClosed
	}

	m.removeLocked(placeholder.ID)
	m.placeholder = nil
	m.sending = false

	var out *domain.Message
	if err != nil {
		out = m.newMessageLocked(domain.RoleAssistant, errorText(err))
		m.speculation = SpeculationRolledBack
	} else {
		out = m.newMessageLocked(domain.RoleAssistant, strings.TrimSpace(reply))
		m.speculation = SpeculationConfirmed
	}
	m.messages = append(m.messages, out)
	state := m.speculation
	view = m.changedLocked()
	m.mu.Unlock()
	m.notify(view)

	if err != nil {
		log.Error("completion failed",
			"message_id", user.ID,
			"latency_ms", time.Since(started).Milliseconds(),
			"error", err,
		)
	} else {
		log.Info("completion received",
			"message_id", user.ID,
			"reply_len", len(out.Text),
			"latency_ms", time.Since(started).Milliseconds(),
		)
	}

	m.persist(ctx, uid, out)

	return SendResult{
		User:  copyMessage(user),
		Reply: copyMessage(out),
		State: state,
		Err:   err,
	}, nil
}

// persist writes msg to the remote log. Failures are logged only: the local
// message stays.
func (m *Manager) persist(ctx context.Context, uid domain.UserID, msg *domain.Message) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := m.log.AppendMessage(writeCtx, uid, msg); err != nil {
		observability.LoggerFromContext(ctx).Error("failed to persist chat message",
			"user_id", uid,
			"message_id", msg.ID,
			"role", msg.Author,
			"error", err,
		)
	}
}

func errorText(err error) string {
	diag := err.Error()
	if utf8.RuneCountInString(diag) > maxDiagnosticLen {
		diag = string([]rune(diag)[:maxDiagnosticLen]) + "..."
	}
	return fmt.Sprintf("Error: %s", diag)
}

func copyMessage(m *domain.Message) *domain.Message {
	c := *m
	return &c
}
