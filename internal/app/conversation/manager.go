package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fakhriadk/calmbot/internal/domain"
	"github.com/fakhriadk/calmbot/internal/observability"
)

var (
	ErrAuthMissing   = errors.New("no authenticated user")
	ErrSessionClosed = errors.New("chat session is not active")
	ErrSendInFlight  = errors.New("a message is already being answered")
	ErrEmptyReply    = errors.New("completion returned no text")
)

const defaultCompletionTimeout = 60 * time.Second

// Deps are the collaborators of a Manager.
type Deps struct {
	Auth       domain.AuthProvider
	Log        domain.MessageLog
	Completion domain.CompletionClient
	Moods      domain.MoodStore

	// Persona overrides DefaultPersona when non-empty.
	Persona           string
	CompletionTimeout time.Duration
}

// View is a read-only copy of the session as the UI should render it.
type View struct {
	UserID   domain.UserID    `json:"user_id"`
	Messages []domain.Message `json:"messages"`
	Typing   bool             `json:"typing"`
	Greeting bool             `json:"greeting"`
	Active   bool             `json:"active"`
	// Speculation is the state of the latest send.
	Speculation SpeculationState `json:"speculation"`
	// Version grows with every change; receivers drop views older than the
	// last one they rendered.
	Version uint64 `json:"version"`
}

// Manager owns the in-memory chat session of one authenticated user. It keeps
// the session in sync with the remote message log and runs the send
// pipeline. All state changes go through mu; mu is never held across store
// or completion calls.
type Manager struct {
	auth     domain.AuthProvider
	log      domain.MessageLog
	llm      domain.CompletionClient
	welcomer *Welcomer
	persona  string
	timeout  time.Duration

	now   func() time.Time
	newID func() domain.MessageID

	mu          sync.Mutex
	userID      domain.UserID
	messages    []*domain.Message
	welcomeID   domain.MessageID
	placeholder *domain.Message
	sending     bool
	speculation SpeculationState
	active      bool
	gen         uint64 // bumped by Start and Stop; stale callbacks compare against it
	version     uint64
	sub         domain.Subscription
	lifeCtx     context.Context
	cancelLife  context.CancelFunc

	watchMu   sync.Mutex
	watchers  map[int]func(View)
	nextWatch int
}

func NewManager(deps Deps) *Manager {
	timeout := deps.CompletionTimeout
	if timeout <= 0 {
		timeout = defaultCompletionTimeout
	}
	return &Manager{
		auth:     deps.Auth,
		log:      deps.Log,
		llm:      deps.Completion,
		welcomer: NewWelcomer(deps.Moods),
		persona:  deps.Persona,
		timeout:  timeout,
		now:      time.Now,
		newID:    func() domain.MessageID { return domain.MessageID(uuid.NewString()) },
		watchers: make(map[int]func(View)),
	}
}

// Start opens the live subscription on the signed-in user's message log.
// Any previous subscription is stopped first, so there is at most one.
func (m *Manager) Start(ctx context.Context) error {
	log := observability.LoggerFromContext(ctx)

	uid, ok := m.auth.CurrentUserID(ctx)
	if !ok || uid == "" {
		log.Warn("chat session start without authenticated user")
		return ErrAuthMissing
	}

	m.Stop()

	lifeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.userID = uid
	m.messages = nil
	m.welcomeID = ""
	m.placeholder = nil
	m.sending = false
	m.speculation = SpeculationNone
	m.active = true
	m.lifeCtx, m.cancelLife = lifeCtx, cancel
	view := m.changedLocked()
	m.mu.Unlock()
	m.notify(view)

	log.Info("starting chat session", "user_id", uid)

	sub, err := m.log.Subscribe(lifeCtx, uid, func(msgs []*domain.Message, err error) {
		m.onDelivery(lifeCtx, gen, msgs, err)
	})
	if err != nil {
		log.Error("failed to subscribe to message log", "user_id", uid, "error", err)
		m.Stop()
		return fmt.Errorf("subscribe to message log: %w", err)
	}

	m.mu.Lock()
	if m.gen == gen {
		m.sub = sub
		sub = nil
	}
	m.mu.Unlock()

	// Stopped while subscribing.
	if sub != nil {
		sub.Cancel()
	}
	return nil
}

// Stop cancels the subscription and any in-flight completion. It is safe to
// call any number of times. Delivered and sent messages are kept; a send that
// was still waiting loses its placeholder and ends rolled back.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	sub, cancel, uid := m.sub, m.cancelLife, m.userID
	m.sub, m.cancelLife = nil, nil
	m.active = false
	m.gen++
	if m.placeholder != nil {
		m.removeLocked(m.placeholder.ID)
		m.placeholder = nil
	}
	m.sending = false
	if m.speculation == SpeculationPending {
		m.speculation = SpeculationRolledBack
	}
	view := m.changedLocked()
	m.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	if cancel != nil {
		cancel()
	}
	observability.Logger().Info("chat session stopped", "user_id", uid)
	m.notify(view)
}

// Active reports whether Start succeeded and Stop was not called since.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// UserID is the user the session was started for.
func (m *Manager) UserID() domain.UserID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// View returns the current session.
func (m *Manager) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

// Messages returns a copy of the session messages in display order.
func (m *Manager) Messages() []domain.Message {
	return m.View().Messages
}

// Watch registers fn to receive a View after every change. fn runs on the
// goroutine that made the change and must not block. The returned func
// unregisters it.
func (m *Manager) Watch(fn func(View)) func() {
	m.watchMu.Lock()
	id := m.nextWatch
	m.nextWatch++
	m.watchers[id] = fn
	m.watchMu.Unlock()

	return func() {
		m.watchMu.Lock()
		delete(m.watchers, id)
		m.watchMu.Unlock()
	}
}

// ─────────────────────────────────────────────
// History loading
// ─────────────────────────────────────────────

func (m *Manager) onDelivery(ctx context.Context, gen uint64, msgs []*domain.Message, err error) {
	log := observability.LoggerFromContext(ctx)

	if err != nil {
		// Keep the last good state.
		log.Error("message log subscription failed", "error", err)
		return
	}

	if len(msgs) == 0 {
		m.showWelcome(ctx, gen)
		return
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.messages = cloneMessages(msgs)
	m.welcomeID = ""
	if m.placeholder != nil {
		m.messages = append(m.messages, m.placeholder)
	}
	view := m.changedLocked()
	m.mu.Unlock()

	log.Debug("chat history delivered", "history_size", len(msgs))
	m.notify(view)
}

func (m *Manager) showWelcome(ctx context.Context, gen uint64) {
	m.mu.Lock()
	if m.gen != gen || m.sending {
		m.mu.Unlock()
		return
	}
	ticket := m.version
	uid := m.userID
	m.mu.Unlock()

	variant := m.welcomer.Variant(ctx, uid)

	m.mu.Lock()
	// Anything that happened during the lookup wins over the greeting.
	if m.gen != gen || m.version != ticket || m.sending {
		m.mu.Unlock()
		return
	}
	greeting := m.newMessageLocked(domain.RoleAssistant, variant.Text())
	m.messages = []*domain.Message{greeting}
	m.welcomeID = greeting.ID
	view := m.changedLocked()
	m.mu.Unlock()

	observability.LoggerFromContext(ctx).Info("showing welcome message", "user_id", uid, "variant", variant.String())
	m.notify(view)
}

// ─────────────────────────────────────────────
// Helpers (callers hold mu where the name says so)
// ─────────────────────────────────────────────

func (m *Manager) newMessageLocked(role domain.Role, text string) *domain.Message {
	return &domain.Message{
		ID:        m.newID(),
		Author:    role,
		Text:      text,
		CreatedAt: m.now(),
	}
}

// historyLocked is the session as the model should see it: no placeholder,
// no unpersisted greeting.
func (m *Manager) historyLocked() []*domain.Message {
	out := make([]*domain.Message, 0, len(m.messages))
	for _, msg := range m.messages {
		if m.placeholder != nil && msg.ID == m.placeholder.ID {
			continue
		}
		if m.welcomeID != "" && msg.ID == m.welcomeID {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func (m *Manager) containsLocked(id domain.MessageID) bool {
	for _, msg := range m.messages {
		if msg.ID == id {
			return true
		}
	}
	return false
}

func (m *Manager) removeLocked(id domain.MessageID) bool {
	for i, msg := range m.messages {
		if msg.ID == id {
			m.messages = append(m.messages[:i:i], m.messages[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Manager) soleGreetingLocked() bool {
	return len(m.messages) == 1 && m.welcomeID != "" && m.messages[0].ID == m.welcomeID
}

func (m *Manager) changedLocked() View {
	m.version++
	return m.viewLocked()
}

func (m *Manager) viewLocked() View {
	msgs := make([]domain.Message, 0, len(m.messages))
	for _, msg := range m.messages {
		msgs = append(msgs, *msg)
	}
	return View{
		UserID:      m.userID,
		Messages:    msgs,
		Typing:      m.placeholder != nil,
		Greeting:    m.soleGreetingLocked(),
		Active:      m.active,
		Speculation: m.speculation,
		Version:     m.version,
	}
}

func (m *Manager) notify(v View) {
	m.watchMu.Lock()
	fns := make([]func(View), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.watchMu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func cloneMessages(msgs []*domain.Message) []*domain.Message {
	out := make([]*domain.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		c := *msg
		out = append(out, &c)
	}
	return out
}
