// Package sqlite is a single-file local backend. SQLite has no change feed,
// so message subscriptions poll and are nudged by local writes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fakhriadk/calmbot/internal/domain"
	"github.com/fakhriadk/calmbot/internal/observability"
)

const defaultPollPeriod = time.Second

// Store implements the domain stores on SQLite.
type Store struct {
	db   *sql.DB
	poll time.Duration

	mu      sync.Mutex
	nudges  map[domain.UserID]map[int]chan struct{}
	nextSub int
}

// New opens (and creates) the database at dbPath.
func New(dbPath string, pollPeriod time.Duration) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if pollPeriod <= 0 {
		pollPeriod = defaultPollPeriod
	}
	s := &Store{
		db:     db,
		poll:   pollPeriod,
		nudges: make(map[domain.UserID]map[int]chan struct{}),
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		rev INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, timestamp);

	CREATE TABLE IF NOT EXISTS moods (
		id TEXT PRIMARY KEY,
		uid TEXT NOT NULL,
		mood_value INTEGER NOT NULL,
		date_string TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_moods_uid ON moods(uid, timestamp);

	CREATE TABLE IF NOT EXISTS journals (
		id TEXT PRIMARY KEY,
		uid TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_journals_uid ON journals(uid, timestamp);

	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		premium INTEGER NOT NULL DEFAULT 0
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ─────────────────────────────────────────
// MessageLog
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, userID domain.UserID, msg *domain.Message) error {
	query := `
	INSERT INTO messages (id, user_id, role, text, timestamp, rev)
	VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(rev), 0) + 1 FROM messages))
	ON CONFLICT(id) DO UPDATE SET
		role = excluded.role,
		text = excluded.text,
		timestamp = excluded.timestamp,
		rev = excluded.rev`

	_, err := s.db.ExecContext(ctx, query,
		string(msg.ID), string(userID), string(msg.Author), msg.Text, msg.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	s.nudge(userID)
	return nil
}

func (s *Store) listMessages(ctx context.Context, userID domain.UserID) ([]*domain.Message, int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, text, timestamp, rev FROM messages
		WHERE user_id = ? ORDER BY timestamp ASC, rev ASC`, string(userID))
	if err != nil {
		return nil, 0, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var (
		out    []*domain.Message
		maxRev int64
	)
	for rows.Next() {
		var (
			id, role, text string
			ts, rev        int64
		)
		if err := rows.Scan(&id, &role, &text, &ts, &rev); err != nil {
			return nil, 0, fmt.Errorf("scan message row: %w", err)
		}
		if rev > maxRev {
			maxRev = rev
		}
		out = append(out, &domain.Message{
			ID:        domain.MessageID(id),
			Author:    domain.Role(role),
			Text:      text,
			CreatedAt: time.UnixMilli(ts),
		})
	}
	return out, maxRev, rows.Err()
}

// Subscribe delivers the current log before returning, then again whenever
// the log changes.
func (s *Store) Subscribe(ctx context.Context, userID domain.UserID, fn domain.MessageHandler) (domain.Subscription, error) {
	msgs, rev, err := s.listMessages(ctx, userID)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	nudge, id := s.register(userID)

	fn(msgs, nil)
	lastCount, lastRev := len(msgs), rev

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.unregister(userID, id)

		log := observability.LoggerFromContext(subCtx).With("user_id", userID)
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
			case <-nudge:
			}

			msgs, rev, err := s.listMessages(subCtx, userID)
			if err != nil {
				if subCtx.Err() != nil {
					return
				}
				log.Error("sqlite message poll failed", "error", err)
				fn(nil, err)
				continue
			}
			if len(msgs) == lastCount && rev == lastRev {
				continue
			}
			lastCount, lastRev = len(msgs), rev
			fn(msgs, nil)
		}
	}()

	return domain.SubscriptionFunc(func() {
		cancel()
		wg.Wait()
	}), nil
}

func (s *Store) register(userID domain.UserID) (chan struct{}, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	if s.nudges[userID] == nil {
		s.nudges[userID] = make(map[int]chan struct{})
	}
	ch := make(chan struct{}, 1)
	s.nudges[userID][id] = ch
	return ch, id
}

func (s *Store) unregister(userID domain.UserID, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nudges[userID], id)
	if len(s.nudges[userID]) == 0 {
		delete(s.nudges, userID)
	}
}

func (s *Store) nudge(userID domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.nudges[userID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// ─────────────────────────────────────────
// MoodStore
// ─────────────────────────────────────────

func (s *Store) UpsertMood(ctx context.Context, mood *domain.MoodSnapshot) error {
	query := `
	INSERT INTO moods (id, uid, mood_value, date_string, timestamp)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		mood_value = excluded.mood_value,
		timestamp = excluded.timestamp`

	_, err := s.db.ExecContext(ctx, query,
		domain.MoodDocumentID(mood.UserID, mood.Date),
		string(mood.UserID), mood.Value, mood.Date, mood.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert mood: %w", err)
	}
	return nil
}

func (s *Store) LatestMood(ctx context.Context, userID domain.UserID) (*domain.MoodSnapshot, error) {
	moods, err := s.ListMoods(ctx, userID, 1)
	if err != nil || len(moods) == 0 {
		return nil, err
	}
	return moods[0], nil
}

func (s *Store) ListMoods(ctx context.Context, userID domain.UserID, limit int) ([]*domain.MoodSnapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT mood_value, date_string, timestamp FROM moods
		WHERE uid = ? ORDER BY timestamp DESC LIMIT ?`, string(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("query moods: %w", err)
	}
	defer rows.Close()

	var out []*domain.MoodSnapshot
	for rows.Next() {
		m := &domain.MoodSnapshot{UserID: userID}
		var ts int64
		if err := rows.Scan(&m.Value, &m.Date, &ts); err != nil {
			return nil, fmt.Errorf("scan mood row: %w", err)
		}
		m.CreatedAt = time.UnixMilli(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────
// JournalStore
// ─────────────────────────────────────────

func (s *Store) AppendJournalEntry(ctx context.Context, entry *domain.JournalEntry) error {
	if entry.ID == "" {
		return errors.New("journal entry id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journals (id, uid, content, timestamp) VALUES (?, ?, ?, ?)`,
		string(entry.ID), string(entry.UserID), entry.Content, entry.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

func (s *Store) ListJournalEntriesByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.JournalEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, timestamp FROM journals
		WHERE uid = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`, string(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("query journals: %w", err)
	}
	defer rows.Close()

	out := []*domain.JournalEntry{}
	for rows.Next() {
		e := &domain.JournalEntry{UserID: userID}
		var ts int64
		if err := rows.Scan(&e.ID, &e.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		e.CreatedAt = time.UnixMilli(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CountJournalEntries(ctx context.Context, userID domain.UserID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journals WHERE uid = ?`, string(userID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count journals: %w", err)
	}
	return n, nil
}

// ─────────────────────────────────────────
// EntitlementStore
// ─────────────────────────────────────────

func (s *Store) GetEntitlement(ctx context.Context, userID domain.UserID) (domain.UserEntitlement, error) {
	var premium bool
	err := s.db.QueryRowContext(ctx, `SELECT premium FROM users WHERE user_id = ?`, string(userID)).Scan(&premium)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserEntitlement{}, nil
	}
	if err != nil {
		return domain.UserEntitlement{}, fmt.Errorf("get entitlement: %w", err)
	}
	return domain.UserEntitlement{Premium: premium}, nil
}

func (s *Store) SetEntitlement(ctx context.Context, userID domain.UserID, ent domain.UserEntitlement) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, premium) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET premium = excluded.premium`,
		string(userID), ent.Premium,
	)
	if err != nil {
		return fmt.Errorf("set entitlement: %w", err)
	}
	return nil
}
