package firestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fakhriadk/calmbot/internal/domain"
	"github.com/fakhriadk/calmbot/internal/observability"
)

// Firestore stores the model's turns with role "model".
const modelRole = "model"

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (CALMBOT_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) userDoc(id domain.UserID) *firestore.DocumentRef {
	return s.client.Collection("users").Doc(string(id))
}

func (s *Store) messagesCol(userID domain.UserID) *firestore.CollectionRef {
	return s.userDoc(userID).Collection("messages")
}

func (s *Store) moodsCol() *firestore.CollectionRef {
	return s.client.Collection("moods")
}

func (s *Store) journalsCol() *firestore.CollectionRef {
	return s.client.Collection("journals")
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type messageDoc struct {
	Text      string `firestore:"text"`
	Role      string `firestore:"role"`
	Timestamp int64  `firestore:"timestamp"`
}

type moodDoc struct {
	UID        string `firestore:"uid"`
	MoodValue  int    `firestore:"moodValue"`
	DateString string `firestore:"dateString"`
	Timestamp  int64  `firestore:"timestamp"`
}

type journalDoc struct {
	Content   string `firestore:"content"`
	UID       string `firestore:"uid"`
	Timestamp int64  `firestore:"timestamp"`
}

type userDoc struct {
	Premium bool `firestore:"premium"`
}

func roleToDoc(r domain.Role) string {
	if r == domain.RoleAssistant {
		return modelRole
	}
	return string(domain.RoleUser)
}

func roleFromDoc(s string) domain.Role {
	if s == modelRole || s == string(domain.RoleAssistant) {
		return domain.RoleAssistant
	}
	return domain.RoleUser
}

// ─────────────────────────────────────────
// MessageLog implementation
// ─────────────────────────────────────────

// AppendMessage writes the message under its own ID, so a retried write
// does not duplicate it.
func (s *Store) AppendMessage(ctx context.Context, userID domain.UserID, msg *domain.Message) error {
	doc := messageDoc{
		Text:      msg.Text,
		Role:      roleToDoc(msg.Author),
		Timestamp: millis(msg.CreatedAt),
	}

	_, err := s.messagesCol(userID).Doc(string(msg.ID)).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return nil
}

// Subscribe listens to the user's messages ordered by timestamp. Every
// snapshot is delivered as the full ordered log.
func (s *Store) Subscribe(ctx context.Context, userID domain.UserID, fn domain.MessageHandler) (domain.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	iter := s.messagesCol(userID).OrderBy("timestamp", firestore.Asc).Snapshots(subCtx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer iter.Stop()

		log := observability.LoggerFromContext(subCtx).With("user_id", userID)
		for {
			snap, err := iter.Next()
			if err != nil {
				if subCtx.Err() != nil || status.Code(err) == codes.Canceled || errors.Is(err, iterator.Done) {
					return
				}
				log.Error("firestore message snapshot failed", "error", err)
				fn(nil, fmt.Errorf("firestore Subscribe: %w", err))
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				fn(nil, fmt.Errorf("firestore Subscribe read: %w", err))
				continue
			}

			msgs := make([]*domain.Message, 0, len(docs))
			for _, d := range docs {
				var doc messageDoc
				if err := d.DataTo(&doc); err != nil {
					// One bad document must not hide the rest.
					log.Warn("skipping malformed message document", "doc_id", d.Ref.ID, "error", err)
					continue
				}
				msgs = append(msgs, &domain.Message{
					ID:        domain.MessageID(d.Ref.ID),
					Author:    roleFromDoc(doc.Role),
					Text:      doc.Text,
					CreatedAt: fromMillis(doc.Timestamp),
				})
			}
			fn(msgs, nil)
		}
	}()

	return domain.SubscriptionFunc(func() {
		cancel()
		wg.Wait()
	}), nil
}

// ─────────────────────────────────────────
// MoodStore implementation
// ─────────────────────────────────────────

func (s *Store) UpsertMood(ctx context.Context, mood *domain.MoodSnapshot) error {
	doc := moodDoc{
		UID:        string(mood.UserID),
		MoodValue:  mood.Value,
		DateString: mood.Date,
		Timestamp:  millis(mood.CreatedAt),
	}

	_, err := s.moodsCol().Doc(domain.MoodDocumentID(mood.UserID, mood.Date)).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore UpsertMood: %w", err)
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
	q := s.moodsCol().Where("uid", "==", string(userID)).OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.MoodSnapshot
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListMoods: %w", err)
		}

		var doc moodDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode moodDoc: %w", err)
		}

		out = append(out, &domain.MoodSnapshot{
			UserID:    domain.UserID(doc.UID),
			Value:     doc.MoodValue,
			Date:      doc.DateString,
			CreatedAt: fromMillis(doc.Timestamp),
		})
	}
	return out, nil
}

// ─────────────────────────────────────────
// JournalStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendJournalEntry(ctx context.Context, entry *domain.JournalEntry) error {
	doc := journalDoc{
		Content:   entry.Content,
		UID:       string(entry.UserID),
		Timestamp: millis(entry.CreatedAt),
	}

	ref := s.journalsCol().NewDoc()
	if entry.ID != "" {
		ref = s.journalsCol().Doc(string(entry.ID))
	}
	if _, err := ref.Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore AppendJournalEntry: %w", err)
	}
	entry.ID = domain.JournalEntryID(ref.ID)
	return nil
}

func (s *Store) ListJournalEntriesByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.JournalEntry, error) {
	q := s.journalsCol().Where("uid", "==", string(userID)).OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	out := []*domain.JournalEntry{}
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListJournalEntriesByUser: %w", err)
		}

		var doc journalDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode journalDoc: %w", err)
		}

		out = append(out, &domain.JournalEntry{
			ID:        domain.JournalEntryID(snap.Ref.ID),
			UserID:    domain.UserID(doc.UID),
			Content:   doc.Content,
			CreatedAt: fromMillis(doc.Timestamp),
		})
	}
	return out, nil
}

func (s *Store) CountJournalEntries(ctx context.Context, userID domain.UserID) (int, error) {
	q := s.journalsCol().Where("uid", "==", string(userID))
	res, err := q.NewAggregationQuery().
		WithCount("all").
		Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("firestore CountJournalEntries: %w", err)
	}

	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("firestore CountJournalEntries: unexpected result %T", res["all"])
	}
	return int(v.GetIntegerValue()), nil
}

// ─────────────────────────────────────────
// EntitlementStore implementation
// ─────────────────────────────────────────

func (s *Store) GetEntitlement(ctx context.Context, userID domain.UserID) (domain.UserEntitlement, error) {
	snap, err := s.userDoc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.UserEntitlement{}, nil
		}
		return domain.UserEntitlement{}, fmt.Errorf("firestore GetEntitlement: %w", err)
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.UserEntitlement{}, fmt.Errorf("decode userDoc: %w", err)
	}
	return domain.UserEntitlement{Premium: doc.Premium}, nil
}

func (s *Store) SetEntitlement(ctx context.Context, userID domain.UserID, ent domain.UserEntitlement) error {
	_, err := s.userDoc(userID).Set(ctx, map[string]interface{}{
		"premium": ent.Premium,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("firestore SetEntitlement: %w", err)
	}
	return nil
}
