// Package message is the chat message log: thread and message CRUD over
// the database plus an in-process pub-sub for streaming consumers.
package message

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stitchcode/stitch/internal/db"
)

// Event is one pub-sub notification about a message log change.
type Event struct {
	Kind     string `json:"kind"` // "thread" or "message"
	Action   string `json:"action"`
	ThreadID string `json:"thread_id"`
	Alt      int64  `json:"alt,omitempty"`
	Num      int64  `json:"num,omitempty"`
}

// Service wraps the query layer with identifiers, payload encoding, and
// change notifications.
type Service struct {
	q   db.Querier
	now func() time.Time

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewService creates a message service over the query layer.
func NewService(q db.Querier) *Service {
	return &Service{
		q:    q,
		now:  time.Now,
		subs: make(map[chan Event]struct{}),
	}
}

// CreateThread creates a thread and returns its id.
func (s *Service) CreateThread(ctx context.Context, title, model string) (string, error) {
	id := uuid.NewString()
	now := s.now().Unix()
	err := s.q.CreateThread(ctx, db.CreateThreadParams{
		ID:        id,
		Title:     title,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("creating thread: %w", err)
	}
	s.publish(Event{Kind: "thread", Action: "create", ThreadID: id})
	return id, nil
}

// Append stores a message payload at (thread, alt, num), replacing any
// previous revision of that slot.
func (s *Service) Append(ctx context.Context, threadID string, alt, num int64, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding message payload: %w", err)
	}
	err = s.q.UpsertMessage(ctx, db.UpsertMessageParams{
		ThreadID: threadID,
		Alt:      alt,
		Num:      num,
		Payload:  string(raw),
	})
	if err != nil {
		return fmt.Errorf("storing message: %w", err)
	}
	s.publish(Event{Kind: "message", Action: "update", ThreadID: threadID, Alt: alt, Num: num})
	return nil
}

// Get decodes one stored message payload into out.
func (s *Service) Get(ctx context.Context, threadID string, alt, num int64, out any) error {
	m, err := s.q.GetMessage(ctx, db.GetMessageParams{ThreadID: threadID, Alt: alt, Num: num})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(m.Payload), out); err != nil {
		return fmt.Errorf("decoding message payload: %w", err)
	}
	return nil
}

// List returns the raw rows of one thread branch in message order.
func (s *Service) List(ctx context.Context, threadID string, alt int64) ([]db.Message, error) {
	return s.q.ListMessages(ctx, db.ListMessagesParams{ThreadID: threadID, Alt: alt})
}

// Subscribe registers a change listener; cancel the context to drop it.
// Slow subscribers lose events rather than blocking writers.
func (s *Service) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 64)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
		close(ch)
	}()
	return ch
}

func (s *Service) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
