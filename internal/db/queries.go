package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is the query surface consumed by services; satisfied by Queries.
type Querier interface {
	CreateThread(ctx context.Context, params CreateThreadParams) error
	GetThread(ctx context.Context, id string) (Thread, error)
	ListThreads(ctx context.Context) ([]Thread, error)
	UpsertMessage(ctx context.Context, params UpsertMessageParams) error
	GetMessage(ctx context.Context, params GetMessageParams) (Message, error)
	ListMessages(ctx context.Context, params ListMessagesParams) ([]Message, error)
	DeleteThread(ctx context.Context, id string) error
}

// Thread is one chat thread row.
type Thread struct {
	ID        string
	Title     string
	Model     string
	CreatedAt int64
	UpdatedAt int64
}

// Message is one chat message row. A thread may hold alternative
// branches; (thread_id, alt, num) is the primary key and PrevAlt links a
// branch back to the one it forked from.
type Message struct {
	ThreadID        string
	Alt             int64
	Num             int64
	PrevAlt         int64
	UsageModel      string
	UsagePrompt     int64
	UsageCompletion int64
	Payload         string
}

// CreateThreadParams creates one thread row.
type CreateThreadParams struct {
	ID        string
	Title     string
	Model     string
	CreatedAt int64
	UpdatedAt int64
}

// UpsertMessageParams inserts or replaces one message row.
type UpsertMessageParams struct {
	ThreadID        string
	Alt             int64
	Num             int64
	PrevAlt         int64
	UsageModel      string
	UsagePrompt     int64
	UsageCompletion int64
	Payload         string
}

// GetMessageParams addresses one message row.
type GetMessageParams struct {
	ThreadID string
	Alt      int64
	Num      int64
}

// ListMessagesParams lists one branch of a thread in message order.
type ListMessagesParams struct {
	ThreadID string
	Alt      int64
}

// Queries runs the message-log SQL against a database handle.
type Queries struct {
	db *sql.DB
}

var _ Querier = (*Queries)(nil)

// New creates the query layer over an open database.
func New(conn *sql.DB) *Queries {
	return &Queries{db: conn}
}

// CreateThread inserts a thread row.
func (q *Queries) CreateThread(ctx context.Context, params CreateThreadParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO threads (id, title, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		params.ID, params.Title, params.Model, params.CreatedAt, params.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting thread: %w", err)
	}
	return nil
}

// GetThread returns one thread by id.
func (q *Queries) GetThread(ctx context.Context, id string) (Thread, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, title, model, created_at, updated_at
		FROM threads WHERE id = ?`, id)
	var t Thread
	if err := row.Scan(&t.ID, &t.Title, &t.Model, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Thread{}, fmt.Errorf("scanning thread: %w", err)
	}
	return t, nil
}

// ListThreads returns all threads, most recently updated first.
func (q *Queries) ListThreads(ctx context.Context) ([]Thread, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, title, model, created_at, updated_at
		FROM threads ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying threads: %w", err)
	}
	defer rows.Close()

	var out []Thread
	for rows.Next() {
		var t Thread
		if err := rows.Scan(&t.ID, &t.Title, &t.Model, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating threads: %w", err)
	}
	return out, nil
}

// UpsertMessage inserts or replaces a message row.
func (q *Queries) UpsertMessage(ctx context.Context, params UpsertMessageParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO messages (
			thread_id, alt, num, prev_alt,
			usage_model, usage_prompt, usage_completion, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		params.ThreadID, params.Alt, params.Num, params.PrevAlt,
		params.UsageModel, params.UsagePrompt, params.UsageCompletion, params.Payload)
	if err != nil {
		return fmt.Errorf("upserting message: %w", err)
	}
	return nil
}

// GetMessage returns one message by (thread, alt, num).
func (q *Queries) GetMessage(ctx context.Context, params GetMessageParams) (Message, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT thread_id, alt, num, prev_alt,
		       usage_model, usage_prompt, usage_completion, payload
		FROM messages WHERE thread_id = ? AND alt = ? AND num = ?`,
		params.ThreadID, params.Alt, params.Num)
	var m Message
	err := row.Scan(&m.ThreadID, &m.Alt, &m.Num, &m.PrevAlt,
		&m.UsageModel, &m.UsagePrompt, &m.UsageCompletion, &m.Payload)
	if err != nil {
		return Message{}, fmt.Errorf("scanning message: %w", err)
	}
	return m, nil
}

// ListMessages returns one branch of a thread ordered by message number.
func (q *Queries) ListMessages(ctx context.Context, params ListMessagesParams) ([]Message, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT thread_id, alt, num, prev_alt,
		       usage_model, usage_prompt, usage_completion, payload
		FROM messages WHERE thread_id = ? AND alt = ?
		ORDER BY num ASC`,
		params.ThreadID, params.Alt)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ThreadID, &m.Alt, &m.Num, &m.PrevAlt,
			&m.UsageModel, &m.UsagePrompt, &m.UsageCompletion, &m.Payload); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return out, nil
}

// DeleteThread removes a thread; messages cascade.
func (q *Queries) DeleteThread(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	return nil
}
