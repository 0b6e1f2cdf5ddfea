package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/modfin/ashle/internal/chat"
)

var ErrConversationNotFound = errors.New("conversation not found")

// SaveLog stores a conversation log. Turns are keyed by their position in the
// log, so saving the same log again only writes the new turns.
func (q *Queries) SaveLog(ctx context.Context, log chat.Log) error {

	const createConversation = `
INSERT INTO conversations (id) VALUES (?)
ON CONFLICT (id) DO NOTHING
`
	const addTurn = `
INSERT INTO turns (conversation_id, seq, role, text, raw, flagged, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (conversation_id, seq) DO NOTHING
`

	if _, err := q.db.ExecContext(ctx, createConversation, log.ID); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	for seq, turn := range log.Turns {
		created := turn.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		var flagged int
		if turn.Flagged {
			flagged = 1
		}
		_, err := q.db.ExecContext(ctx, addTurn,
			log.ID,
			seq,
			string(turn.Role),
			turn.Text,
			turn.Raw,
			flagged,
			created.Unix(),
		)
		if err != nil {
			return fmt.Errorf("add turn %d: %w", seq, err)
		}
	}
	return nil
}

func (q *Queries) LoadLog(ctx context.Context, id string) (chat.Log, error) {

	const exists = `SELECT count(*) > 0 FROM conversations WHERE id = ?`
	const listTurns = `
SELECT role, text, raw, flagged, created_at
FROM turns
WHERE conversation_id = ?
ORDER BY seq
`

	var found bool
	if err := q.db.QueryRowContext(ctx, exists, id).Scan(&found); err != nil {
		return chat.Log{}, err
	}
	if !found {
		return chat.Log{}, fmt.Errorf("id %s: %w", id, ErrConversationNotFound)
	}

	rows, err := q.db.QueryContext(ctx, listTurns, id)
	if err != nil {
		return chat.Log{}, err
	}
	defer rows.Close()

	log := chat.Log{ID: id}
	for rows.Next() {
		var turn chat.Turn
		var role string
		var created int64
		if err := rows.Scan(&role, &turn.Text, &turn.Raw, &turn.Flagged, &created); err != nil {
			return chat.Log{}, err
		}
		turn.Role = chat.Role(role)
		turn.CreatedAt = time.Unix(created, 0)
		log.Turns = append(log.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return chat.Log{}, err
	}
	return log, nil
}

// LatestConversation returns the most recently active conversation.
func (q *Queries) LatestConversation(ctx context.Context) (string, error) {

	const latest = `
SELECT c.id
FROM conversations c
LEFT JOIN turns t ON t.conversation_id = c.id
GROUP BY c.id
ORDER BY max(coalesce(t.created_at, c.created_at)) DESC, max(coalesce(t.id, 0)) DESC
LIMIT 1
`

	var id string
	err := q.db.QueryRowContext(ctx, latest).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrConversationNotFound
	}
	return id, err
}

func (q *Queries) ListConversations(ctx context.Context) ([]Conversation, error) {

	const list = `
SELECT c.id, count(t.id), c.created_at
FROM conversations c
LEFT JOIN turns t ON t.conversation_id = c.id
GROUP BY c.id
ORDER BY c.created_at, c.rowid
`

	rows, err := q.db.QueryContext(ctx, list)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Conversation
	for rows.Next() {
		var c Conversation
		var created int64
		if err := rows.Scan(&c.ID, &c.Turns, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(created, 0)
		items = append(items, c)
	}
	return items, rows.Err()
}
