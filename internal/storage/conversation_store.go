package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/familyconnect/familyconnect/internal/core"
)

// ConversationStore handles conversation persistence
type ConversationStore struct {
	db *DB
}

// NewConversationStore creates a new conversation store
func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Create records one user/agent exchange
func (s *ConversationStore) Create(ctx context.Context, conv *core.Conversation) (*core.Conversation, error) {
	if conv.Timestamp.IsZero() {
		conv.Timestamp = time.Now().UTC()
	}
	if conv.EmotionalState == "" {
		conv.EmotionalState = core.EmotionalNeutral
	}

	res, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO conversations (user_id, agent_id, message, response, emotional_state, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, conv.UserID, conv.AgentID, conv.Message, conv.Response, conv.EmotionalState, conv.Timestamp)
	if err != nil {
		return nil, err
	}
	conv.ID, err = res.LastInsertId()
	return conv, err
}

// Recent returns the user's most recent conversations, oldest first.
// A limit of 0 returns all of them.
func (s *ConversationStore) Recent(ctx context.Context, userID int64, limit int) ([]core.Conversation, error) {
	query := `
		SELECT id, user_id, agent_id, message, response, emotional_state, timestamp
		FROM (
			SELECT * FROM conversations WHERE user_id = ?
			ORDER BY timestamp DESC, id DESC LIMIT ?
		) ORDER BY timestamp, id
	`
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.conn.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanConversations(rows)
}

// RecentByAgent is Recent narrowed to one persona's exchanges.
func (s *ConversationStore) RecentByAgent(ctx context.Context, userID int64, agentID core.AgentID, limit int) ([]core.Conversation, error) {
	query := `
		SELECT id, user_id, agent_id, message, response, emotional_state, timestamp
		FROM (
			SELECT * FROM conversations WHERE user_id = ? AND agent_id = ?
			ORDER BY timestamp DESC, id DESC LIMIT ?
		) ORDER BY timestamp, id
	`
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.conn.QueryContext(ctx, query, userID, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanConversations(rows)
}

func scanConversations(rows *sql.Rows) ([]core.Conversation, error) {
	var out []core.Conversation
	for rows.Next() {
		var c core.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.AgentID, &c.Message, &c.Response, &c.EmotionalState, &c.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
