package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/familyconnect/familyconnect/internal/core"
)

// CommStore persists inter-agent communications. The log is append-only;
// records are never updated or deleted.
type CommStore struct {
	db *DB
}

// NewCommStore creates a new communication store
func NewCommStore(db *DB) *CommStore {
	return &CommStore{db: db}
}

// Create appends one communication record
func (s *CommStore) Create(ctx context.Context, msg *core.InterAgentMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msgCtx, err := json.Marshal(msg.Context)
	if err != nil {
		return err
	}

	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO agent_communications (id, from_agent, to_agent, message, context, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.FromAgent, msg.ToAgent, msg.Message, string(msgCtx), msg.Timestamp)
	return err
}

// All returns every communication record, oldest first
func (s *CommStore) All(ctx context.Context) ([]core.InterAgentMessage, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, from_agent, to_agent, message, context, timestamp
		FROM agent_communications ORDER BY timestamp, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.InterAgentMessage
	for rows.Next() {
		var m core.InterAgentMessage
		var msgCtx string
		if err := rows.Scan(&m.ID, &m.FromAgent, &m.ToAgent, &m.Message, &msgCtx, &m.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(msgCtx), &m.Context); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
