package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/familyconnect/familyconnect/internal/core"
)

// UserStore handles user and family connection persistence
type UserStore struct {
	db *DB
}

// NewUserStore creates a new user store
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

// Create creates a new user
func (s *UserStore) Create(ctx context.Context, user *core.User) (*core.User, error) {
	user.CreatedAt = time.Now().UTC()
	prefs, _ := json.Marshal(user.Preferences)

	res, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO users (name, email, role, preferences, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.Name, user.Email, user.Role, string(prefs), user.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("%w: email %s", core.ErrDuplicateRecord, user.Email)
		}
		return nil, err
	}
	user.ID, err = res.LastInsertId()
	return user, err
}

// GetByID returns a user by ID
func (s *UserStore) GetByID(ctx context.Context, id int64) (*core.User, error) {
	user := &core.User{}
	var prefs string

	err := s.db.conn.QueryRowContext(ctx, `
		SELECT id, name, email, role, preferences, created_at
		FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.Name, &user.Email, &user.Role, &prefs, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %d", core.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(prefs), &user.Preferences)
	return user, nil
}

// GetByEmail returns a user by email
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	var id int64
	err := s.db.conn.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ?`, email).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: email %s", core.ErrUserNotFound, email)
	}
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// CreateConnection links an elderly user to a family member
func (s *UserStore) CreateConnection(ctx context.Context, conn *core.FamilyConnection) (*core.FamilyConnection, error) {
	conn.CreatedAt = time.Now().UTC()

	res, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO family_connections (user_id, family_member_id, relationship, created_at)
		VALUES (?, ?, ?, ?)
	`, conn.UserID, conn.FamilyMemberID, conn.Relationship, conn.CreatedAt)
	if err != nil {
		return nil, err
	}
	conn.ID, err = res.LastInsertId()
	return conn, err
}

// Connections returns a user's family connections
func (s *UserStore) Connections(ctx context.Context, userID int64) ([]core.FamilyConnection, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, user_id, family_member_id, relationship, created_at
		FROM family_connections WHERE user_id = ?
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.FamilyConnection
	for rows.Next() {
		var c core.FamilyConnection
		if err := rows.Scan(&c.ID, &c.UserID, &c.FamilyMemberID, &c.Relationship, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
