package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/familyconnect/familyconnect/internal/core"
)

// CareStore handles care notifications, reminders, and sleep schedules
type CareStore struct {
	db *DB
}

// NewCareStore creates a new care store
func NewCareStore(db *DB) *CareStore {
	return &CareStore{db: db}
}

// CreateNotification records a care event for family visibility
func (s *CareStore) CreateNotification(ctx context.Context, n *core.CareNotification) (*core.CareNotification, error) {
	n.CreatedAt = time.Now().UTC()
	if n.Status == "" {
		n.Status = "pending"
	}

	res, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO care_notifications
		    (elderly_user_id, type, title, description, scheduled_time, care_provider, assistance_needed, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ElderlyUserID, n.Type, n.Title, n.Description, n.ScheduledTime, n.CareProvider, n.AssistanceNeeded, n.Status, n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.ID, err = res.LastInsertId()
	return n, err
}

// Notifications returns a user's care notifications, oldest first
func (s *CareStore) Notifications(ctx context.Context, elderlyUserID int64) ([]core.CareNotification, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, elderly_user_id, type, title, description, scheduled_time,
		       care_provider, assistance_needed, status, created_at
		FROM care_notifications WHERE elderly_user_id = ?
		ORDER BY created_at, id
	`, elderlyUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.CareNotification
	for rows.Next() {
		var n core.CareNotification
		var scheduled sql.NullTime
		if err := rows.Scan(&n.ID, &n.ElderlyUserID, &n.Type, &n.Title, &n.Description,
			&scheduled, &n.CareProvider, &n.AssistanceNeeded, &n.Status, &n.CreatedAt); err != nil {
			return nil, err
		}
		if scheduled.Valid {
			n.ScheduledTime = scheduled.Time
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// AcknowledgeNotification marks a notification acknowledged
func (s *CareStore) AcknowledgeNotification(ctx context.Context, id int64) error {
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE care_notifications SET status = 'acknowledged' WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: care notification %d", core.ErrRecordNotFound, id)
	}
	return nil
}

// CreateReminder schedules a nudge for a user
func (s *CareStore) CreateReminder(ctx context.Context, r *core.Reminder) (*core.Reminder, error) {
	r.CreatedAt = time.Now().UTC()

	res, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO reminders (user_id, title, description, scheduled_time, completed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.UserID, r.Title, r.Description, r.ScheduledTime, r.Completed, r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.ID, err = res.LastInsertId()
	return r, err
}

// Reminders returns a user's reminders ordered by schedule
func (s *CareStore) Reminders(ctx context.Context, userID int64) ([]core.Reminder, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, user_id, title, description, scheduled_time, completed, created_at
		FROM reminders WHERE user_id = ? ORDER BY scheduled_time, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Reminder
	for rows.Next() {
		var r core.Reminder
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.Description, &r.ScheduledTime, &r.Completed, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PendingReminders returns a user's uncompleted reminders ordered by schedule
func (s *CareStore) PendingReminders(ctx context.Context, userID int64) ([]core.Reminder, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, user_id, title, description, scheduled_time, completed, created_at
		FROM reminders WHERE user_id = ? AND completed = 0 ORDER BY scheduled_time, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Reminder
	for rows.Next() {
		var r core.Reminder
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.Description, &r.ScheduledTime, &r.Completed, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CompleteReminder marks a reminder done
func (s *CareStore) CompleteReminder(ctx context.Context, id int64) error {
	res, err := s.db.conn.ExecContext(ctx, `UPDATE reminders SET completed = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: reminder %d", core.ErrRecordNotFound, id)
	}
	return nil
}

// SetSleepSchedule creates or replaces a user's sleep schedule
func (s *CareStore) SetSleepSchedule(ctx context.Context, sched *core.SleepSchedule) (*core.SleepSchedule, error) {
	res, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO sleep_schedules (user_id, bedtime, wake_time, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		    bedtime = excluded.bedtime,
		    wake_time = excluded.wake_time,
		    active = excluded.active
	`, sched.UserID, sched.Bedtime, sched.WakeTime, sched.Active)
	if err != nil {
		return nil, err
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		sched.ID = id
	}
	return sched, nil
}

// SleepSchedule returns a user's sleep schedule
func (s *CareStore) SleepSchedule(ctx context.Context, userID int64) (*core.SleepSchedule, error) {
	sched := &core.SleepSchedule{}
	err := s.db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, bedtime, wake_time, active
		FROM sleep_schedules WHERE user_id = ?
	`, userID).Scan(&sched.ID, &sched.UserID, &sched.Bedtime, &sched.WakeTime, &sched.Active)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: sleep schedule for user %d", core.ErrRecordNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	return sched, nil
}
