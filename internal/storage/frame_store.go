package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/familyconnect/familyconnect/internal/core"
)

// FrameStore handles picture frames and the photos pushed to them
type FrameStore struct {
	db *DB
}

// NewFrameStore creates a new frame store
func NewFrameStore(db *DB) *FrameStore {
	return &FrameStore{db: db}
}

// CreateFrame registers a frame device
func (s *FrameStore) CreateFrame(ctx context.Context, f *core.PictureFrame) (*core.PictureFrame, error) {
	f.CreatedAt = time.Now().UTC()

	res, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO picture_frames (elderly_user_id, name, active, created_at)
		VALUES (?, ?, ?, ?)
	`, f.ElderlyUserID, f.Name, f.Active, f.CreatedAt)
	if err != nil {
		return nil, err
	}
	f.ID, err = res.LastInsertId()
	return f, err
}

// Frame returns one frame by ID
func (s *FrameStore) Frame(ctx context.Context, id int64) (*core.PictureFrame, error) {
	f := &core.PictureFrame{}
	err := s.db.conn.QueryRowContext(ctx, `
		SELECT id, elderly_user_id, name, active, created_at
		FROM picture_frames WHERE id = ?
	`, id).Scan(&f.ID, &f.ElderlyUserID, &f.Name, &f.Active, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: picture frame %d", core.ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Frames returns a user's frames
func (s *FrameStore) Frames(ctx context.Context, elderlyUserID int64) ([]core.PictureFrame, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, elderly_user_id, name, active, created_at
		FROM picture_frames WHERE elderly_user_id = ? ORDER BY id
	`, elderlyUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.PictureFrame
	for rows.Next() {
		var f core.PictureFrame
		if err := rows.Scan(&f.ID, &f.ElderlyUserID, &f.Name, &f.Active, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// AddPhoto pushes a photo to a frame
func (s *FrameStore) AddPhoto(ctx context.Context, p *core.FamilyPhoto) (*core.FamilyPhoto, error) {
	if _, err := s.Frame(ctx, p.PictureFrameID); err != nil {
		return nil, err
	}
	p.UploadedAt = time.Now().UTC()

	res, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO family_photos (picture_frame_id, uploaded_by, url, caption, viewed, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.PictureFrameID, p.UploadedBy, p.URL, p.Caption, p.Viewed, p.UploadedAt)
	if err != nil {
		return nil, err
	}
	p.ID, err = res.LastInsertId()
	return p, err
}

// Photos returns a frame's photos, newest first
func (s *FrameStore) Photos(ctx context.Context, frameID int64) ([]core.FamilyPhoto, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, picture_frame_id, uploaded_by, url, caption, viewed, uploaded_at
		FROM family_photos WHERE picture_frame_id = ?
		ORDER BY uploaded_at DESC, id DESC
	`, frameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.FamilyPhoto
	for rows.Next() {
		var p core.FamilyPhoto
		if err := rows.Scan(&p.ID, &p.PictureFrameID, &p.UploadedBy, &p.URL, &p.Caption, &p.Viewed, &p.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkPhotoViewed flags a photo as seen on the frame
func (s *FrameStore) MarkPhotoViewed(ctx context.Context, photoID int64) error {
	res, err := s.db.conn.ExecContext(ctx, `UPDATE family_photos SET viewed = 1 WHERE id = ?`, photoID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: photo %d", core.ErrRecordNotFound, photoID)
	}
	return nil
}

// DeletePhoto removes a photo from its frame
func (s *FrameStore) DeletePhoto(ctx context.Context, photoID int64) error {
	res, err := s.db.conn.ExecContext(ctx, `DELETE FROM family_photos WHERE id = ?`, photoID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: photo %d", core.ErrRecordNotFound, photoID)
	}
	return nil
}
