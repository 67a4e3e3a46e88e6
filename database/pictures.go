package database

import (
	"context"
	"database/sql"
	"errors"
)

const pictureColumns = `id, user_id, filename, uploaded_at, used, path, alt, height, width`

// CreatePicture inserts picture metadata (the file itself lives on disk).
func (s *Store) CreatePicture(ctx context.Context, p Picture) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO picture (`+pictureColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.UserID, p.Filename, p.UploadedAt, p.Used, p.Path, p.Alt, p.Height, p.Width)
	return err
}

// GetPicture fetches picture metadata by id.
func (s *Store) GetPicture(ctx context.Context, id string) (Picture, error) {
	var p Picture
	err := s.db.QueryRowContext(ctx, `
		SELECT `+pictureColumns+` FROM picture WHERE id = ?
	`, id).Scan(&p.ID, &p.UserID, &p.Filename, &p.UploadedAt, &p.Used, &p.Path, &p.Alt, &p.Height, &p.Width)
	if errors.Is(err, sql.ErrNoRows) {
		return Picture{}, ErrNotFound
	}
	return p, err
}

// MarkPictureUsed flags a picture as attached to a recipe or book.
func (s *Store) MarkPictureUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE picture SET used = TRUE WHERE id = ?`, id)
	return err
}
