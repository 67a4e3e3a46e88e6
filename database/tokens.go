package database

import (
	"context"
	"database/sql"
	"errors"
)

// CreateRefreshToken persists the server-side handle of a refresh token.
func (s *Store) CreateRefreshToken(ctx context.Context, t RefreshToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_token (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, t.ID, t.UserID, t.CreatedAt, t.ExpiresAt)
	return err
}

// GetRefreshToken fetches a refresh token by its jti.
func (s *Store) GetRefreshToken(ctx context.Context, id string) (RefreshToken, error) {
	var t RefreshToken
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, expires_at
		FROM refresh_token WHERE id = ?
	`, id).Scan(&t.ID, &t.UserID, &t.CreatedAt, &t.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return RefreshToken{}, ErrNotFound
	}
	return t, err
}

// DeleteRefreshToken revokes one token. Used on rotation.
func (s *Store) DeleteRefreshToken(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM refresh_token WHERE id = ?`, id)
	return err
}

// DeleteUserRefreshTokens revokes every token of a user. Used when a
// presented token's jti is unknown, which smells like replay of a
// rotated token.
func (s *Store) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM refresh_token WHERE user_id = ?`, userID)
	return err
}
