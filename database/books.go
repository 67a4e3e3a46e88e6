package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const bookColumns = `id, name, user_id, created_at, updated_at, published_at, tags, cover_id`

// CreateRecipeBook inserts the book and its recipe references. Sets b.ID.
func (s *Store) CreateRecipeBook(ctx context.Context, b *RecipeBook) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		tags, err := marshalTags(b)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO recipe_book (name, user_id, created_at, updated_at, published_at, tags, cover_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, b.Name, b.UserID, b.CreatedAt, b.UpdatedAt, b.PublishedAt, tags, b.CoverID)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		b.ID = id

		return replaceBookRecipes(ctx, tx, b.ID, b.RecipeIDs)
	})
}

// UpdateRecipeBook rewrites the book and its recipe references.
func (s *Store) UpdateRecipeBook(ctx context.Context, b *RecipeBook) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		tags, err := marshalTags(b)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE recipe_book
			SET name = ?, updated_at = ?, tags = ?, cover_id = ?
			WHERE id = ?
		`, b.Name, b.UpdatedAt, tags, b.CoverID, b.ID); err != nil {
			return err
		}

		return replaceBookRecipes(ctx, tx, b.ID, b.RecipeIDs)
	})
}

// SetRecipeBookPublished stamps the publication time.
func (s *Store) SetRecipeBookPublished(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE recipe_book SET published_at = ? WHERE id = ?
	`, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRecipeBook fetches one book with its recipe ids.
func (s *Store) GetRecipeBook(ctx context.Context, id int64) (RecipeBook, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM recipe_book WHERE id = ?`, id)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RecipeBook{}, ErrNotFound
	}
	if err != nil {
		return RecipeBook{}, err
	}

	b.RecipeIDs, err = s.bookRecipeIDs(ctx, id)
	return b, err
}

// ListPublishedRecipeBooks returns one page of published books by id.
func (s *Store) ListPublishedRecipeBooks(ctx context.Context, offset, limit int) ([]RecipeBook, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recipe_book WHERE published_at IS NOT NULL`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM recipe_book
		WHERE published_at IS NOT NULL
		ORDER BY id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	books := []RecipeBook{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan recipe book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range books {
		books[i].RecipeIDs, err = s.bookRecipeIDs(ctx, books[i].ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return books, total, nil
}

func (s *Store) bookRecipeIDs(ctx context.Context, bookID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recipe_id FROM recipe_book_recipes WHERE recipe_book_id = ? ORDER BY recipe_id
	`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func replaceBookRecipes(ctx context.Context, tx *sql.Tx, bookID int64, recipeIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_book_recipes WHERE recipe_book_id = ?`, bookID); err != nil {
		return err
	}
	for _, rid := range recipeIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recipe_book_recipes (recipe_book_id, recipe_id) VALUES (?, ?)
		`, bookID, rid); err != nil {
			return err
		}
	}
	return nil
}

func marshalTags(b *RecipeBook) ([]byte, error) {
	if b.Tags == nil {
		b.Tags = []string{}
	}
	return json.Marshal(b.Tags)
}

func scanBook(row interface{ Scan(...any) error }) (RecipeBook, error) {
	var (
		b    RecipeBook
		tags []byte
	)
	err := row.Scan(&b.ID, &b.Name, &b.UserID, &b.CreatedAt, &b.UpdatedAt,
		&b.PublishedAt, &tags, &b.CoverID)
	if err != nil {
		return RecipeBook{}, err
	}
	if err := json.Unmarshal(tags, &b.Tags); err != nil {
		return RecipeBook{}, fmt.Errorf("recipe book %d tags: %w", b.ID, err)
	}
	return b, nil
}
