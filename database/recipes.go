package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const recipeColumns = `id, name, description, user_id, created_at, updated_at, published_at,
	rating, tags, number, unit, cover_id, components, steps, tools`

// CreateRecipe inserts the aggregate, refreshes the ingredient and tool
// catalogs, and records picture attachments. Sets r.ID.
func (s *Store) CreateRecipe(ctx context.Context, r *Recipe) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureCatalogs(ctx, tx, r); err != nil {
			return err
		}

		tags, components, steps, tools, err := marshalRecipeDocs(r)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO recipe (name, description, user_id, created_at, updated_at,
				published_at, rating, tags, number, unit, cover_id, components, steps, tools)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.Name, r.Description, r.UserID, r.CreatedAt, r.UpdatedAt,
			r.PublishedAt, r.Rating, tags, r.Number, r.Unit, r.CoverID, components, steps, tools)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		r.ID = id

		return replaceRecipePictures(ctx, tx, r.ID, r.PictureIDs)
	})
}

// UpdateRecipe rewrites the aggregate in place.
func (s *Store) UpdateRecipe(ctx context.Context, r *Recipe) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureCatalogs(ctx, tx, r); err != nil {
			return err
		}

		tags, components, steps, tools, err := marshalRecipeDocs(r)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE recipe
			SET name = ?, description = ?, updated_at = ?, tags = ?, number = ?,
				unit = ?, cover_id = ?, components = ?, steps = ?, tools = ?
			WHERE id = ?
		`, r.Name, r.Description, r.UpdatedAt, tags, r.Number,
			r.Unit, r.CoverID, components, steps, tools, r.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Row may match its previous contents; make sure it exists.
			var one int
			if err := tx.QueryRowContext(ctx, `SELECT 1 FROM recipe WHERE id = ?`, r.ID).Scan(&one); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return ErrNotFound
				}
				return err
			}
		}

		return replaceRecipePictures(ctx, tx, r.ID, r.PictureIDs)
	})
}

// SetRecipePublished stamps the publication time.
func (s *Store) SetRecipePublished(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE recipe SET published_at = ? WHERE id = ?
	`, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRecipe fetches one recipe with its picture attachments.
func (s *Store) GetRecipe(ctx context.Context, id int64) (Recipe, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipe WHERE id = ?`, id)
	r, err := scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Recipe{}, ErrNotFound
	}
	if err != nil {
		return Recipe{}, err
	}

	r.PictureIDs, err = s.recipePictureIDs(ctx, id)
	return r, err
}

// ListPublishedRecipes returns one page of published recipes by id.
func (s *Store) ListPublishedRecipes(ctx context.Context, offset, limit int) ([]Recipe, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recipe WHERE published_at IS NOT NULL`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recipeColumns+` FROM recipe
		WHERE published_at IS NOT NULL
		ORDER BY id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	recipes := []Recipe{}
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan recipe: %w", err)
		}
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range recipes {
		recipes[i].PictureIDs, err = s.recipePictureIDs(ctx, recipes[i].ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return recipes, total, nil
}

func (s *Store) recipePictureIDs(ctx context.Context, recipeID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT picture_id FROM recipe_pictures WHERE recipe_id = ? ORDER BY picture_id
	`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func replaceRecipePictures(ctx context.Context, tx *sql.Tx, recipeID int64, pictureIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_pictures WHERE recipe_id = ?`, recipeID); err != nil {
		return err
	}
	for _, pid := range pictureIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recipe_pictures (recipe_id, picture_id) VALUES (?, ?)
		`, recipeID, pid); err != nil {
			return err
		}
	}
	return nil
}

// ensureCatalogs find-or-creates ingredient and tool catalog rows so
// names stay canonical across recipes.
func ensureCatalogs(ctx context.Context, tx *sql.Tx, r *Recipe) error {
	for _, c := range r.Components {
		if err := ensureIngredients(ctx, tx, c.Ingredients); err != nil {
			return err
		}
	}
	for _, st := range r.Steps {
		if err := ensureIngredients(ctx, tx, st.Ingredients); err != nil {
			return err
		}
	}
	for _, t := range r.Tools {
		if _, err := tx.ExecContext(ctx, `
			INSERT IGNORE INTO tool (name) VALUES (?)
		`, t.Name); err != nil {
			return err
		}
	}
	return nil
}

func ensureIngredients(ctx context.Context, tx *sql.Tx, ingredients []RecipeIngredient) error {
	for _, ing := range ingredients {
		if _, err := tx.ExecContext(ctx, `
			INSERT IGNORE INTO ingredient (name, default_unit) VALUES (?, ?)
		`, ing.Name, ing.Unit); err != nil {
			return err
		}
	}
	return nil
}

func marshalRecipeDocs(r *Recipe) (tags, components, steps, tools []byte, err error) {
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if tags, err = json.Marshal(r.Tags); err != nil {
		return
	}
	if components, err = json.Marshal(orEmptyComponents(r.Components)); err != nil {
		return
	}
	if steps, err = json.Marshal(orEmptySteps(r.Steps)); err != nil {
		return
	}
	tools, err = json.Marshal(orEmptyTools(r.Tools))
	return
}

func orEmptyComponents(c []RecipeComponent) []RecipeComponent {
	if c == nil {
		return []RecipeComponent{}
	}
	return c
}

func orEmptySteps(s []RecipeStep) []RecipeStep {
	if s == nil {
		return []RecipeStep{}
	}
	return s
}

func orEmptyTools(t []RecipeTool) []RecipeTool {
	if t == nil {
		return []RecipeTool{}
	}
	return t
}

func scanRecipe(row interface{ Scan(...any) error }) (Recipe, error) {
	var (
		r          Recipe
		tags       []byte
		components []byte
		steps      []byte
		tools      []byte
	)
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.UserID, &r.CreatedAt, &r.UpdatedAt,
		&r.PublishedAt, &r.Rating, &tags, &r.Number, &r.Unit, &r.CoverID, &components, &steps, &tools)
	if err != nil {
		return Recipe{}, err
	}

	if err := json.Unmarshal(tags, &r.Tags); err != nil {
		return Recipe{}, fmt.Errorf("recipe %d tags: %w", r.ID, err)
	}
	if err := json.Unmarshal(components, &r.Components); err != nil {
		return Recipe{}, fmt.Errorf("recipe %d components: %w", r.ID, err)
	}
	if err := json.Unmarshal(steps, &r.Steps); err != nil {
		return Recipe{}, fmt.Errorf("recipe %d steps: %w", r.ID, err)
	}
	if err := json.Unmarshal(tools, &r.Tools); err != nil {
		return Recipe{}, fmt.Errorf("recipe %d tools: %w", r.ID, err)
	}
	return r, nil
}
