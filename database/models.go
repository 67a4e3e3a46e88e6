package database

import "time"

// User is an account that can author recipes.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	HashedPassword string    `json:"-"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	Disabled       bool      `json:"disabled"`
	Permissions    int       `json:"permissions"`
	RegisteredAt   time.Time `json:"registered_at"`
}

// RefreshToken is the server-side handle of a refresh cookie; deleting
// the row revokes the token.
type RefreshToken struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Picture is an uploaded image file plus its metadata.
type Picture struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
	Used       bool      `json:"used"`
	Path       string    `json:"-"`
	Alt        string    `json:"alt"`
	Height     int       `json:"height"`
	Width      int       `json:"width"`
}

// RecipeIngredient is one ingredient line within a component or step.
type RecipeIngredient struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Hint  string  `json:"hint"`
}

// RecipeComponent groups the ingredients of one part of a dish.
type RecipeComponent struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Ingredients []RecipeIngredient `json:"ingredients"`
}

// RecipeStep is one instruction, optionally illustrated.
type RecipeStep struct {
	Description string             `json:"description"`
	PictureID   *string            `json:"picture_id,omitempty"`
	Ingredients []RecipeIngredient `json:"ingredients"`
}

// RecipeTool names a required tool with an optional hint.
type RecipeTool struct {
	Name string `json:"tool_name"`
	Hint string `json:"hint"`
}

// Recipe is the aggregate the API serves. Unpublished recipes are only
// visible to their author.
type Recipe struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	UserID      string            `json:"user_id"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	PublishedAt *time.Time        `json:"published_at"`
	Rating      int               `json:"rating"`
	Tags        []string          `json:"tags"`
	Number      int               `json:"number"`
	Unit        string            `json:"unit"`
	CoverID     *string           `json:"cover_id"`
	PictureIDs  []string          `json:"picture_ids"`
	Components  []RecipeComponent `json:"components"`
	Steps       []RecipeStep      `json:"steps"`
	Tools       []RecipeTool      `json:"tools"`
}

// Published reports whether the recipe is visible to everyone.
func (r *Recipe) Published() bool { return r.PublishedAt != nil }

// RecipeBook is a curated collection of published (or own) recipes.
type RecipeBook struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	UserID      string     `json:"user_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at"`
	Tags        []string   `json:"tags"`
	CoverID     *string    `json:"cover_id"`
	RecipeIDs   []int64    `json:"recipes"`
}

// Published reports whether the book is visible to everyone.
func (b *RecipeBook) Published() bool { return b.PublishedAt != nil }

// Measurement units accepted on ingredient lines and recipe yields.
var (
	IngredientUnits = []string{"ml", "l", "mg", "g", "kg"}
	RecipeUnits     = []string{"SERVING", "PERSON", "PIECE"}
)

// ValidIngredientUnit reports whether u is an accepted ingredient unit.
func ValidIngredientUnit(u string) bool { return contains(IngredientUnits, u) }

// ValidRecipeUnit reports whether u is an accepted recipe yield unit.
func ValidRecipeUnit(u string) bool { return contains(RecipeUnits, u) }

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
