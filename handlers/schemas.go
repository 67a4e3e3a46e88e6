package handlers

import (
	"fmt"

	"github.com/matzeds/cookbook/database"
)

// Token is the login/refresh response body.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// NewIngredient is one ingredient line in a recipe payload.
type NewIngredient struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Hint  string  `json:"hint"`
}

// NewComponent is one dish component in a recipe payload.
type NewComponent struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Ingredients []NewIngredient `json:"ingredients"`
}

// NewStep is one instruction in a recipe payload.
type NewStep struct {
	Description string          `json:"description"`
	PictureID   *string         `json:"picture_id,omitempty"`
	Ingredients []NewIngredient `json:"ingredients"`
}

// NewTool names a required tool in a recipe payload.
type NewTool struct {
	ToolName string `json:"tool_name"`
	Hint     string `json:"hint"`
}

// NewRecipe is the POST and PATCH body for recipes.
type NewRecipe struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
	Number      int            `json:"number"`
	Unit        string         `json:"unit"`
	CoverID     *string        `json:"cover_id,omitempty"`
	PictureIDs  []string       `json:"picture_ids"`
	Components  []NewComponent `json:"components"`
	Steps       []NewStep      `json:"steps"`
	Tools       []NewTool      `json:"tools"`
}

// Validate rejects payloads the database would otherwise accept silently.
func (n *NewRecipe) Validate() error {
	if n.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !database.ValidRecipeUnit(n.Unit) {
		return fmt.Errorf("invalid recipe unit %q", n.Unit)
	}
	if n.Number <= 0 {
		return fmt.Errorf("number must be positive")
	}
	for _, c := range n.Components {
		if err := validateIngredients(c.Ingredients); err != nil {
			return err
		}
	}
	for _, s := range n.Steps {
		if err := validateIngredients(s.Ingredients); err != nil {
			return err
		}
	}
	return nil
}

func validateIngredients(ingredients []NewIngredient) error {
	for _, ing := range ingredients {
		if ing.Name == "" {
			return fmt.Errorf("ingredient name is required")
		}
		if !database.ValidIngredientUnit(ing.Unit) {
			return fmt.Errorf("invalid ingredient unit %q", ing.Unit)
		}
	}
	return nil
}

// NewRecipeBook is the POST and PATCH body for recipe books.
type NewRecipeBook struct {
	Name    string   `json:"name"`
	Tags    []string `json:"tags"`
	CoverID *string  `json:"cover_id,omitempty"`
	Recipes []int64  `json:"recipes"`
}

// Validate rejects empty names.
func (n *NewRecipeBook) Validate() error {
	if n.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

func toComponents(in []NewComponent) []database.RecipeComponent {
	out := make([]database.RecipeComponent, 0, len(in))
	for _, c := range in {
		out = append(out, database.RecipeComponent{
			Name:        c.Name,
			Description: c.Description,
			Ingredients: toIngredients(c.Ingredients),
		})
	}
	return out
}

func toSteps(in []NewStep) []database.RecipeStep {
	out := make([]database.RecipeStep, 0, len(in))
	for _, s := range in {
		out = append(out, database.RecipeStep{
			Description: s.Description,
			PictureID:   s.PictureID,
			Ingredients: toIngredients(s.Ingredients),
		})
	}
	return out
}

func toIngredients(in []NewIngredient) []database.RecipeIngredient {
	out := make([]database.RecipeIngredient, 0, len(in))
	for _, ing := range in {
		out = append(out, database.RecipeIngredient{
			Name:  ing.Name,
			Value: ing.Value,
			Unit:  ing.Unit,
			Hint:  ing.Hint,
		})
	}
	return out
}

func toTools(in []NewTool) []database.RecipeTool {
	out := make([]database.RecipeTool, 0, len(in))
	for _, t := range in {
		out = append(out, database.RecipeTool{Name: t.ToolName, Hint: t.Hint})
	}
	return out
}
