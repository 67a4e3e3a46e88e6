package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/matzeds/cookbook/auth"
	"github.com/matzeds/cookbook/common"
	"github.com/matzeds/cookbook/database"
)

// handleListRecipes returns one page of published recipes. Public.
func (a *API) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	page, size := parsePage(r)
	recipes, total, err := a.store.ListPublishedRecipes(r.Context(), (page-1)*size, size)
	if err != nil {
		common.ErrorLog("recipes: list: %v", err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	common.RespondJSON(w, pageOf(recipes, total, page, size))
}

// handleCreateRecipe creates an unpublished recipe owned by the caller.
func (a *API) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var data NewRecipe
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := data.Validate(); err != nil {
		common.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !a.claimPictures(w, r, user.ID, data.CoverID, data.PictureIDs, data.Steps) {
		return
	}

	now := utcNow()
	recipe := database.Recipe{
		Name:        data.Name,
		Description: data.Description,
		UserID:      user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Tags:        data.Tags,
		Number:      data.Number,
		Unit:        data.Unit,
		CoverID:     data.CoverID,
		PictureIDs:  data.PictureIDs,
		Components:  toComponents(data.Components),
		Steps:       toSteps(data.Steps),
		Tools:       toTools(data.Tools),
	}
	if err := a.store.CreateRecipe(r.Context(), &recipe); err != nil {
		common.ErrorLog("recipes: create: %v", err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	common.RespondStatusJSON(w, http.StatusCreated, recipe)
}

// handleGetRecipe returns one recipe. Unpublished recipes are visible
// only to their author.
func (a *API) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := pathID(r, "recipeID")
	if !ok {
		common.RespondError(w, http.StatusBadRequest, "Invalid recipe id")
		return
	}

	recipe, err := a.store.GetRecipe(r.Context(), id)
	if err != nil {
		common.RespondError(w, http.StatusNotFound, "Recipe not found")
		return
	}
	if !recipe.Published() && recipe.UserID != user.ID {
		common.RespondError(w, http.StatusForbidden, "Recipe not published")
		return
	}
	common.RespondJSON(w, recipe)
}

// handlePatchRecipe rewrites a recipe. Owner only.
func (a *API) handlePatchRecipe(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := pathID(r, "recipeID")
	if !ok {
		common.RespondError(w, http.StatusBadRequest, "Invalid recipe id")
		return
	}

	recipe, err := a.store.GetRecipe(r.Context(), id)
	if err != nil {
		common.RespondError(w, http.StatusNotFound, "Recipe not found")
		return
	}
	if recipe.UserID != user.ID {
		common.RespondError(w, http.StatusForbidden, "Only edit your own recipe")
		return
	}

	var data NewRecipe
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := data.Validate(); err != nil {
		common.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !a.claimPictures(w, r, user.ID, data.CoverID, newPictureIDs(recipe.PictureIDs, data.PictureIDs), data.Steps) {
		return
	}

	recipe.Name = data.Name
	recipe.Description = data.Description
	recipe.Tags = data.Tags
	recipe.Number = data.Number
	recipe.Unit = data.Unit
	recipe.CoverID = data.CoverID
	recipe.PictureIDs = data.PictureIDs
	recipe.Components = toComponents(data.Components)
	recipe.Steps = toSteps(data.Steps)
	recipe.Tools = toTools(data.Tools)
	recipe.UpdatedAt = utcNow()

	if err := a.store.UpdateRecipe(r.Context(), &recipe); err != nil {
		common.ErrorLog("recipes: update %d: %v", id, err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	common.RespondJSON(w, recipe)
}

// handlePublishRecipe makes a recipe visible to everyone. Owner only,
// once.
func (a *API) handlePublishRecipe(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := pathID(r, "recipeID")
	if !ok {
		common.RespondError(w, http.StatusBadRequest, "Invalid recipe id")
		return
	}

	recipe, err := a.store.GetRecipe(r.Context(), id)
	if err != nil {
		common.RespondError(w, http.StatusNotFound, "Recipe not found")
		return
	}
	if recipe.UserID != user.ID {
		common.RespondError(w, http.StatusForbidden, "Only publish your own recipe")
		return
	}
	if recipe.Published() {
		common.RespondError(w, http.StatusForbidden, "Recipe is already published")
		return
	}

	now := utcNow()
	if err := a.store.SetRecipePublished(r.Context(), id, now); err != nil {
		common.ErrorLog("recipes: publish %d: %v", id, err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	recipe.PublishedAt = &now
	common.RespondJSON(w, recipe)
}

// claimPictures verifies every referenced picture exists and belongs to
// the caller, then marks it used. Writes the error response itself and
// returns false on failure.
func (a *API) claimPictures(w http.ResponseWriter, r *http.Request, userID string, coverID *string, pictureIDs []string, steps []NewStep) bool {
	ids := make([]string, 0, len(pictureIDs)+len(steps)+1)
	if coverID != nil {
		ids = append(ids, *coverID)
	}
	ids = append(ids, pictureIDs...)
	for _, s := range steps {
		if s.PictureID != nil {
			ids = append(ids, *s.PictureID)
		}
	}

	for _, id := range ids {
		pic, err := a.store.GetPicture(r.Context(), id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				common.RespondError(w, http.StatusNotFound, fmt.Sprintf("Picture %s not found", id))
			} else {
				common.ErrorLog("recipes: load picture %s: %v", id, err)
				common.RespondError(w, http.StatusInternalServerError, "Internal error")
			}
			return false
		}
		if pic.UserID != userID {
			common.RespondError(w, http.StatusUnauthorized, fmt.Sprintf("Access to picture %s not allowed", id))
			return false
		}
		if err := a.store.MarkPictureUsed(r.Context(), id); err != nil {
			common.ErrorLog("recipes: mark picture %s used: %v", id, err)
			common.RespondError(w, http.StatusInternalServerError, "Internal error")
			return false
		}
	}
	return true
}

// newPictureIDs filters out pictures already attached to the recipe, so
// ownership is re-checked only for additions.
func newPictureIDs(existing, requested []string) []string {
	known := map[string]bool{}
	for _, id := range existing {
		known[id] = true
	}
	var out []string
	for _, id := range requested {
		if !known[id] {
			out = append(out, id)
		}
	}
	return out
}
