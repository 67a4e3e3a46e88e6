package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/matzeds/cookbook/auth"
	"github.com/matzeds/cookbook/common"
	"github.com/matzeds/cookbook/database"
)

// handleListRecipeBooks returns one page of published books.
func (a *API) handleListRecipeBooks(w http.ResponseWriter, r *http.Request) {
	page, size := parsePage(r)
	books, total, err := a.store.ListPublishedRecipeBooks(r.Context(), (page-1)*size, size)
	if err != nil {
		common.ErrorLog("recipe_books: list: %v", err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	common.RespondJSON(w, pageOf(books, total, page, size))
}

// handleCreateRecipeBook creates an unpublished book. Referenced recipes
// must be published or owned by the caller.
func (a *API) handleCreateRecipeBook(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var data NewRecipeBook
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := data.Validate(); err != nil {
		common.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if data.CoverID != nil && !a.claimPictures(w, r, user.ID, data.CoverID, nil, nil) {
		return
	}
	if !a.checkBookRecipes(w, r, user.ID, data.Recipes, nil) {
		return
	}

	now := utcNow()
	book := database.RecipeBook{
		Name:      data.Name,
		UserID:    user.ID,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      data.Tags,
		CoverID:   data.CoverID,
		RecipeIDs: data.Recipes,
	}
	if err := a.store.CreateRecipeBook(r.Context(), &book); err != nil {
		common.ErrorLog("recipe_books: create: %v", err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	common.RespondStatusJSON(w, http.StatusCreated, book)
}

// handleGetRecipeBook returns one book. Unpublished books are visible
// only to their author.
func (a *API) handleGetRecipeBook(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := pathID(r, "bookID")
	if !ok {
		common.RespondError(w, http.StatusBadRequest, "Invalid recipe book id")
		return
	}

	book, err := a.store.GetRecipeBook(r.Context(), id)
	if err != nil {
		common.RespondError(w, http.StatusNotFound, "Recipe book not found")
		return
	}
	if !book.Published() && book.UserID != user.ID {
		common.RespondError(w, http.StatusForbidden, "Recipe book not published")
		return
	}
	common.RespondJSON(w, book)
}

// handlePatchRecipeBook rewrites a book. Owner only.
func (a *API) handlePatchRecipeBook(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := pathID(r, "bookID")
	if !ok {
		common.RespondError(w, http.StatusBadRequest, "Invalid recipe book id")
		return
	}

	book, err := a.store.GetRecipeBook(r.Context(), id)
	if err != nil {
		common.RespondError(w, http.StatusNotFound, "Recipe book not found")
		return
	}
	if book.UserID != user.ID {
		common.RespondError(w, http.StatusForbidden, "Only edit your own recipe books")
		return
	}

	var data NewRecipeBook
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := data.Validate(); err != nil {
		common.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if data.CoverID != nil && !a.claimPictures(w, r, user.ID, data.CoverID, nil, nil) {
		return
	}
	if !a.checkBookRecipes(w, r, user.ID, data.Recipes, book.RecipeIDs) {
		return
	}

	book.Name = data.Name
	book.Tags = data.Tags
	book.CoverID = data.CoverID
	book.RecipeIDs = data.Recipes
	book.UpdatedAt = utcNow()

	if err := a.store.UpdateRecipeBook(r.Context(), &book); err != nil {
		common.ErrorLog("recipe_books: update %d: %v", id, err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	common.RespondJSON(w, book)
}

// handlePublishRecipeBook makes a book visible to everyone. Owner only,
// once.
func (a *API) handlePublishRecipeBook(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := pathID(r, "bookID")
	if !ok {
		common.RespondError(w, http.StatusBadRequest, "Invalid recipe book id")
		return
	}

	book, err := a.store.GetRecipeBook(r.Context(), id)
	if err != nil {
		common.RespondError(w, http.StatusNotFound, "Recipe book not found")
		return
	}
	if book.UserID != user.ID {
		common.RespondError(w, http.StatusForbidden, "Only publish your own recipe book")
		return
	}
	if book.Published() {
		common.RespondError(w, http.StatusForbidden, "Recipe book is already published")
		return
	}

	now := utcNow()
	if err := a.store.SetRecipeBookPublished(r.Context(), id, now); err != nil {
		common.ErrorLog("recipe_books: publish %d: %v", id, err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	book.PublishedAt = &now
	common.RespondJSON(w, book)
}

// checkBookRecipes verifies every referenced recipe exists and is
// either published or owned by the caller. References the book already
// holds are trusted.
func (a *API) checkBookRecipes(w http.ResponseWriter, r *http.Request, userID string, recipeIDs, existing []int64) bool {
	known := map[int64]bool{}
	for _, id := range existing {
		known[id] = true
	}

	for _, id := range recipeIDs {
		if known[id] {
			continue
		}
		recipe, err := a.store.GetRecipe(r.Context(), id)
		if err != nil {
			common.RespondError(w, http.StatusNotFound, fmt.Sprintf("Recipe %d not found", id))
			return false
		}
		if !recipe.Published() && recipe.UserID != userID {
			common.RespondError(w, http.StatusForbidden, fmt.Sprintf("Recipe %d not published", id))
			return false
		}
	}
	return true
}
