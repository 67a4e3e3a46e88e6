// Package handlers implements the cookbook web API.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzeds/cookbook/auth"
	"github.com/matzeds/cookbook/database"
	"github.com/matzeds/cookbook/middleware"
)

// Store is the persistence surface the handlers need. *database.Store
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	GetUser(ctx context.Context, id string) (database.User, error)
	GetUserByUsername(ctx context.Context, username string) (database.User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]database.User, int64, error)

	CreateRefreshToken(ctx context.Context, t database.RefreshToken) error
	GetRefreshToken(ctx context.Context, id string) (database.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, id string) error
	DeleteUserRefreshTokens(ctx context.Context, userID string) error

	CreatePicture(ctx context.Context, p database.Picture) error
	GetPicture(ctx context.Context, id string) (database.Picture, error)
	MarkPictureUsed(ctx context.Context, id string) error

	CreateRecipe(ctx context.Context, r *database.Recipe) error
	UpdateRecipe(ctx context.Context, r *database.Recipe) error
	GetRecipe(ctx context.Context, id int64) (database.Recipe, error)
	SetRecipePublished(ctx context.Context, id int64, at time.Time) error
	ListPublishedRecipes(ctx context.Context, offset, limit int) ([]database.Recipe, int64, error)

	CreateRecipeBook(ctx context.Context, b *database.RecipeBook) error
	UpdateRecipeBook(ctx context.Context, b *database.RecipeBook) error
	GetRecipeBook(ctx context.Context, id int64) (database.RecipeBook, error)
	SetRecipeBookPublished(ctx context.Context, id int64, at time.Time) error
	ListPublishedRecipeBooks(ctx context.Context, offset, limit int) ([]database.RecipeBook, int64, error)
}

// API bundles the handler dependencies.
type API struct {
	store   Store
	tokens  *auth.Tokens
	dataDir string
}

// New builds the API.
func New(store Store, tokens *auth.Tokens, dataDir string) *API {
	return &API{store: store, tokens: tokens, dataDir: dataDir}
}

// Routes mounts every endpoint group. The published-recipes listing is
// public; everything else requires a bearer token.
func (a *API) Routes(r chi.Router) {
	r.Post("/token", a.handleLogin)
	r.Post("/token/refresh", a.handleRefresh)

	r.Get("/recipes", a.handleListRecipes)

	r.Group(func(priv chi.Router) {
		priv.Use(middleware.RequireAuth(a.tokens))

		priv.With(middleware.RequirePermissions(auth.PermissionAdmin)).
			Get("/users", a.handleListUsers)
		priv.Get("/users/me", a.handleMe)

		priv.Post("/recipes", a.handleCreateRecipe)
		priv.Get("/recipes/{recipeID}", a.handleGetRecipe)
		priv.Patch("/recipes/{recipeID}", a.handlePatchRecipe)
		priv.Patch("/recipes/{recipeID}/publish", a.handlePublishRecipe)

		priv.Get("/recipe_books", a.handleListRecipeBooks)
		priv.Post("/recipe_books", a.handleCreateRecipeBook)
		priv.Get("/recipe_books/{bookID}", a.handleGetRecipeBook)
		priv.Patch("/recipe_books/{bookID}", a.handlePatchRecipeBook)
		priv.Patch("/recipe_books/{bookID}/publish", a.handlePublishRecipeBook)

		priv.Post("/pictures", a.handleUploadPicture)
		priv.Get("/pictures/{pictureID}", a.handleGetPicture)
	})
}

// Page is the pagination envelope every list endpoint returns.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Pages int   `json:"pages"`
}

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// parsePage reads the page/size query params with sane bounds.
func parsePage(r *http.Request) (page, size int) {
	page = 1
	size = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && v > 0 {
		size = v
		if size > maxPageSize {
			size = maxPageSize
		}
	}
	return page, size
}

func pageOf[T any](items []T, total int64, page, size int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := int((total + int64(size) - 1) / int64(size))
	return Page[T]{Items: items, Total: total, Page: page, Size: size, Pages: pages}
}

// pathID parses a numeric chi URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil
}

func utcNow() time.Time { return time.Now().UTC() }
