package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/matzeds/cookbook/auth"
	"github.com/matzeds/cookbook/common"
	"github.com/matzeds/cookbook/database"
)

const refreshCookie = "refresh_token"

// handleLogin exchanges form credentials for a bearer token and a
// refresh cookie.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	user, err := a.store.GetUserByUsername(r.Context(), username)
	if err != nil || !auth.VerifyPassword(password, user.HashedPassword) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		common.RespondError(w, http.StatusBadRequest, "Incorrect username or password")
		return
	}

	a.issueTokens(w, r, user)
}

// handleRefresh rotates the refresh token and issues a fresh bearer
// token. Presenting an unknown jti revokes every token of that user.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookie)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		unauthorizedToken(w, "Not authenticated")
		return
	}

	userID, jti, err := a.tokens.ParseRefresh(cookie.Value)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			unauthorizedToken(w, "Expired token")
			return
		}
		unauthorizedToken(w, "Invalid token")
		return
	}

	stored, err := a.store.GetRefreshToken(r.Context(), jti)
	if err != nil {
		// Unknown jti with a valid signature looks like replay of a
		// rotated token; drop the whole family.
		_ = a.store.DeleteUserRefreshTokens(r.Context(), userID)
		forbiddenToken(w, "Invalid token")
		return
	}
	if !stored.ExpiresAt.After(utcNow()) {
		_ = a.store.DeleteRefreshToken(r.Context(), jti)
		unauthorizedToken(w, "Expired token")
		return
	}

	user, err := a.store.GetUser(r.Context(), stored.UserID)
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid token")
		return
	}

	if err := a.store.DeleteRefreshToken(r.Context(), jti); err != nil {
		common.ErrorLog("token: rotate refresh token: %v", err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	a.issueTokens(w, r, user)
}

func (a *API) issueTokens(w http.ResponseWriter, r *http.Request, user database.User) {
	access, _, err := a.tokens.CreateAccessToken(user.ID, user.Permissions)
	if err != nil {
		common.ErrorLog("token: sign access token: %v", err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	jti := strings.ReplaceAll(uuid.NewString(), "-", "")
	refresh, expires, err := a.tokens.CreateRefreshToken(user.ID, jti)
	if err != nil {
		common.ErrorLog("token: sign refresh token: %v", err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	if err := a.store.CreateRefreshToken(r.Context(), database.RefreshToken{
		ID:        jti,
		UserID:    user.ID,
		CreatedAt: utcNow(),
		ExpiresAt: expires,
	}); err != nil {
		common.ErrorLog("token: persist refresh token: %v", err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    refresh,
		Expires:  expires,
		Secure:   true,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
	})
	common.RespondJSON(w, Token{AccessToken: access, TokenType: "bearer"})
}

func unauthorizedToken(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	common.RespondError(w, http.StatusUnauthorized, detail)
}

func forbiddenToken(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	common.RespondError(w, http.StatusForbidden, detail)
}
