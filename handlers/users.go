package handlers

import (
	"net/http"

	"github.com/matzeds/cookbook/auth"
	"github.com/matzeds/cookbook/common"
)

// handleListUsers returns one page of accounts. Admin only.
func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, size := parsePage(r)
	users, total, err := a.store.ListUsers(r.Context(), (page-1)*size, size)
	if err != nil {
		common.ErrorLog("users: list: %v", err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	common.RespondJSON(w, pageOf(users, total, page, size))
}

// handleMe returns the caller's own account.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	me, err := a.store.GetUser(r.Context(), user.ID)
	if err != nil {
		common.RespondError(w, http.StatusNotFound, "User not found")
		return
	}
	common.RespondJSON(w, me)
}
