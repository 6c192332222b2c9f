package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hallertau/staffdir/internal/auth/domain"
	"github.com/hallertau/staffdir/internal/auth/service"
	"github.com/hallertau/staffdir/pkg/authsdk"
	"github.com/hallertau/staffdir/pkg/httpx"
	"github.com/hallertau/staffdir/pkg/slogx"
)

// UsersHandler serves the protected directory API under /v1/users.
type UsersHandler struct {
	UserService *service.UserService
}

// HandleList godoc
//
//	@Summary		List directory entries
//	@Description	Returns every user in the directory. Requires a valid access token; no particular scope.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.ListUsersResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"no_authentication or invalid_token"
//	@Router			/v1/users [get]
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	users, err := h.UserService.ListUsers(ctx)
	if err != nil {
		log.Error("list users failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	resp := authsdk.ListUsersResponse{Users: make([]authsdk.UserInfo, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, toUserInfo(u))
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleCreate godoc
//
//	@Summary		Create a directory entry
//	@Description	Adds a user to the directory. Requires a valid access token; no particular scope.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		authsdk.CreateUserRequest	true	"New user"
//	@Success		201		{object}	authsdk.UserInfo
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"no_authentication or invalid_token"
//	@Failure		409		{object}	authsdk.ErrorResponse	"username already taken"
//	@Router			/v1/users [post]
func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	user, err := h.UserService.CreateUser(ctx, service.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Scopes:   req.Scopes,
		Salary:   req.Salary,
		Age:      req.Age,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			authsdk.ErrInvalidRequest.WriteError(w)
		case errors.Is(err, service.ErrUsernameTaken):
			authsdk.NewOAuth2Error(
				http.StatusConflict,
				"username_taken",
				"a user with that username already exists",
			).WriteError(w)
		default:
			log.Error("create user failed", "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toUserInfo(user))
}

// HandleDelete godoc
//
//	@Summary		Delete a directory entry
//	@Description	Removes a user and revokes their tokens. Requires the delete scope.
//	@Tags			Users
//	@Security		BearerAuth
//	@Param			id	path	string	true	"User ID"
//	@Success		204	"Deleted"
//	@Failure		401	{object}	authsdk.ErrorResponse	"no_authentication or invalid_token"
//	@Failure		403	{object}	authsdk.ErrorResponse	"insufficient_scope"
//	@Failure		404	{object}	authsdk.ErrorResponse	"unknown user"
//	@Router			/v1/users/{id} [delete]
func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := strings.TrimSpace(r.PathValue("id"))
	if userID == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.UserService.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			authsdk.NewOAuth2Error(
				http.StatusNotFound,
				"not_found",
				"no such user",
			).WriteError(w)
			return
		}
		log.Error("delete user failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toUserInfo(u domain.User) authsdk.UserInfo {
	return authsdk.UserInfo{
		ID:        u.ID,
		Username:  u.Username,
		Scopes:    u.Scopes,
		Salary:    u.Salary,
		Age:       u.Age,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}
