package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snap-point/social-api/apperrors"
	"github.com/snap-point/social-api/models"
	"github.com/snap-point/social-api/services"
)

type UserController struct {
	visibility *services.VisibilityService
	profiles   *services.ProfileService
	accounts   *services.AccountService
}

func NewUserController(svc *services.Services) *UserController {
	return &UserController{
		visibility: svc.Visibility,
		profiles:   svc.Profiles,
		accounts:   svc.Accounts,
	}
}

type changePasswordInput struct {
	OldPassword     string `json:"oldPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

func (uc *UserController) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	me, err := uc.profiles.Me(c.Request.Context(), user.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", me)
}

// SearchUsers returns an empty list rather than an error when nothing
// matches.
func (uc *UserController) SearchUsers(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	users, err := uc.visibility.SearchUsers(c.Request.Context(), user.UserID, c.Query("q"))
	if errors.Is(err, apperrors.ErrUsersNotFound) {
		respond(c, http.StatusOK, "Users not found", []models.User{})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", users)
}

func (uc *UserController) GetUserByID(c *gin.Context) {
	id, ok := paramID(c, "id", "Invalid user id")
	if !ok {
		return
	}

	user, err := uc.profiles.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", user)
}

func (uc *UserController) GetUserProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	profile, err := uc.visibility.Profile(c.Request.Context(), user.UserID, c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", profile)
}

func (uc *UserController) UpdateProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var input services.UpdateProfileInput
	if !bindJSON(c, &input) {
		return
	}

	updated, err := uc.profiles.UpdateProfile(c.Request.Context(), user.UserID, c.Param("username"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Profile updated", updated)
}

func (uc *UserController) ChangePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var input changePasswordInput
	if !bindJSON(c, &input) {
		return
	}

	err := uc.profiles.ChangePassword(c.Request.Context(), user.UserID, c.Param("username"),
		input.OldPassword, input.NewPassword, input.ConfirmPassword)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Password changed", nil)
}

func (uc *UserController) DeleteUser(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := uc.accounts.DeleteUser(c.Request.Context(), user.UserID, c.Param("username")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "User deleted", nil)
}

func (uc *UserController) Followers(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	users, err := uc.visibility.Followers(c.Request.Context(), user.UserID, c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", users)
}

func (uc *UserController) Followings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	users, err := uc.visibility.Followings(c.Request.Context(), user.UserID, c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", users)
}
