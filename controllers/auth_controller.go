package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snap-point/social-api/services"
)

type AuthController struct {
	auth *services.AuthService
}

func NewAuthController(auth *services.AuthService) *AuthController {
	return &AuthController{auth: auth}
}

type loginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshInput struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (ac *AuthController) Register(c *gin.Context) {
	var input services.RegisterInput
	if !bindJSON(c, &input) {
		return
	}

	result, err := ac.auth.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "User registered", result)
}

func (ac *AuthController) Login(c *gin.Context) {
	var input loginInput
	if !bindJSON(c, &input) {
		return
	}

	result, err := ac.auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Logged in", result)
}

// RefreshToken exchanges a refresh token for a new pair. The old refresh
// token stops working.
func (ac *AuthController) RefreshToken(c *gin.Context) {
	var input refreshInput
	if !bindJSON(c, &input) {
		return
	}

	result, err := ac.auth.Refresh(c.Request.Context(), input.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Token refreshed", result)
}

func (ac *AuthController) Logout(c *gin.Context) {
	var input refreshInput
	if !bindJSON(c, &input) {
		return
	}

	if err := ac.auth.Logout(c.Request.Context(), input.RefreshToken); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Logged out", nil)
}

func (ac *AuthController) GoogleLogin(c *gin.Context) {
	if !ac.auth.GoogleEnabled() {
		fail(c, http.StatusNotImplemented, "Google sign-in is not configured")
		return
	}

	var input struct {
		Code string `json:"code" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}

	result, err := ac.auth.GoogleLogin(c.Request.Context(), input.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Logged in", result)
}
