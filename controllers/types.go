package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/snap-point/social-api/apperrors"
	"github.com/snap-point/social-api/logger"
	"github.com/snap-point/social-api/utils"
	"go.uber.org/zap"
)

type StandardResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, StandardResponse{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, StandardResponse{Success: false, Error: message})
}

// statusFor maps a service error kind to its HTTP status.
func statusFor(errType apperrors.ErrorType) int {
	switch errType {
	case apperrors.ErrorTypeNotFound, apperrors.ErrorTypeUsersNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeForbidden:
		return http.StatusForbidden
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrorTypeSelfReference,
		apperrors.ErrorTypeAlreadyFollowing,
		apperrors.ErrorTypeNotFollowing,
		apperrors.ErrorTypeAlreadyBlocked,
		apperrors.ErrorTypeNotBlocked,
		apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err in the standard envelope. Storage failures are
// logged with their cause and reported without it.
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.BaseError
	if !errors.As(err, &appErr) {
		logger.Get().Error("Unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := statusFor(appErr.Type)
	if status == http.StatusInternalServerError {
		logger.Get().Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	fail(c, status, appErr.Message)
}

// currentUser returns the authenticated caller, writing a 401 when the
// auth middleware did not run.
func currentUser(c *gin.Context) (*utils.UserClaims, bool) {
	user := utils.GetUser(c)
	if user == nil {
		fail(c, http.StatusUnauthorized, "User not found in context")
		return nil, false
	}
	return user, true
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func paramID(c *gin.Context, name, message string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, message)
		return 0, false
	}
	return uint(id), true
}
