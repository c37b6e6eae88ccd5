package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snap-point/social-api/services"
)

type NotificationController struct {
	notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{notifications: notifications}
}

// GetNotifications returns the caller's newest notifications.
func (nc *NotificationController) GetNotifications(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	feed, err := nc.notifications.List(c.Request.Context(), user.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", feed)
}
