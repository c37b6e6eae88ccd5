package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/snap-point/social-api/logger"
	"github.com/snap-point/social-api/realtime"
	"go.uber.org/zap"
)

type RealtimeController struct {
	hub      *realtime.Hub
	upgrader *websocket.Upgrader
}

func NewRealtimeController(hub *realtime.Hub, upgrader *websocket.Upgrader) *RealtimeController {
	return &RealtimeController{hub: hub, upgrader: upgrader}
}

// Connect upgrades to a websocket that receives the caller's
// notifications until it disconnects.
func (rc *RealtimeController) Connect(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	conn, err := rc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logger.Get().Warn("Websocket upgrade failed", zap.Uint("user_id", user.UserID), zap.Error(err))
		return
	}
	rc.hub.Serve(user.UserID, conn)
}
