package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snap-point/social-api/services"
)

type RelationshipController struct {
	relationships *services.RelationshipService
}

func NewRelationshipController(relationships *services.RelationshipService) *RelationshipController {
	return &RelationshipController{relationships: relationships}
}

func (rc *RelationshipController) Follow(c *gin.Context) {
	rc.apply(c, rc.relationships.Follow, "User followed")
}

func (rc *RelationshipController) Unfollow(c *gin.Context) {
	rc.apply(c, rc.relationships.Unfollow, "User unfollowed")
}

func (rc *RelationshipController) Block(c *gin.Context) {
	rc.apply(c, rc.relationships.Block, "User blocked")
}

func (rc *RelationshipController) Unblock(c *gin.Context) {
	rc.apply(c, rc.relationships.Unblock, "User unblocked")
}

func (rc *RelationshipController) apply(c *gin.Context, op func(context.Context, uint, string) error, message string) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := op(c.Request.Context(), user.UserID, c.Param("username")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, message, nil)
}
