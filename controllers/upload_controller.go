package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snap-point/social-api/services"
)

type UploadController struct {
	profiles *services.ProfileService
}

type PresignedURLRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
	FileSize    int64  `json:"fileSize" binding:"required,min=1"`
}

func NewUploadController(profiles *services.ProfileService) *UploadController {
	return &UploadController{profiles: profiles}
}

// GetAvatarUploadURL presigns a direct upload for a new avatar. The client
// then sends the returned key as avatarKey when updating the profile.
func (uc *UploadController) GetAvatarUploadURL(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req PresignedURLRequest
	if !bindJSON(c, &req) {
		return
	}

	upload, err := uc.profiles.PresignAvatar(c.Request.Context(), user.UserID, req.FileName, req.ContentType, req.FileSize)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Presigned URL generated", upload)
}
