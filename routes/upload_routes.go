package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/snap-point/social-api/controllers"
)

func SetupUploadRoutes(protected *gin.RouterGroup, uploadController *controllers.UploadController) {
	upload := protected.Group("/uploads")
	{
		upload.POST("/avatar", uploadController.GetAvatarUploadURL)
	}
}
