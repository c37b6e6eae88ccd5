package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/snap-point/social-api/controllers"
)

func SetupPostRoutes(protected *gin.RouterGroup, postController *controllers.PostController) {
	posts := protected.Group("/posts")
	{
		posts.POST("", postController.CreatePost)
		posts.GET("/:id", postController.GetPost)
		posts.POST("/:id/comments", postController.AddComment)
	}
}
