package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/snap-point/social-api/controllers"
)

func SetupUserRoutes(protected *gin.RouterGroup, userController *controllers.UserController, relationshipController *controllers.RelationshipController) {
	users := protected.Group("/users")
	{
		users.GET("", userController.SearchUsers)
		users.GET("/id/:id", userController.GetUserByID)

		// Profile endpoints
		users.GET("/:username", userController.GetUserProfile)
		users.PUT("/:username", userController.UpdateProfile)
		users.DELETE("/:username", userController.DeleteUser)
		users.PUT("/:username/password", userController.ChangePassword)
		users.GET("/:username/followers", userController.Followers)
		users.GET("/:username/followings", userController.Followings)

		// Relationship actions
		users.PUT("/:username/follow", relationshipController.Follow)
		users.PUT("/:username/unfollow", relationshipController.Unfollow)
		users.PUT("/:username/block", relationshipController.Block)
		users.PUT("/:username/unblock", relationshipController.Unblock)
	}
}
