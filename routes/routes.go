package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/snap-point/social-api/controllers"
	"github.com/snap-point/social-api/middleware"
	"github.com/snap-point/social-api/realtime"
	"github.com/snap-point/social-api/services"
	"github.com/snap-point/social-api/utils"
)

// Dependencies is everything the handlers need.
type Dependencies struct {
	Services *services.Services
	Tokens   *utils.TokenIssuer
	Hub      *realtime.Hub
	Upgrader *websocket.Upgrader
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

func SetupRoutes(r *gin.Engine, deps Dependencies) {
	// Initialize controllers
	authController := controllers.NewAuthController(deps.Services.Auth)
	userController := controllers.NewUserController(deps.Services)
	relationshipController := controllers.NewRelationshipController(deps.Services.Relationships)
	notificationController := controllers.NewNotificationController(deps.Services.Notifications)
	uploadController := controllers.NewUploadController(deps.Services.Profiles)
	postController := controllers.NewPostController(deps.Services.Posts)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// Public routes
	public := r.Group("/api")
	{
		public.POST("/register", authController.Register)
		public.POST("/login", authController.Login)
		public.POST("/refresh", authController.RefreshToken)
		public.POST("/logout", authController.Logout)
		public.POST("/auth/google", authController.GoogleLogin)
	}

	// Protected routes
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware(deps.Tokens))
	{
		protected.GET("/me", userController.Me)
		protected.GET("/notifications", notificationController.GetNotifications)

		SetupUserRoutes(protected, userController, relationshipController)
		SetupPostRoutes(protected, postController)
		SetupUploadRoutes(protected, uploadController)

		if deps.Hub != nil {
			realtimeController := controllers.NewRealtimeController(deps.Hub, deps.Upgrader)
			protected.GET("/ws", realtimeController.Connect)
		}
	}
}
