package api

import (
	"net/http"

	"fittrack/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires the handlers into the route tree. The path layout
// mirrors the public API: /api/auth/* for accounts, /api/activities/* for
// activity CRUD, statistics, bulk update and recent listings.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	activityService service.ActivityService,
) {
	authHandler := NewAuthHandler(authService, activityService)
	activityHandler := NewActivityHandler(activityService, authService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiGroup := router.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		{
			authGroup.POST("/register/", authHandler.Register)
			authGroup.POST("/login/", authHandler.Login)
			authGroup.POST("/token/refresh/", authHandler.Refresh)

			authProtected := authGroup.Group("")
			authProtected.Use(authMiddleware)
			{
				authProtected.POST("/logout/", authHandler.Logout)
				authProtected.GET("/profile/", authHandler.GetProfile)
				authProtected.PUT("/profile/", authHandler.UpdateProfile)
				authProtected.PATCH("/profile/", authHandler.UpdateProfile)
				authProtected.GET("/dashboard/", authHandler.Dashboard)
			}
		}

		activityGroup := apiGroup.Group("/activities")
		activityGroup.Use(authMiddleware)
		{
			activityGroup.GET("/", activityHandler.ListActivities)
			activityGroup.POST("/", activityHandler.CreateActivity)

			// Fixed paths must be registered before the :id parameter so
			// /stats/ doesn't resolve as an activity ID.
			activityGroup.GET("/stats/", activityHandler.ActivityStats)
			activityGroup.POST("/bulk-update/", activityHandler.BulkUpdateStatus)
			activityGroup.GET("/recent/", activityHandler.RecentActivities)

			activityGroup.GET("/:id/", activityHandler.GetActivity)
			activityGroup.PUT("/:id/", activityHandler.UpdateActivity)
			activityGroup.PATCH("/:id/", activityHandler.UpdateActivity)
			activityGroup.DELETE("/:id/", activityHandler.DeleteActivity)
		}
	}
}
