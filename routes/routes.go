package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"chirp/handlers"
	"chirp/middleware"
	"chirp/toggle"
)

type Options struct {
	JWTSecret   string
	CORSOrigins []string
	RateLimiter *middleware.IPRateLimiter
}

// SetupRouter wires every endpoint. handlers.Configure must have been
// called first.
func SetupRouter(opts Options) *gin.Engine {
	router := gin.Default()

	corsConfig := cors.Config{
		AllowOrigins:     opts.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(opts.CORSOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	}
	router.GET("/health", health)
	router.GET("/api/health", health)

	api := router.Group("/api")
	if opts.RateLimiter != nil {
		api.Use(middleware.RateLimitMiddleware(opts.RateLimiter))
	}

	// Public routes
	api.POST("/signup", handlers.Signup)
	api.POST("/login", handlers.Login)
	api.GET("/posts/:id/comments", handlers.GetComments)

	// Readable anonymously; personalised when a token is sent.
	public := api.Group("")
	public.Use(middleware.OptionalAuthMiddleware(opts.JWTSecret))
	public.GET("/feed", handlers.GetFeed)
	public.GET("/posts/:id", handlers.GetPost)
	public.GET("/users/:handle", handlers.GetUserProfile)
	public.GET("/users/:handle/posts", handlers.GetUserPosts)

	protected := api.Group("")
	protected.Use(middleware.JWTAuthMiddleware(opts.JWTSecret))

	// Profile
	protected.GET("/me", handlers.GetMyProfile)
	protected.PUT("/me", handlers.UpdateMyProfile)

	// Posts
	protected.POST("/posts", handlers.CreatePost)
	protected.POST("/posts/:id/comments", handlers.AddComment)

	// Memberships
	protected.POST("/posts/:id/like", handlers.SetRelation(toggle.Like, true))
	protected.DELETE("/posts/:id/like", handlers.SetRelation(toggle.Like, false))
	protected.POST("/posts/:id/like/toggle", handlers.ToggleRelation(toggle.Like))
	protected.POST("/posts/:id/repost", handlers.SetRelation(toggle.Repost, true))
	protected.DELETE("/posts/:id/repost", handlers.SetRelation(toggle.Repost, false))
	protected.POST("/posts/:id/repost/toggle", handlers.ToggleRelation(toggle.Repost))
	protected.POST("/users/:handle/follow", handlers.SetRelation(toggle.Follow, true))
	protected.DELETE("/users/:handle/follow", handlers.SetRelation(toggle.Follow, false))
	protected.POST("/users/:handle/follow/toggle", handlers.ToggleRelation(toggle.Follow))

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"path":    c.Request.URL.Path,
				"message": "Endpoint not found",
			})
			return
		}
		c.String(http.StatusNotFound, "404 page not found")
	})

	return router
}
