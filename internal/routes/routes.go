package routes

import (
	"time"

	"notebook-api/internal/auth"
	"notebook-api/internal/cache"
	"notebook-api/internal/handlers"
	"notebook-api/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Deps carries the explicitly constructed collaborators so tests can wire
// isolated instances.
type Deps struct {
	Auth      *auth.Manager
	Notes     *handlers.NoteHandler
	Login     *handlers.AuthHandler
	Stats     *handlers.CacheStatsHandler
	Events    *handlers.EventsHandler
	Responses cache.Cache[middleware.CachedResponse]
}

func SetupRoutes(deps Deps) *gin.Engine {
	// Create a new GIN Router
	ginRouter := gin.Default()

	// CORS middleware (for frontend integration)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Notebook API is running",
		})
	})

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		// Login endpoint
		api.POST("/login", deps.Login.Login)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware(deps.Auth))
	{
		// Note endpoints
		protectedRoutes.GET("/notes", deps.Notes.GetNotes)
		protectedRoutes.GET("/notes/:id", middleware.ResponseCache(deps.Responses, 30*time.Second), deps.Notes.GetNoteByID)
		protectedRoutes.POST("/notes", deps.Notes.CreateNote)
		protectedRoutes.PUT("/notes/:id", deps.Notes.UpdateNote)
		protectedRoutes.PATCH("/notes/:id/pin", deps.Notes.UpdateNotePin)
		protectedRoutes.DELETE("/notes/:id", deps.Notes.DeleteNote)
		// Users endpoint
		protectedRoutes.GET("/users", handlers.GetAllUsers)
		// Cache introspection and eviction event stream
		protectedRoutes.GET("/cache/stats", deps.Stats.GetStats)
		protectedRoutes.GET("/cache/events", deps.Events.CacheEvents)
	}

	return ginRouter
}
