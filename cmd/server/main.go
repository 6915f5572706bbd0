package main

import (
	"log"
	"os"
	"time"

	"notebook-api/internal/auth"
	"notebook-api/internal/cache"
	"notebook-api/internal/database"
	"notebook-api/internal/handlers"
	"notebook-api/internal/middleware"
	"notebook-api/internal/overflow"
	"notebook-api/internal/realtime"
	"notebook-api/internal/routes"
)

// openOverflow selects the durable overflow backend from CACHE_OVERFLOW:
// "sqlite" (default) shares the application database, "bolt" uses a
// standalone file, "off" disables spillover.
func openOverflow() cache.DurableStore {
	switch os.Getenv("CACHE_OVERFLOW") {
	case "off":
		return nil
	case "bolt":
		path := os.Getenv("CACHE_OVERFLOW_PATH")
		if path == "" {
			path = "notebook-overflow.db"
		}
		store, err := overflow.OpenBolt(path, "")
		if err != nil {
			log.Fatal("Failed to open overflow store: ", err)
		}
		return store
	default:
		return overflow.NewSQLiteStore(database.GetDB())
	}
}

func main() {
	// Init database
	database.InitDB()

	durable := openOverflow()
	hub := realtime.NewHub()

	// One engine per cache namespace; instances share no state.
	sessions := cache.New[auth.Claims](cache.Config{
		MaxTotalSize: 4 << 20,
		DefaultTTL:   24 * time.Hour,
	}, cache.Options[auth.Claims]{ConcurrencySafe: true})

	pages := cache.New[handlers.NotePage](cache.Config{
		MaxItemSize:  256 << 10,
		MaxTotalSize: 16 << 20,
		DefaultTTL:   time.Minute,
	}, cache.Options[handlers.NotePage]{
		ConcurrencySafe: true,
		Durable:         durable,
		OnEvict:         hub.Notifier("pages"),
	})

	responses := cache.New[middleware.CachedResponse](cache.Config{
		MaxItemSize:  512 << 10,
		MaxTotalSize: 8 << 20,
		DefaultTTL:   30 * time.Second,
	}, cache.Options[middleware.CachedResponse]{
		ConcurrencySafe: true,
		OnEvict:         hub.Notifier("responses"),
	})

	authManager, err := auth.NewManager(auth.Config{Sessions: sessions})
	if err != nil {
		log.Fatal("Failed to build auth manager: ", err)
	}

	notesHandler := &handlers.NoteHandler{Pages: pages}

	// Setup the routes (public and protected routes)
	ginRoutes := routes.SetupRoutes(routes.Deps{
		Auth:  authManager,
		Notes: notesHandler,
		Login: &handlers.AuthHandler{Auth: authManager},
		Stats: &handlers.CacheStatsHandler{Providers: map[string]cache.StatsProvider{
			"sessions":  sessions,
			"pages":     pages,
			"responses": responses,
		}},
		Events:    &handlers.EventsHandler{Hub: hub},
		Responses: responses,
	})

	// Start server
	port := ":8008" // This is customizable based on the environment
	log.Printf("Server starting on port %s", port)
	log.Println("API endpoints:")
	log.Println("  POST   /api/login")
	log.Println("  GET    /api/notes")
	log.Println("  GET    /api/notes/:id")
	log.Println("  POST   /api/notes")
	log.Println("  PUT    /api/notes/:id")
	log.Println("  PATCH  /api/notes/:id/pin")
	log.Println("  DELETE /api/notes/:id")
	log.Println("  GET    /api/users")
	log.Println("  GET    /api/cache/stats")
	log.Println("  GET    /api/cache/events (websocket)")
	log.Println("  GET    /health")

	if err := ginRoutes.Run(port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
