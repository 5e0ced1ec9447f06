package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/devhivehq/devhive-backend/internal/cache"
	"github.com/devhivehq/devhive-backend/internal/handlers"
	"github.com/devhivehq/devhive-backend/internal/handlers/ws"
	"github.com/devhivehq/devhive-backend/internal/httpx"
	"github.com/devhivehq/devhive-backend/internal/middleware"
	"github.com/devhivehq/devhive-backend/internal/notify"
	"github.com/devhivehq/devhive-backend/internal/repository"
	"github.com/devhivehq/devhive-backend/internal/service"
	"github.com/devhivehq/devhive-backend/internal/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName: "DevHive Conversations",
		// Support attachment uploads up to 25MB + overhead.
		BodyLimit: 28 * 1024 * 1024,
	})

	// Middleware
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     os.Getenv("ALLOWED_ORIGINS"),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	// Initialize database connection
	db, err := repository.InitDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize Redis cache
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsedDB, err := strconv.Atoi(dbStr); err == nil {
			redisDB = parsedDB
		}
	}

	redisCache := cache.NewRedisCache(redisAddr, redisPassword, redisDB)
	if err := redisCache.Ping(); err != nil {
		log.Printf("WARNING: Redis connection failed: %v. Running without cache.", err)
		redisCache = nil
	} else {
		log.Println("Redis cache connected successfully")
	}

	conversationCache := cache.NewConversationCache(redisCache)
	presenceCache := cache.NewPresenceCache(redisCache)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// Notification fan-out through asynq; workers may run in this process
	// or in a dedicated one.
	var notifier notify.Notifier
	if redisCache != nil {
		asynqNotifier := notify.NewAsynqNotifier(redisAddr, redisPassword, redisDB)
		defer asynqNotifier.Close()
		notifier = asynqNotifier

		if os.Getenv("NOTIFY_WORKER") == "inline" {
			worker := notify.NewWorker(redisAddr, redisPassword, redisDB, notify.LogSink{})
			go func() {
				if err := worker.Run(); err != nil {
					log.Printf("notification worker stopped: %v", err)
				}
			}()
			defer worker.Shutdown()
		}
	} else {
		notifier = notify.NopNotifier{}
	}

	// Initialize services
	conversationService := service.NewConversationService(conversationRepo, participantRepo, userRepo)
	messageService := service.NewMessageService(messageRepo, participantRepo, notifier)

	// Initialize S3/MinIO storage (best-effort; feature endpoints return 503 if missing)
	var attachmentStore *storage.AttachmentStore
	if cfg, err := storage.LoadS3ConfigFromEnv(); err != nil {
		log.Printf("WARNING: attachment storage not configured: %v", err)
	} else if st, err := storage.NewAttachmentStore(cfg); err != nil {
		log.Printf("WARNING: failed to initialize attachment storage: %v", err)
	} else {
		attachmentStore = st
		log.Printf("Attachment storage initialized successfully (bucket=%s)", cfg.Bucket)
	}

	// Initialize handlers
	hub := ws.NewHub(presenceCache)
	wsHandler := handlers.NewWebSocketHandler(messageService, conversationService, userRepo, hub)
	conversationHandler := handlers.NewConversationHandler(conversationService, messageService, conversationCache, hub)
	messageHandler := handlers.NewMessageHandler(messageService, conversationService, conversationCache, hub)
	attachmentHandler := handlers.NewAttachmentHandler(attachmentStore, conversationService)

	api := app.Group("/api", middleware.OriginAllowed())

	// Protected routes
	protected := api.Group("/", middleware.AuthRequired())

	protected.Post("/conversations/direct", conversationHandler.CreateDirect)
	protected.Post("/conversations/group", conversationHandler.CreateGroup)
	protected.Get("/conversations", conversationHandler.ListConversations)
	protected.Get("/conversations/:id/messages", messageHandler.GetMessages)
	protected.Post("/conversations/:id/read", conversationHandler.MarkRead)
	protected.Post("/conversations/:id/mute", conversationHandler.SetMuted)
	protected.Post("/conversations/:id/clear", conversationHandler.Clear)
	protected.Put("/conversations/:id", conversationHandler.UpdateMeta)
	protected.Put("/conversations/:id/roles", conversationHandler.UpdateRole)
	protected.Delete("/conversations/:id", conversationHandler.Delete)

	protected.Post("/messages", limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if uid, err := httpx.LocalUint(c, "userID"); err == nil {
				return "send:" + strconv.FormatUint(uint64(uid), 10)
			}
			return c.IP()
		},
	}), messageHandler.SendMessage)
	protected.Put("/messages/:id", messageHandler.EditMessage)
	protected.Delete("/messages/:id", messageHandler.DeleteMessage)

	protected.Post("/conversations/:id/attachments", attachmentHandler.Upload)
	protected.Get("/conversations/:id/attachments", attachmentHandler.Download)

	// WebSocket route (websocket upgrade needs special handling)
	app.Use(
		"/ws",
		middleware.OriginAllowed(),
		middleware.AuthRequired(),
		func(c *fiber.Ctx) error {
			// Upgrade to WebSocket
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		},
	)
	app.Get("/ws", websocket.New(wsHandler.HandleWebSocket))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"connections": hub.Count(),
		})
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s...", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
