package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"marketchat/backend/internal/api/handler"
	"marketchat/backend/internal/chathub"
	"marketchat/backend/internal/config"
	"marketchat/backend/internal/identity"
	"marketchat/backend/internal/listing"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/storage"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.Message{},
		&models.ReadState{},
		&models.Idempotency{},
		&models.Listing{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting MarketChat Backend...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set!")
	}

	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	unread := chathub.NewUnread()
	catalog := listing.NewCatalog(s)
	router := chathub.NewRouter(s, unread, catalog)
	hub := chathub.NewHub(s)
	presence := chathub.NewPresence(s)
	idm := identity.NewManager(cfg.JWTSecret, cfg.JWTTTL, rdb)

	hub.StartPubSubListener()
	go hub.Run()
	go presence.Run()

	r := gin.Default()
	h := handler.NewHandler(hub, router, presence, unread, s, idm)

	r.POST("/auth/token", h.IssueToken)
	r.POST("/auth/logout", identity.Middleware(idm), h.Logout)

	api := r.Group("/api", identity.Middleware(idm))
	{
		api.POST("/rooms", h.CreateRoom)
		api.GET("/rooms", h.ListRooms)
		api.GET("/rooms/:id/messages", h.ListMessages)
		api.POST("/rooms/:id/messages", h.SendMessage)
		api.POST("/rooms/:id/read", h.MarkRead)
		api.POST("/rooms/:id/typing", h.Typing)
		api.GET("/unread", h.UnreadSummary)
	}

	r.GET("/ws", identity.WSMiddleware(idm), h.ServeWebSocket)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
