package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"kakachat/internal/assistant"
	"kakachat/internal/blobstore"
	"kakachat/internal/config"
	"kakachat/internal/handlers"
	"kakachat/internal/queue"
	"kakachat/internal/realtime"
	"kakachat/internal/repositories"
	"kakachat/internal/routes"
	"kakachat/internal/services"
)

func Run() {
	_ = godotenv.Load()
	cfg := config.LoadConfig()

	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatal("zap.NewProduction: ", err)
	}
	defer zlog.Sync()
	logger := zlog.Sugar()

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		logger.Fatalw("open database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Errorw("close database", "error", err)
		}
	}()
	if err := db.Ping(); err != nil {
		logger.Fatalw("ping database", "error", err)
	}

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	conversationRepo := repositories.NewConversationRepository(db)
	messageRepo := repositories.NewMessageRepository(db)
	passwordResetRepo := repositories.NewPasswordResetRepository(db)

	// === Blob storage ===
	blobs, err := blobstore.New(cfg.Files.RootDir, cfg.Files.PublicURL)
	if err != nil {
		logger.Fatalw("init blob store", "error", err)
	}

	// === Queue (AMQP или in-memory) ===
	var (
		jobClient queue.Client
		jobServer queue.Server
	)
	if cfg.Queue.AMQPURL != "" {
		q, err := queue.NewAMQP(cfg.Queue.AMQPURL, logger)
		if err != nil {
			logger.Fatalw("connect rabbitmq", "error", err)
		}
		defer q.Close()
		jobClient, jobServer = q, q
	} else {
		logger.Info("no AMQP url configured, using in-memory job queue")
		q := queue.NewMemory(logger)
		defer q.Close()
		jobClient, jobServer = q, q
	}

	// === Services ===
	authService := services.NewAuthService(cfg.Auth.JWTSecret)

	var emailService services.EmailService
	if cfg.Email.SMTPHost != "" {
		emailService = services.NewEmailService(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword,
			cfg.Email.FromEmail,
		)
	}

	userService := services.NewUserService(logger, userRepo, emailService, authService)
	passwordResetService := services.NewPasswordResetService(logger, userRepo, passwordResetRepo, emailService, authService)
	conversationService := services.NewConversationService(conversationRepo, userRepo, blobs)

	hub := realtime.NewConversationHub()
	messageService := services.NewMessageService(
		logger, messageRepo, conversationRepo, userRepo, blobs,
		jobClient, cfg.Queue.JobDelay(), hub,
	)

	// === Assistant worker ===
	gemini := assistant.NewClient(
		cfg.Gemini.APIKey,
		cfg.Gemini.BaseURL,
		cfg.Gemini.ChatModel,
		cfg.Gemini.ImageModel,
		cfg.Gemini.DryRun,
	)
	worker := assistant.NewWorker(logger, gemini, messageService, blobs)
	worker.Register(jobServer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := jobServer.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Errorw("job server stopped", "error", err)
		}
	}()

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(logger, userService, authService, passwordResetService)
	userHandler := handlers.NewUserHandler(userService)
	conversationHandler := handlers.NewConversationHandler(conversationService)
	messageHandler := handlers.NewMessageHandler(messageService, conversationService, hub)
	storageHandler := handlers.NewStorageHandler(blobs)

	// === Gin ===
	router := gin.Default()
	router.Use(corsMiddleware())

	routes.SetupRoutes(
		router,
		authService,
		authHandler,
		userHandler,
		conversationHandler,
		messageHandler,
		storageHandler,
	)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Infow("server starting", "addr", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		logger.Fatalw("run server", "error", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
