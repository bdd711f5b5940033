package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/docuchat/docuchat/internal/adapter/ai"
	"github.com/docuchat/docuchat/internal/adapter/store"
	"github.com/docuchat/docuchat/internal/handler"
	"github.com/docuchat/docuchat/internal/mcp"
	"github.com/docuchat/docuchat/internal/middleware"
	"github.com/docuchat/docuchat/internal/port"
	"github.com/docuchat/docuchat/internal/service"
	"github.com/docuchat/docuchat/pkg/config"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting DocuChat",
		"port", cfg.Port,
		"ai_provider", cfg.AIProvider,
		"embedding_dimension", cfg.EmbeddingDimension,
		"mcp_enabled", cfg.MCPEnabled,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := pgStore.Init(initCtx, cfg.EmbeddingDimension); err != nil {
		cancel()
		slog.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}
	cancel()

	vectorStore := store.NewVectorStore(pgStore, cfg.EmbeddingDimension)

	// ── AI provider ──────────────────────────────────────────────────────
	var aiProvider port.AIProvider
	switch cfg.AIProvider {
	case "ollama":
		aiProvider = ai.NewOllamaProvider(
			ai.OllamaEndpointConfig{
				BaseURL: cfg.OllamaEmbedURL,
				Model:   cfg.OllamaEmbedModel,
				Token:   cfg.OllamaEmbedToken,
			},
			ai.OllamaEndpointConfig{
				BaseURL: cfg.OllamaChatURL,
				Model:   cfg.OllamaChatModel,
				Token:   cfg.OllamaChatToken,
			},
		)
	default:
		aiProvider = ai.NewOpenAIProvider(ai.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			ChatModel:  cfg.OpenAIChatModel,
			EmbedModel: cfg.OpenAIEmbedModel,
		})
	}

	// ── Services ─────────────────────────────────────────────────────────
	authService := service.NewAuthService(pgStore, cfg)
	docService := service.NewDocumentService(aiProvider, vectorStore, cfg.ChunkSize, cfg.ChunkOverlap, cfg.EmbedBatchSize)
	chatService := service.NewChatService(aiProvider, vectorStore, pgStore)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    cfg.MaxUploadMB << 20,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	// Audit middleware (logs all requests)
	app.Use(middleware.AuditMiddleware(pgStore))

	// ── Public Routes ────────────────────────────────────────────────────
	authHandler := handler.NewAuthHandler(authService, pgStore)
	authHandler.Register(app)

	healthHandler := handler.NewHealthHandler(pgStore.DB(), vectorStore, cfg.AppName)
	healthHandler.Register(app)

	// ── Protected Routes ─────────────────────────────────────────────────
	jwtMiddleware := middleware.JWTMiddleware(middleware.JWTConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		ExpiresIn: time.Duration(cfg.JWTExpiration) * time.Hour,
	})

	api := app.Group("/api/v1", jwtMiddleware)

	authHandler.RegisterProtected(api)

	jobTracker := handler.NewJobTracker()

	sessionHandler := handler.NewSessionHandler(pgStore)
	sessionHandler.Register(api)

	chatHandler := handler.NewChatHandler(chatService, pgStore, cfg)
	chatHandler.Register(api)

	documentHandler := handler.NewDocumentHandler(docService, chatService, pgStore, vectorStore, jobTracker, cfg)
	documentHandler.Register(api)

	jobsHandler := handler.NewJobsHandler(jobTracker)
	jobsHandler.Register(api)

	auditHandler := handler.NewAuditHandler(pgStore)
	auditHandler.Register(api)

	adminHandler := handler.NewAdminHandler(pgStore, vectorStore)
	adminHandler.Register(api)

	// ── MCP Server (separate port) ───────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(chatService, pgStore, cfg.TopK, cfg.SimilarityThreshold, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
