package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/qianh/prompt-tower/config"
	"github.com/qianh/prompt-tower/internal/api"
	"github.com/qianh/prompt-tower/internal/database"
	"github.com/qianh/prompt-tower/internal/mcp"
	"github.com/qianh/prompt-tower/internal/services"
	"github.com/qianh/prompt-tower/internal/storage"
	"github.com/qianh/prompt-tower/internal/utils"
	"github.com/qianh/prompt-tower/pkg/logger"
)

// @title Prompt Management System API
// @version 1.0
// @description Prompt library with tag registry, accounts, LLM-assisted optimization and an MCP endpoint.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8010
// @BasePath /api/v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.InitLogger(&logger.Config{
		Level:      cfg.LogLevel,
		Filename:   cfg.LogFilename,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Log.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	redisClient, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Log.Warn("Redis not configured, logout will not revoke tokens")
	}

	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL())
	registry := services.NewTagRegistry(store, logger.Named("tags"))
	prompts := services.NewPromptService(store, registry, logger.Named("prompts"))
	authSvc := services.NewAuthService(store, tokens, services.NewTokenDenylist(redisClient), logger.Named("auth"))

	if tags, err := registry.SyncFromPrompts(ctx); err != nil {
		logger.Log.Error("Tag sync from prompts failed", zap.Error(err))
	} else {
		logger.Log.Info("Tag sync complete", zap.Int("tags", len(tags)))
	}

	router := api.NewRouter(api.Dependencies{
		Config:  cfg,
		Prompts: prompts,
		Tags:    registry,
		Auth:    authSvc,
		Users:   services.NewUserService(store),
		LLM:     services.NewLLMServiceFromConfig(cfg, logger.Named("llm")),
	})

	sessions, err := mcp.NewSessionStore(cfg.MCPSessionBackend, redisClient, cfg.MCPSessionTTL, cfg.MCPMaxSessions)
	if err != nil {
		return err
	}
	dispatcher, err := mcp.NewDispatcher(prompts, logger.Named("mcp"))
	if err != nil {
		return err
	}
	mcpServer := mcp.NewServer(dispatcher, sessions, mcp.ServerOptions{
		AllowedOrigins: cfg.MCPAllowedOrigins,
		PingInterval:   cfg.MCPPingInterval,
		MaxBodyBytes:   int64(cfg.MCPMaxBodyBytes),
	}, logger.Named("mcp"))

	servers := []*http.Server{
		{Addr: cfg.APIAddr(), Handler: router},
		{
			Addr:    cfg.MCPAddr(),
			Handler: api.NewMCPRouter(mcpServer),
			// SSE streams only end when their request context does.
			BaseContext: func(net.Listener) context.Context { return ctx },
		},
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Log.Info("Listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Log.Info("Shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Server shutdown failed", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}
	return serveErr
}

// openStore picks the relational store when USE_DATABASE is set and the
// YAML file store otherwise.
func openStore(cfg *config.Config) (storage.Store, error) {
	if !cfg.UseDatabase {
		return storage.NewFileStore(cfg.PromptTemplateDir, cfg.DataDir, logger.Named("storage"))
	}
	db, err := database.Connect(cfg, logger.Named("database"))
	if err != nil {
		return nil, err
	}
	return storage.NewDBStore(db)
}
