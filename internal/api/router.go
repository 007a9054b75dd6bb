package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/qianh/prompt-tower/config"
	_ "github.com/qianh/prompt-tower/docs"
	"github.com/qianh/prompt-tower/internal/api/v1/auth"
	"github.com/qianh/prompt-tower/internal/api/v1/llm"
	"github.com/qianh/prompt-tower/internal/api/v1/prompts"
	"github.com/qianh/prompt-tower/internal/api/v1/tags"
	userRoutes "github.com/qianh/prompt-tower/internal/api/v1/user"
	"github.com/qianh/prompt-tower/internal/mcp"
	"github.com/qianh/prompt-tower/internal/middleware"
	"github.com/qianh/prompt-tower/internal/services"
)

// Dependencies are the services behind the REST API.
type Dependencies struct {
	Config  *config.Config
	Prompts *services.PromptService
	Tags    *services.TagRegistry
	Auth    *services.AuthService
	Users   *services.UserService
	LLM     *services.LLMService
}

func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config

	router := gin.New()
	router.Use(middleware.Logger(), gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           5 * time.Minute,
	}))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    cfg.AppName,
			"version": cfg.AppVersion,
			"status":  "running",
		})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	authMW := middleware.AuthMiddleware(deps.Auth)

	v1 := router.Group(cfg.APIPrefix)
	{
		auth.RegisterRoutes(v1, auth.NewHandler(deps.Auth, cfg.AccessTokenTTL()), authMW)
		prompts.RegisterRoutes(v1, prompts.NewHandler(deps.Prompts), authMW)
		tags.RegisterRoutes(v1, tags.NewHandler(deps.Tags), authMW)
		userRoutes.RegisterRoutes(v1, userRoutes.NewHandler(deps.Users), authMW)
		llm.RegisterRoutes(v1, llm.NewHandler(deps.LLM))
	}

	return router
}

// NewMCPRouter serves the MCP transport. Origin checks for /mcp happen in the
// server itself; CORS only has to expose the session header to browsers.
func NewMCPRouter(server *mcp.Server) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Logger(), gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Last-Event-ID", mcp.HeaderSessionID},
		ExposeHeaders:   []string{mcp.HeaderSessionID},
		MaxAge:          5 * time.Minute,
	}))

	server.RegisterRoutes(router)
	return router
}
