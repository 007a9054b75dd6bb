package llm

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.RouterGroup, h *Handler) {
	llm := router.Group("/llm")
	llm.POST("/optimize", h.Optimize)
	llm.GET("/providers", h.ListProviders)
	llm.GET("/providers/:provider/test", h.TestProvider)
	llm.GET("/config", h.GetConfig)
}
