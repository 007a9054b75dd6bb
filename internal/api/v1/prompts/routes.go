package prompts

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.RouterGroup, h *Handler, authMW gin.HandlerFunc) {
	group := router.Group("/prompts")
	{
		group.GET("", h.ListPrompts)
		group.GET("/:title", h.GetPrompt)
		group.POST("/search", h.SearchPrompts)
		group.POST("/:title/increment-usage", h.IncrementUsage)
	}

	protected := router.Group("/prompts")
	protected.Use(authMW)
	{
		protected.POST("", h.CreatePrompt)
		protected.PUT("/:title", h.UpdatePrompt)
		protected.DELETE("/:title", h.DeletePrompt)
		protected.POST("/:title/toggle-status", h.ToggleStatus)
	}
}
