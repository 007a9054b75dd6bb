package tags

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.RouterGroup, h *Handler, authMW gin.HandlerFunc) {
	group := router.Group("/tags")
	group.Use(authMW)
	{
		group.GET("", h.ListTags)
		group.POST("", h.CreateTag)
	}
}
