package user

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.RouterGroup, h *Handler, authMW gin.HandlerFunc) {
	users := router.Group("/users")
	users.Use(authMW)
	{
		users.GET("", h.ListUsers)
		users.GET("/:username", h.GetUser)
	}
}
