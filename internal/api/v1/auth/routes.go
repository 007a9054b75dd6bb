package auth

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.RouterGroup, h *Handler, authMW gin.HandlerFunc) {
	auth := router.Group("/auth")
	auth.POST("/signup", h.Signup)
	auth.POST("/login", h.Login)
	auth.POST("/logout", authMW, h.Logout)
	auth.GET("/users/me", authMW, h.Me)
}
