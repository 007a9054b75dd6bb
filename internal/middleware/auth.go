package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qianh/prompt-tower/internal/apperr"
	"github.com/qianh/prompt-tower/internal/models"
	"github.com/qianh/prompt-tower/internal/utils"
)

const (
	ContextUserKey  = "user"
	ContextTokenKey = "token"
)

// TokenVerifier resolves a bearer token to a live user.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*models.User, error)
}

func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := utils.ExtractToken(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, err.Error()))
			c.Abort()
			return
		}

		user, err := verifier.VerifyToken(c.Request.Context(), tokenString)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			status := apperr.HTTPStatus(err)
			if status >= http.StatusInternalServerError {
				_ = c.Error(err)
				c.JSON(status, utils.NewErrorResponse(status, "Failed to check token status"))
			} else {
				c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, apperr.PublicMessage(err)))
			}
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextTokenKey, tokenString)
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
