package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qianh/prompt-tower/internal/middleware"
	"github.com/qianh/prompt-tower/internal/services"
	"github.com/qianh/prompt-tower/internal/utils"
)

type Handler struct {
	auth     *services.AuthService
	tokenTTL time.Duration
}

func NewHandler(auth *services.AuthService, tokenTTL time.Duration) *Handler {
	return &Handler{auth: auth, tokenTTL: tokenTTL}
}

// Signup godoc
// @Summary Register a new user
// @Description Register a new user with a username and password
// @Tags auth
// @Accept  json
// @Produce  json
// @Param   input     body   SignupRequest  true  "Signup Input"
// @Success 201 {object} utils.Response{data=models.PublicUser}
// @Failure 400 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /auth/signup [post]
func (h *Handler) Signup(c *gin.Context) {
	var input SignupRequest
	if !utils.BindAndValidate(c, &input) {
		return
	}

	u, err := h.auth.Signup(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, utils.NewResponse(http.StatusCreated, "User registered successfully", u))
}

// Login godoc
// @Summary Log in a user
// @Description Exchange a username and password for a bearer token. Accepts form or JSON bodies.
// @Tags auth
// @Accept  json,x-www-form-urlencoded
// @Produce  json
// @Param   input     body   LoginRequest  true  "Login Input"
// @Success 200 {object} utils.Response{data=TokenResponse}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var input LoginRequest
	if !utils.BindFormOrJSON(c, &input) {
		return
	}

	token, err := h.auth.Login(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		c.Header("WWW-Authenticate", "Bearer")
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Logged in successfully", TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(h.tokenTTL.Seconds()),
	}))
}

// Logout godoc
// @Summary Log out a user
// @Description Revoke the current token until it expires
// @Tags auth
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	token := c.GetString(middleware.ContextTokenKey)
	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Logged out successfully", nil))
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=models.PublicUser}
// @Failure 401 {object} utils.Response
// @Router /auth/users/me [get]
func (h *Handler) Me(c *gin.Context) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, "Unauthorized"))
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", u.Public()))
}
