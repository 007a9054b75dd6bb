package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qianh/prompt-tower/internal/services"
	"github.com/qianh/prompt-tower/internal/utils"
)

type Handler struct {
	svc *services.UserService
}

func NewHandler(svc *services.UserService) *Handler {
	return &Handler{svc: svc}
}

func toResponse(s services.UserSummary) UserResponse {
	return UserResponse{ID: s.ID, Username: s.Username, PromptCount: s.PromptCount}
}

// ListUsers godoc
// @Summary List users
// @Description Get every user with the number of prompts they created
// @Tags user
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=[]user.UserResponse}
// @Failure 401 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	summaries, err := h.svc.List(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	out := make([]UserResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toResponse(s))
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", out))
}

// GetUser godoc
// @Summary Get a user
// @Tags user
// @Produce json
// @Security ApiKeyAuth
// @Param username path string true "Username"
// @Success 200 {object} utils.Response{data=user.UserResponse}
// @Failure 401 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Router /users/{username} [get]
func (h *Handler) GetUser(c *gin.Context) {
	summary, err := h.svc.Get(c.Request.Context(), c.Param("username"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", toResponse(*summary)))
}
