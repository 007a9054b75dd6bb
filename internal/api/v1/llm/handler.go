package llm

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qianh/prompt-tower/internal/services"
	"github.com/qianh/prompt-tower/internal/utils"
)

type Handler struct {
	svc *services.LLMService
}

func NewHandler(svc *services.LLMService) *Handler {
	return &Handler{svc: svc}
}

// Optimize godoc
// @Summary Optimize a prompt
// @Description Ask an LLM to improve a prompt. Other providers are tried when the preferred one fails.
// @Tags llm
// @Accept json
// @Produce json
// @Param request body OptimizeRequest true "Prompt to optimize"
// @Success 200 {object} utils.Response{data=services.OptimizeResult}
// @Failure 400 {object} utils.Response
// @Failure 502 {object} utils.Response
// @Router /llm/optimize [post]
func (h *Handler) Optimize(c *gin.Context) {
	var req OptimizeRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.Optimize(c.Request.Context(), services.OptimizeRequest{
		Content:  req.Content,
		Context:  req.Context,
		Provider: req.LLMProvider,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", result))
}

// ListProviders godoc
// @Summary List LLM providers
// @Tags llm
// @Produce json
// @Success 200 {object} utils.Response{data=ProvidersResponse}
// @Router /llm/providers [get]
func (h *Handler) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", ProvidersResponse{
		Providers: h.svc.Providers(),
		Default:   h.svc.DefaultProvider(),
	}))
}

// TestProvider godoc
// @Summary Test an LLM provider
// @Description Send a short request to one provider without falling back
// @Tags llm
// @Produce json
// @Param provider path string true "Provider name"
// @Success 200 {object} utils.Response{data=ProviderTestResponse}
// @Router /llm/providers/{provider}/test [get]
func (h *Handler) TestProvider(c *gin.Context) {
	name := c.Param("provider")
	ok := h.svc.TestProvider(c.Request.Context(), name)
	msg := "Connection failed"
	if ok {
		msg = "Connection succeeded"
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", ProviderTestResponse{
		Provider:  name,
		Available: ok,
		Message:   msg,
	}))
}

// GetConfig godoc
// @Summary LLM settings
// @Tags llm
// @Produce json
// @Success 200 {object} utils.Response{data=services.LLMConfigView}
// @Router /llm/config [get]
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", h.svc.Config()))
}
