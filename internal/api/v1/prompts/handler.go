package prompts

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qianh/prompt-tower/internal/middleware"
	"github.com/qianh/prompt-tower/internal/models"
	"github.com/qianh/prompt-tower/internal/services"
	"github.com/qianh/prompt-tower/internal/utils"
)

const defaultSearchLimit = 20

type Handler struct {
	svc *services.PromptService
}

func NewHandler(svc *services.PromptService) *Handler {
	return &Handler{svc: svc}
}

// ListPrompts godoc
// @Summary List prompts
// @Description List all prompts ordered by title, optionally filtered by status and tag
// @Tags prompts
// @Produce json
// @Param status query string false "Filter by status" Enums(enabled, disabled)
// @Param tag query string false "Filter by tag"
// @Success 200 {object} utils.Response{data=[]models.Prompt}
// @Failure 400 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /prompts [get]
func (h *Handler) ListPrompts(c *gin.Context) {
	status := models.PromptStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid status filter"))
		return
	}

	list, err := h.svc.List(c.Request.Context(), services.PromptFilter{Status: status, Tag: c.Query("tag")})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", list))
}

// GetPrompt godoc
// @Summary Get a prompt
// @Tags prompts
// @Produce json
// @Param title path string true "Prompt title"
// @Success 200 {object} utils.Response{data=models.Prompt}
// @Failure 404 {object} utils.Response
// @Router /prompts/{title} [get]
func (h *Handler) GetPrompt(c *gin.Context) {
	prompt, err := h.svc.Get(c.Request.Context(), c.Param("title"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", prompt))
}

// CreatePrompt godoc
// @Summary Create a prompt
// @Description Create a prompt owned by the current user. Tags are added to the tag registry; failures are reported as tag_warnings.
// @Tags prompts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body CreatePromptRequest true "Prompt"
// @Success 201 {object} utils.Response{data=PromptResponse}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Router /prompts [post]
func (h *Handler) CreatePrompt(c *gin.Context) {
	var req CreatePromptRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, "Unauthorized"))
		return
	}

	prompt, outcomes, err := h.svc.Create(c.Request.Context(), services.PromptInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
		Remark:  req.Remark,
		Status:  models.PromptStatus(req.Status),
	}, user.Username)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, utils.NewResponse(http.StatusCreated, "Prompt created successfully", newPromptResponse(prompt, outcomes)))
}

// UpdatePrompt godoc
// @Summary Update a prompt
// @Description Update a prompt owned by the current user. Changing the title renames it.
// @Tags prompts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param title path string true "Prompt title"
// @Param request body UpdatePromptRequest true "Fields to change"
// @Success 200 {object} utils.Response{data=PromptResponse}
// @Failure 400 {object} utils.Response
// @Failure 403 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Router /prompts/{title} [put]
func (h *Handler) UpdatePrompt(c *gin.Context) {
	var req UpdatePromptRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, "Unauthorized"))
		return
	}

	prompt, outcomes, err := h.svc.Update(c.Request.Context(), c.Param("title"), req.patch(), user.Username)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Prompt updated successfully", newPromptResponse(prompt, outcomes)))
}

// DeletePrompt godoc
// @Summary Delete a prompt
// @Tags prompts
// @Produce json
// @Security ApiKeyAuth
// @Param title path string true "Prompt title"
// @Success 200 {object} utils.Response
// @Failure 403 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Router /prompts/{title} [delete]
func (h *Handler) DeletePrompt(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, "Unauthorized"))
		return
	}
	if err := h.svc.Delete(c.Request.Context(), c.Param("title"), user.Username); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Prompt deleted successfully", nil))
}

// SearchPrompts godoc
// @Summary Search prompts
// @Description Rank prompts by title, tag and content matches
// @Tags prompts
// @Accept json
// @Produce json
// @Param request body SearchRequest true "Search"
// @Success 200 {object} utils.Response{data=SearchResponse}
// @Failure 400 {object} utils.Response
// @Router /prompts/search [post]
func (h *Handler) SearchPrompts(c *gin.Context) {
	var req SearchRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultSearchLimit
	}

	hits, err := h.svc.Search(c.Request.Context(), services.SearchOptions{Query: req.Query, Fields: req.SearchIn})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	resp := SearchResponse{Results: []SearchResult{}, Total: len(hits), Query: req.Query}
	for i, hit := range hits {
		if i == limit {
			break
		}
		resp.Results = append(resp.Results, SearchResult{Prompt: hit.Prompt, Score: hit.Score})
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", resp))
}

// ToggleStatus godoc
// @Summary Toggle a prompt between enabled and disabled
// @Tags prompts
// @Produce json
// @Security ApiKeyAuth
// @Param title path string true "Prompt title"
// @Success 200 {object} utils.Response{data=models.Prompt}
// @Failure 403 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Router /prompts/{title}/toggle-status [post]
func (h *Handler) ToggleStatus(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, "Unauthorized"))
		return
	}
	prompt, err := h.svc.ToggleStatus(c.Request.Context(), c.Param("title"), user.Username)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Prompt status updated", prompt))
}

// IncrementUsage godoc
// @Summary Record one use of a prompt
// @Tags prompts
// @Produce json
// @Param title path string true "Prompt title"
// @Success 200 {object} utils.Response{data=models.Prompt}
// @Failure 404 {object} utils.Response
// @Router /prompts/{title}/increment-usage [post]
func (h *Handler) IncrementUsage(c *gin.Context) {
	prompt, err := h.svc.IncrementUsage(c.Request.Context(), c.Param("title"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Usage count incremented", prompt))
}
