package tags

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/qianh/prompt-tower/internal/apperr"
	"github.com/qianh/prompt-tower/internal/services"
	"github.com/qianh/prompt-tower/internal/utils"
)

type Handler struct {
	registry *services.TagRegistry
}

func NewHandler(registry *services.TagRegistry) *Handler {
	return &Handler{registry: registry}
}

// ListTags godoc
// @Summary List tags
// @Description Get every registered tag, sorted ignoring case
// @Tags tags
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=[]TagResponse}
// @Failure 401 {object} utils.Response
// @Router /tags [get]
func (h *Handler) ListTags(c *gin.Context) {
	names, err := h.registry.GetAll(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	out := make([]TagResponse, 0, len(names))
	for _, name := range names {
		out = append(out, TagResponse{Name: name})
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", out))
}

// CreateTag godoc
// @Summary Add a tag
// @Description Add a tag to the registry. An existing tag equal ignoring case is returned with its stored casing.
// @Tags tags
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body CreateTagRequest true "Tag"
// @Success 201 {object} utils.Response{data=TagResponse}
// @Failure 401 {object} utils.Response
// @Failure 422 {object} utils.Response
// @Router /tags [post]
func (h *Handler) CreateTag(c *gin.Context) {
	var req CreateTagRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	name, err := h.registry.Add(c.Request.Context(), req.Name)
	if errors.Is(err, apperr.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, utils.NewErrorResponse(http.StatusUnprocessableEntity, err.Error()))
		return
	}
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, utils.NewResponse(http.StatusCreated, "Tag created successfully", TagResponse{Name: name}))
}
