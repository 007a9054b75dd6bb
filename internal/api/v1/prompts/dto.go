package prompts

import (
	"github.com/qianh/prompt-tower/internal/models"
	"github.com/qianh/prompt-tower/internal/services"
)

type CreatePromptRequest struct {
	Title   string   `json:"title" binding:"required"`
	Content string   `json:"content" binding:"required"`
	Tags    []string `json:"tags"`
	Remark  string   `json:"remark"`
	Status  string   `json:"status" binding:"omitempty,oneof=enabled disabled"`
}

// UpdatePromptRequest carries the fields to change. Omitted fields are kept.
type UpdatePromptRequest struct {
	Title   *string   `json:"title"`
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
	Remark  *string   `json:"remark"`
	Status  *string   `json:"status" binding:"omitempty,oneof=enabled disabled"`
}

func (r *UpdatePromptRequest) patch() models.PromptPatch {
	p := models.PromptPatch{
		Title:   r.Title,
		Content: r.Content,
		Tags:    r.Tags,
		Remark:  r.Remark,
	}
	if r.Status != nil {
		status := models.PromptStatus(*r.Status)
		p.Status = &status
	}
	return p
}

type SearchRequest struct {
	Query    string   `json:"query" binding:"required"`
	SearchIn []string `json:"search_in"`
	Limit    int      `json:"limit" binding:"omitempty,min=1,max=100"`
}

type SearchResult struct {
	models.Prompt
	Score int `json:"score"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	Query   string         `json:"query"`
}

// TagWarning names a tag that was saved on the prompt but could not be added
// to the tag registry.
type TagWarning struct {
	Tag   string `json:"tag"`
	Error string `json:"error"`
}

type PromptResponse struct {
	models.Prompt
	TagWarnings []TagWarning `json:"tag_warnings,omitempty"`
}

func newPromptResponse(p *models.Prompt, outcomes []services.TagSyncOutcome) PromptResponse {
	resp := PromptResponse{Prompt: *p}
	for _, o := range outcomes {
		if o.Failed() {
			resp.TagWarnings = append(resp.TagWarnings, TagWarning{Tag: o.Tag, Error: o.Err.Error()})
		}
	}
	return resp
}
