package tags

type CreateTagRequest struct {
	Name string `json:"name"`
}

type TagResponse struct {
	Name string `json:"name"`
}
