package llm

type OptimizeRequest struct {
	Content     string `json:"content" binding:"required"`
	Context     string `json:"context"`
	LLMProvider string `json:"llm_provider"`
}

type ProvidersResponse struct {
	Providers []string `json:"providers"`
	Default   string   `json:"default"`
}

type ProviderTestResponse struct {
	Provider  string `json:"provider"`
	Available bool   `json:"available"`
	Message   string `json:"message"`
}
