package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

const (
	ProviderGemini   = "gemini"
	ProviderQwen     = "qwen"
	ProviderDeepSeek = "deepseek"
)

// Default OpenAI-compatible endpoints of the supported providers.
var providerBaseURLs = map[string]string{
	ProviderGemini:   "https://generativelanguage.googleapis.com/v1beta/openai",
	ProviderQwen:     "https://dashscope.aliyuncs.com/compatible-mode/v1",
	ProviderDeepSeek: "https://api.deepseek.com/v1",
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMProvider sends a chat to one model and returns the reply text.
type LLMProvider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// ChatCompletionProvider talks to an OpenAI-compatible /chat/completions
// endpoint.
type ChatCompletionProvider struct {
	name        string
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

type ChatCompletionConfig struct {
	Name        string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

func NewChatCompletionProvider(cfg ChatCompletionConfig, client *http.Client) *ChatCompletionProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &ChatCompletionProvider{
		name:        cfg.Name,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      client,
	}
}

func (p *ChatCompletionProvider) Name() string  { return p.name }
func (p *ChatCompletionProvider) Model() string { return p.model }

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *ChatCompletionProvider) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "%s request", p.name)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrapf(err, "read %s response", p.name)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(data, &parsed); err != nil && resp.StatusCode == http.StatusOK {
		return "", errors.Wrapf(err, "decode %s response", p.name)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", errors.Newf("%s returned %d: %s", p.name, resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", errors.Newf("%s returned no content", p.name)
	}
	return parsed.Choices[0].Message.Content, nil
}

// providerRegistry keeps providers by name in registration order.
type providerRegistry struct {
	mu        sync.RWMutex
	providers map[string]LLMProvider
	order     []string
}

func newProviderRegistry() *providerRegistry {
	return &providerRegistry{providers: make(map[string]LLMProvider)}
}

func (r *providerRegistry) Register(p LLMProvider) {
	r.mu.Lock()
	if _, exists := r.providers[p.Name()]; !exists {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
	r.mu.Unlock()
}

func (r *providerRegistry) get(name string) LLMProvider {
	r.mu.RLock()
	p := r.providers[name]
	r.mu.RUnlock()
	return p
}

func (r *providerRegistry) names() []string {
	r.mu.RLock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	r.mu.RUnlock()
	return out
}
