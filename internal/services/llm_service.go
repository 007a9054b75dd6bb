package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/qianh/prompt-tower/config"
	"github.com/qianh/prompt-tower/internal/apperr"
	"github.com/qianh/prompt-tower/internal/utils"
)

const (
	FallbackSequential = "sequential"
	FallbackParallel   = "parallel"

	maxSuggestions = 5

	sectionOptimized   = "## Optimized Prompt"
	sectionSuggestions = "## Suggestions"
	sectionNotes       = "## Notes"
)

const optimizeSystemPrompt = `You are a professional prompt engineer. Help the user improve their prompt so it is clearer, more specific and more effective.

Requirements:
1. Keep the original intent while making the prompt clearer
2. Add the necessary context and constraints
3. Use a structured format
4. Give 3-5 concrete improvement suggestions

Answer strictly in this format:

## Optimized Prompt

[the complete optimized prompt]

## Suggestions

1. [suggestion 1]
2. [suggestion 2]
3. [suggestion 3]
4. [suggestion 4] (optional)
5. [suggestion 5] (optional)

## Notes

[a short explanation of the main changes]
`

var defaultSuggestions = []string{
	"Use more specific instructions and requirements",
	"Add examples to improve accuracy",
	"State the output format and constraints explicitly",
}

type OptimizeRequest struct {
	Content  string
	Context  string
	Provider string
}

type OptimizeResult struct {
	Original    string   `json:"original"`
	Optimized   string   `json:"optimized"`
	Suggestions []string `json:"suggestions"`
	Provider    string   `json:"provider"`
}

type LLMOptions struct {
	DefaultProvider string
	// Timeout bounds each provider attempt.
	Timeout        time.Duration
	FallbackPolicy string
	Temperature    float64
	MaxTokens      int
}

// LLMConfigView is the public description of the LLM settings.
type LLMConfigView struct {
	DefaultProvider string            `json:"default_provider"`
	Temperature     float64           `json:"temperature"`
	MaxTokens       int               `json:"max_tokens"`
	Timeout         float64           `json:"timeout"`
	FallbackPolicy  string            `json:"fallback_policy"`
	Models          map[string]string `json:"models"`
}

// LLMService optimizes prompts through the configured providers, falling
// back to the others when the preferred one fails.
type LLMService struct {
	registry *providerRegistry
	opts     LLMOptions
	models   map[string]string
	log      *zap.Logger
}

func NewLLMService(opts LLMOptions, log *zap.Logger, providers ...LLMProvider) *LLMService {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.FallbackPolicy != FallbackParallel {
		opts.FallbackPolicy = FallbackSequential
	}
	s := &LLMService{registry: newProviderRegistry(), opts: opts, models: map[string]string{}, log: log}
	for _, p := range providers {
		s.registry.Register(p)
		s.models[p.Name()] = p.Model()
	}
	return s
}

// NewLLMServiceFromConfig registers every provider that has an API key.
func NewLLMServiceFromConfig(cfg *config.Config, log *zap.Logger) *LLMService {
	if log == nil {
		log = zap.NewNop()
	}
	client := utils.NewHTTPClient(cfg.LLMTimeout+10*time.Second, log)

	candidates := []struct {
		name  string
		key   string
		model string
	}{
		{ProviderGemini, cfg.GeminiAPIKey, cfg.GeminiModel},
		{ProviderQwen, cfg.QwenAPIKey, cfg.QwenModel},
		{ProviderDeepSeek, cfg.DeepSeekAPIKey, cfg.DeepSeekModel},
	}

	var providers []LLMProvider
	for _, c := range candidates {
		key, err := resolveAPIKey(c.name, c.key, cfg.LLMKeyringService)
		if err != nil {
			log.Error("Failed to resolve LLM API key", zap.String("provider", c.name), zap.Error(err))
			continue
		}
		if key == "" {
			continue
		}
		providers = append(providers, NewChatCompletionProvider(ChatCompletionConfig{
			Name:        c.name,
			BaseURL:     providerBaseURLs[c.name],
			APIKey:      key,
			Model:       c.model,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
		}, client))
		log.Info("LLM provider initialized", zap.String("provider", c.name), zap.String("model", c.model))
	}
	if len(providers) == 0 {
		log.Warn("No LLM providers configured. Please check your API keys in .env file")
	}

	s := NewLLMService(LLMOptions{
		DefaultProvider: cfg.DefaultLLM,
		Timeout:         cfg.LLMTimeout,
		FallbackPolicy:  cfg.LLMFallbackPolicy,
		Temperature:     cfg.LLMTemperature,
		MaxTokens:       cfg.LLMMaxTokens,
	}, log, providers...)
	s.models = map[string]string{
		ProviderGemini:   cfg.GeminiModel,
		ProviderQwen:     cfg.QwenModel,
		ProviderDeepSeek: cfg.DeepSeekModel,
	}
	return s
}

// Providers lists the registered providers in registration order.
func (s *LLMService) Providers() []string {
	return s.registry.names()
}

// DefaultProvider returns the configured default when it is registered,
// else the first registered provider, else "".
func (s *LLMService) DefaultProvider() string {
	names := s.registry.names()
	if s.registry.get(s.opts.DefaultProvider) != nil {
		return s.opts.DefaultProvider
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

func (s *LLMService) Config() LLMConfigView {
	models := make(map[string]string, len(s.models))
	for k, v := range s.models {
		models[k] = v
	}
	return LLMConfigView{
		DefaultProvider: s.opts.DefaultProvider,
		Temperature:     s.opts.Temperature,
		MaxTokens:       s.opts.MaxTokens,
		Timeout:         s.opts.Timeout.Seconds(),
		FallbackPolicy:  s.opts.FallbackPolicy,
		Models:          models,
	}
}

// Optimize asks the preferred provider to improve req.Content. When it fails
// each other provider is tried once, one after another or all at once
// depending on the fallback policy.
func (s *LLMService) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperr.Validation("content cannot be empty")
	}
	order := s.attemptOrder(req.Provider)
	if len(order) == 0 {
		return nil, apperr.Validation("no LLM provider is configured; set an API key in .env")
	}

	messages := buildMessages(req)
	var (
		name  string
		reply string
		err   error
	)
	if s.opts.FallbackPolicy == FallbackParallel {
		name, reply, err = s.raceProviders(ctx, order, messages)
	} else {
		name, reply, err = s.tryInSequence(ctx, order, messages)
	}
	if err != nil {
		return nil, err
	}

	result := parseOptimization(req.Content, reply)
	result.Provider = name
	return result, nil
}

// TestProvider sends a short request to the named provider only.
func (s *LLMService) TestProvider(ctx context.Context, name string) bool {
	p := s.registry.get(name)
	if p == nil {
		return false
	}
	if _, err := s.attempt(ctx, p, buildMessages(OptimizeRequest{Content: "Connection test"})); err != nil {
		s.log.Warn("LLM provider test failed", zap.String("provider", name), zap.Error(err))
		return false
	}
	return true
}

func (s *LLMService) attemptOrder(requested string) []string {
	names := s.registry.names()
	if len(names) == 0 {
		return nil
	}
	preferred := requested
	if s.registry.get(preferred) == nil {
		if requested != "" {
			s.log.Info("Requested LLM provider not available", zap.String("provider", requested))
		}
		preferred = s.DefaultProvider()
	}

	order := make([]string, 0, len(names))
	order = append(order, preferred)
	for _, n := range names {
		if n != preferred {
			order = append(order, n)
		}
	}
	return order
}

func (s *LLMService) attempt(ctx context.Context, p LLMProvider, messages []ChatMessage) (string, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	return p.Complete(ctx, messages)
}

func (s *LLMService) tryInSequence(ctx context.Context, order []string, messages []ChatMessage) (string, string, error) {
	var failures []string
	for i, name := range order {
		if i > 0 {
			s.log.Info("Trying backup LLM provider", zap.String("provider", name))
		}
		reply, err := s.attempt(ctx, s.registry.get(name), messages)
		if err == nil {
			return name, reply, nil
		}
		s.log.Error("LLM optimization failed", zap.String("provider", name), zap.Error(err))
		failures = append(failures, name+": "+err.Error())
		if ctx.Err() != nil {
			break
		}
	}
	return "", "", apperr.Upstream(nil, "all LLM providers failed: %s", strings.Join(failures, "; "))
}

// raceProviders runs every provider at once and returns the first success,
// cancelling the rest.
func (s *LLMService) raceProviders(ctx context.Context, order []string, messages []ChatMessage) (string, string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		name  string
		reply string
		err   error
	}
	results := make(chan outcome, len(order))
	for _, name := range order {
		p := s.registry.get(name)
		go func() {
			reply, err := s.attempt(ctx, p, messages)
			results <- outcome{name: p.Name(), reply: reply, err: err}
		}()
	}

	failures := make(map[string]string, len(order))
	for range order {
		r := <-results
		if r.err == nil {
			return r.name, r.reply, nil
		}
		s.log.Error("LLM optimization failed", zap.String("provider", r.name), zap.Error(r.err))
		failures[r.name] = r.name + ": " + r.err.Error()
	}

	msgs := make([]string, 0, len(order))
	for _, name := range order {
		msgs = append(msgs, failures[name])
	}
	return "", "", apperr.Upstream(nil, "all LLM providers failed: %s", strings.Join(msgs, "; "))
}

func buildMessages(req OptimizeRequest) []ChatMessage {
	user := "Original prompt:\n" + req.Content
	if strings.TrimSpace(req.Context) != "" {
		user += "\n\nContext:\n" + req.Context
	}
	return []ChatMessage{
		{Role: "system", Content: optimizeSystemPrompt},
		{Role: "user", Content: user},
	}
}

// parseOptimization extracts the optimized prompt and the suggestions from
// a reply in the format requested by optimizeSystemPrompt.
func parseOptimization(original, reply string) *OptimizeResult {
	optimized := original
	if start := strings.Index(reply, sectionOptimized); start != -1 {
		start += len(sectionOptimized)
		rest := reply[start:]
		end := strings.Index(rest, sectionSuggestions)
		if end == -1 {
			end = strings.Index(rest, "##")
		}
		if end == -1 {
			optimized = strings.TrimSpace(rest)
		} else {
			optimized = strings.TrimSpace(rest[:end])
		}
	}

	var suggestions []string
	if start := strings.Index(reply, sectionSuggestions); start != -1 {
		rest := reply[start+len(sectionSuggestions):]
		if end := strings.Index(rest, sectionNotes); end != -1 {
			rest = rest[:end]
		}
		for _, line := range strings.Split(rest, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || !(line[0] >= '0' && line[0] <= '9' || line[0] == '-') {
				continue
			}
			if s := strings.TrimSpace(strings.TrimLeft(line, "0123456789.- ")); s != "" {
				suggestions = append(suggestions, s)
			}
		}
	}
	if len(suggestions) == 0 {
		suggestions = append([]string(nil), defaultSuggestions...)
	}
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}

	return &OptimizeResult{Original: original, Optimized: optimized, Suggestions: suggestions}
}
