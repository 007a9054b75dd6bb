package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/qianh/prompt-tower/internal/apperr"
	"github.com/qianh/prompt-tower/internal/models"
	"github.com/qianh/prompt-tower/internal/services"
	"github.com/qianh/prompt-tower/internal/storage"
)

const (
	defaultSearchLimit = 20
	schemaBaseURL      = "https://prompt-tower.local/tools/"
)

// PromptSource is the read side of the prompt library plus the usage counter.
type PromptSource interface {
	EnabledPrompts(ctx context.Context) ([]models.Prompt, error)
	Search(ctx context.Context, opts services.SearchOptions) ([]services.ScoredPrompt, error)
	Get(ctx context.Context, title string) (*models.Prompt, error)
	IncrementUsage(ctx context.Context, title string) (*models.Prompt, error)
}

// Tool is the tools/list description of a callable tool.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the tools/call result. Tool failures are reported here
// with IsError set rather than as JSON-RPC errors.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

func textResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{{Type: "text", Text: text}}}
}

func errorResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{{Type: "text", Text: text}}, IsError: true}
}

type toolFunc func(ctx context.Context, args json.RawMessage) (*CallToolResult, error)

type registeredTool struct {
	Tool
	schema *jsonschema.Schema
	run    toolFunc
}

// ToolCatalog holds the prompt tools and validates their arguments.
type ToolCatalog struct {
	tools  []*registeredTool
	byName map[string]*registeredTool
	source PromptSource
	log    *zap.Logger
}

func NewToolCatalog(source PromptSource, log *zap.Logger) (*ToolCatalog, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &ToolCatalog{
		byName: make(map[string]*registeredTool),
		source: source,
		log:    log,
	}

	defs := []struct {
		name, description, schema string
		run                       toolFunc
	}{
		{"search_prompts", "Search prompt templates by title, tags and content.", searchPromptsSchema, c.searchPrompts},
		{"get_prompt_names", "List the titles of all available prompts.", emptySchema, c.getPromptNames},
		{"get_prompt_by_title", "Get the full content of a prompt by its title.", getPromptSchema, c.getPromptByTitle},
		{"list_prompts_by_tag", "List prompts carrying any of the given tags. An empty list returns all prompts.", listByTagSchema, c.listPromptsByTag},
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	for _, d := range defs {
		url := schemaBaseURL + d.name + ".json"
		if err := compiler.AddResource(url, strings.NewReader(d.schema)); err != nil {
			return nil, errors.Wrapf(err, "add schema for tool %s", d.name)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, errors.Wrapf(err, "compile schema for tool %s", d.name)
		}
		t := &registeredTool{
			Tool: Tool{
				Name:        d.name,
				Description: d.description,
				InputSchema: json.RawMessage(d.schema),
			},
			schema: schema,
			run:    d.run,
		}
		c.tools = append(c.tools, t)
		c.byName[d.name] = t
	}
	return c, nil
}

// List returns the tool descriptions in registration order.
func (c *ToolCatalog) List() []Tool {
	out := make([]Tool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t.Tool)
	}
	return out
}

func (c *ToolCatalog) Len() int {
	return len(c.tools)
}

// Call validates args against the tool's schema and runs it. Every failure
// comes back as an error result.
func (c *ToolCatalog) Call(ctx context.Context, name string, args json.RawMessage) *CallToolResult {
	t, ok := c.byName[name]
	if !ok {
		return errorResult("Error: Unknown tool: " + name)
	}

	if isAbsent(args) {
		args = json.RawMessage("{}")
	}
	if err := validateArgs(t.schema, args); err != nil {
		c.log.Info("Rejected MCP tool arguments", zap.String("tool", name), zap.Error(err))
		return errorResult("Error: invalid arguments: " + err.Error())
	}

	result, err := t.run(ctx, args)
	if err != nil {
		c.log.Error("MCP tool failed", zap.String("tool", name), zap.Error(err))
		return errorResult("Error: " + apperr.PublicMessage(err))
	}
	return result
}

func validateArgs(schema *jsonschema.Schema, args json.RawMessage) error {
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return errors.Wrap(err, "decode arguments")
	}
	return schema.Validate(v)
}

type searchArgs struct {
	Query    string    `json:"query"`
	SearchIn *[]string `json:"search_in"`
	Limit    *int      `json:"limit"`
}

type searchHit struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Remark  string   `json:"remark"`
	Score   int      `json:"score"`
}

func (c *ToolCatalog) searchPrompts(ctx context.Context, raw json.RawMessage) (*CallToolResult, error) {
	var args searchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperr.Validation("invalid search arguments")
	}
	fields := storage.DefaultSearchFields
	if args.SearchIn != nil {
		fields = *args.SearchIn
	}
	limit := defaultSearchLimit
	if args.Limit != nil {
		limit = *args.Limit
	}

	hits, err := c.source.Search(ctx, services.SearchOptions{
		Query:       args.Query,
		Fields:      fields,
		Limit:       limit,
		EnabledOnly: true,
	})
	if err != nil {
		return nil, err
	}

	results := make([]searchHit, 0, len(hits))
	for _, h := range hits {
		results = append(results, searchHit{
			Title:   h.Title,
			Content: h.Content,
			Tags:    nonNilTags(h.Tags),
			Remark:  h.Remark,
			Score:   h.Score,
		})
	}
	c.log.Info("MCP search", zap.String("query", args.Query), zap.Int("results", len(results)))
	return jsonResult(map[string]interface{}{"results": results})
}

func (c *ToolCatalog) getPromptNames(ctx context.Context, _ json.RawMessage) (*CallToolResult, error) {
	prompts, err := c.source.EnabledPrompts(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(prompts))
	for _, p := range prompts {
		names = append(names, p.Title)
	}
	return jsonResult(map[string]interface{}{"names": names})
}

type promptDetail struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Remark    string    `json:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *ToolCatalog) getPromptByTitle(ctx context.Context, raw json.RawMessage) (*CallToolResult, error) {
	var args struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperr.Validation("invalid title argument")
	}

	prompt, err := c.source.Get(ctx, args.Title)
	if errors.Is(err, apperr.ErrNotFound) {
		return errorResult("Prompt not found"), nil
	}
	if err != nil {
		return nil, err
	}
	if !prompt.IsEnabled() {
		return errorResult("Prompt not found"), nil
	}

	if _, err := c.source.IncrementUsage(ctx, prompt.Title); err != nil {
		c.log.Warn("Failed to increment usage count",
			zap.String("title", prompt.Title),
			zap.Error(err),
		)
	}

	return jsonResult(map[string]interface{}{"prompt": promptDetail{
		Title:     prompt.Title,
		Content:   prompt.Content,
		Tags:      nonNilTags(prompt.Tags),
		Remark:    prompt.Remark,
		CreatedAt: prompt.CreatedAt,
		UpdatedAt: prompt.UpdatedAt,
	}})
}

type promptSummary struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Remark  string   `json:"remark"`
}

func (c *ToolCatalog) listPromptsByTag(ctx context.Context, raw json.RawMessage) (*CallToolResult, error) {
	var args struct {
		Tags []string `json:"tags"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperr.Validation("invalid tags argument")
	}

	prompts, err := c.source.EnabledPrompts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]promptSummary, 0, len(prompts))
	for _, p := range prompts {
		if len(args.Tags) > 0 && !hasAnyTag(p.Tags, args.Tags) {
			continue
		}
		out = append(out, promptSummary{
			Title:   p.Title,
			Content: p.Content,
			Tags:    nonNilTags(p.Tags),
			Remark:  p.Remark,
		})
	}
	return jsonResult(map[string]interface{}{"prompts": out})
}

func hasAnyTag(tags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range tags {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// jsonResult renders v as indented JSON text without HTML escaping.
func jsonResult(v interface{}) (*CallToolResult, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, apperr.Internal(err, "encode tool result")
	}
	return textResult(strings.TrimSuffix(buf.String(), "\n")), nil
}

const emptySchema = `{
  "type": "object",
  "properties": {}
}`

const searchPromptsSchema = `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Search keywords"},
    "search_in": {
      "type": "array",
      "items": {"type": "string", "enum": ["title", "tags", "content"]},
      "description": "Fields to search: title, tags, content",
      "default": ["title", "tags", "content"]
    },
    "limit": {
      "type": "integer",
      "description": "Maximum number of results",
      "default": 20,
      "minimum": 1,
      "maximum": 100
    }
  },
  "required": ["query"]
}`

const getPromptSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string", "minLength": 1, "description": "Prompt title"}
  },
  "required": ["title"]
}`

const listByTagSchema = `{
  "type": "object",
  "properties": {
    "tags": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Tags to filter by; empty returns all prompts"
    }
  }
}`
