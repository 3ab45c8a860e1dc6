// Package gemini converts prompts and images into tasks, and produces the
// grandma commentary, through the Gemini generateContent API.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	generativelanguage "google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"

	"grannypad/internal/logging"
	"grannypad/internal/todo"
)

const (
	// DefaultModel is used when the config leaves the model blank.
	DefaultModel = "gemini-2.5-flash"

	// DefaultTimeout bounds a single generateContent call.
	DefaultTimeout = 30 * time.Second

	jsonMimeType = "application/json"
)

type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// Client implements the task conversion and commentary calls.
type Client struct {
	svc     *generativelanguage.Service
	model   string
	timeout time.Duration
	now     func() time.Time
	logger  *log.Logger
}

type Option func(*Client)

// WithClock overrides the source of "today" used in prompts.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client authenticated with the API key from cfg.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("gemini: api key required")
	}
	clientOpts := []option.ClientOption{option.WithAPIKey(key)}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := generativelanguage.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini service: %w", err)
	}
	return newClient(svc, cfg, opts...), nil
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, cfg Config, opts ...Option) (*Client, error) {
	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := generativelanguage.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, err
	}
	return newClient(svc, cfg, opts...), nil
}

func newClient(svc *generativelanguage.Service, cfg Config, opts ...Option) *Client {
	c := &Client{
		svc:     svc,
		model:   strings.TrimSpace(cfg.Model),
		timeout: cfg.Timeout,
		now:     time.Now,
		logger:  logging.Discard(),
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConvertText extracts tasks from free-form text. A response that cannot be
// read as a task array yields an empty result and a nil error; only
// transport failures are returned as errors.
func (c *Client) ConvertText(ctx context.Context, prompt string) ([]todo.Task, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, nil
	}
	req := &generativelanguage.GenerateContentRequest{
		SystemInstruction: textContent(textSystemPrompt),
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: textUserPrompt(prompt, c.today())}},
		}},
		GenerationConfig: taskGenerationConfig(),
	}
	return c.convert(ctx, "convert text", req)
}

// ConvertImage extracts tasks, events and deadlines visible in an image.
func (c *Client) ConvertImage(ctx context.Context, data []byte, mimeType string) ([]todo.Task, error) {
	if len(data) == 0 {
		return nil, nil
	}
	req := &generativelanguage.GenerateContentRequest{
		SystemInstruction: textContent(imageSystemPrompt),
		Contents: []*generativelanguage.Content{{
			Role: "user",
			Parts: []*generativelanguage.Part{
				{InlineData: &generativelanguage.Blob{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(data),
				}},
				{Text: imageUserPrompt(c.today())},
			},
		}},
		GenerationConfig: taskGenerationConfig(),
	}
	return c.convert(ctx, "convert image", req)
}

// Commentary returns a short nagging remark about seed. Any failure yields
// FallbackCommentary.
func (c *Client) Commentary(ctx context.Context, seed string) string {
	req := &generativelanguage.GenerateContentRequest{
		SystemInstruction: textContent(commentarySystemPrompt),
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: commentaryUserPrompt(seed)}},
		}},
	}
	text, err := c.generate(ctx, req)
	if err != nil {
		c.logger.Warn("commentary failed", "err", err)
		return FallbackCommentary
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return FallbackCommentary
	}
	return text
}

func (c *Client) convert(ctx context.Context, op string, req *generativelanguage.GenerateContentRequest) ([]todo.Task, error) {
	text, err := c.generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("gemini %s: %w", op, err)
	}
	tasks := ParseTasks(text)
	if len(tasks) == 0 {
		c.logger.Debug("no tasks in response", "op", op, "payload", snippet(text))
	}
	return tasks, nil
}

func (c *Client) generate(ctx context.Context, req *generativelanguage.GenerateContentRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.svc.Models.GenerateContent(modelResource(c.model), req).Context(ctx).Do()
	if err != nil {
		return "", wrapError(err)
	}
	return responseText(resp), nil
}

func (c *Client) today() string {
	return c.now().Format(todo.DateLayout)
}

func modelResource(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

func textContent(text string) *generativelanguage.Content {
	return &generativelanguage.Content{
		Parts: []*generativelanguage.Part{{Text: text}},
	}
}

func taskGenerationConfig() *generativelanguage.GenerationConfig {
	return &generativelanguage.GenerationConfig{
		ResponseMimeType: jsonMimeType,
		ResponseSchema:   taskListSchema(),
	}
}

func taskListSchema() *generativelanguage.Schema {
	return &generativelanguage.Schema{
		Type: "ARRAY",
		Items: &generativelanguage.Schema{
			Type: "OBJECT",
			Properties: map[string]generativelanguage.Schema{
				"id": {
					Type:        "STRING",
					Description: "A unique identifier for the to-do item, preferably a timestamp or random string.",
				},
				"text": {
					Type:        "STRING",
					Description: "The content of the to-do item.",
				},
				"completed": {
					Type:        "BOOLEAN",
					Description: "The completion status of the to-do item, should always be false initially.",
				},
				"dueDate": {
					Type:        "STRING",
					Description: "The due date in YYYY-MM-DD format. If not specified in the user's prompt, default to today's date.",
				},
			},
			Required: []string{"id", "text", "completed", "dueDate"},
		},
	}
}

// responseText joins the text parts of the first candidate that has any.
func responseText(resp *generativelanguage.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range cand.Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			return text
		}
	}
	return ""
}

// wrapError shortens the common transport failures.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", err)
	}
	errStr := err.Error()
	if strings.Contains(errStr, "401") || strings.Contains(errStr, "403") {
		return fmt.Errorf("api key rejected: %w", err)
	}
	return err
}
