package openai_provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/ragrouter/models"
	"github.com/mohammad-safakhou/ragrouter/utils"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ErrNoChoices is returned when the API answers without a completion
var ErrNoChoices = errors.New("no choices in response")

// Options configures an OpenAI-compatible client
type Options struct {
	APIKey            string
	BaseURL           string
	CompletionModel   string
	EmbeddingModel    string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
}

// client implements the provider interface against any OpenAI-compatible API
type client struct {
	apiKey          string
	baseURL         string
	completionModel string
	embeddingModel  string
	temperature     float64
	maxTokens       int
	http            *utils.HTTPClient
	logger          *zap.Logger
}

type tool struct {
	Type     string          `json:"type"`
	Function models.Function `json:"function"`
}

type toolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

// request represents a request to the chat completions endpoint
type request struct {
	Model       string           `json:"model"`
	Messages    []models.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Tools       []tool           `json:"tools,omitempty"`
	ToolChoice  *toolChoice      `json:"tool_choice,omitempty"`
}

// response represents a response from the chat completions endpoint
type response struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIClient creates a new OpenAI-compatible client
func NewOpenAIClient(opts Options, logger *zap.Logger) *client {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &client{
		apiKey:          opts.APIKey,
		baseURL:         base,
		completionModel: opts.CompletionModel,
		embeddingModel:  opts.EmbeddingModel,
		temperature:     opts.Temperature,
		maxTokens:       opts.MaxTokens,
		http:            utils.NewHTTPClient(opts.Timeout, opts.MaxRetries, 500*time.Millisecond).WithRateLimit(opts.RequestsPerSecond),
		logger:          logger.Named("openai"),
	}
}

func (c *client) headers() map[string]string {
	return map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + c.apiKey,
	}
}

// CreateEmbedding generates an embedding for the given texts
func (c *client) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.embeddingModel == "" {
		return nil, errors.New("embedding model not configured")
	}

	requestBody := map[string]interface{}{
		"model": c.embeddingModel,
		"input": texts,
	}
	var openaiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/embeddings", c.headers(), requestBody, &openaiResp); err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}

	vecs := make([][]float32, len(texts))
	for _, d := range openaiResp.Data {
		if d.Index >= 0 && d.Index < len(vecs) {
			vecs[d.Index] = d.Embedding
		}
	}
	return vecs, nil
}

// Complete returns the assistant text for a plain chat completion
func (c *client) Complete(ctx context.Context, messages []models.Message, opts models.CompletionOptions) (string, error) {
	resp, err := c.sendRequest(ctx, c.buildRequest(messages, opts))
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// CallFunction forces the model to call fn and returns its raw arguments
func (c *client) CallFunction(ctx context.Context, messages []models.Message, fn models.Function, opts models.CompletionOptions) (models.FunctionCall, error) {
	req := c.buildRequest(messages, opts)
	req.Tools = []tool{{Type: "function", Function: fn}}
	choice := &toolChoice{Type: "function"}
	choice.Function.Name = fn.Name
	req.ToolChoice = choice

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return models.FunctionCall{}, err
	}
	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return models.FunctionCall{}, fmt.Errorf("model did not call %s", fn.Name)
	}
	args := calls[0].Function.Arguments
	if !json.Valid([]byte(args)) {
		return models.FunctionCall{}, fmt.Errorf("invalid arguments for %s", fn.Name)
	}
	return models.FunctionCall{Name: calls[0].Function.Name, Arguments: json.RawMessage(args)}, nil
}

// DefaultImagePrompt asks for a description that can stand in for the image
// in a text prompt.
const DefaultImagePrompt = "Describe this image in detail. If it's a logo or emblem, identify the organization."

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type visionMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type visionRequest struct {
	Model     string          `json:"model"`
	Messages  []visionMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

// DescribeImage sends image inline as a data URL next to prompt and returns
// the model's description.
func (c *client) DescribeImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	if prompt == "" {
		prompt = DefaultImagePrompt
	}
	req := visionRequest{
		Model: c.completionModel,
		Messages: []visionMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)}},
			},
		}},
		MaxTokens: c.maxTokens,
	}
	var out response
	if err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/chat/completions", c.headers(), req, &out); err != nil {
		c.logger.Warn("image description failed", zap.String("model", req.Model), zap.Error(err))
		return "", fmt.Errorf("image description: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrNoChoices
	}
	desc := strings.TrimSpace(out.Choices[0].Message.Content)
	if desc == "" {
		return "", errors.New("empty image description")
	}
	return desc, nil
}

func (c *client) buildRequest(messages []models.Message, opts models.CompletionOptions) request {
	req := request{
		Model:       c.completionModel,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	return req
}

// sendRequest sends a request to the chat completions endpoint
func (c *client) sendRequest(ctx context.Context, req request) (*response, error) {
	start := time.Now()
	var out response
	if err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/chat/completions", c.headers(), req, &out); err != nil {
		c.logger.Warn("chat completion failed", zap.String("model", req.Model), zap.Error(err))
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	c.logger.Debug("chat completion",
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Duration("duration", time.Since(start)))
	if len(out.Choices) == 0 {
		return nil, ErrNoChoices
	}
	return &out, nil
}
