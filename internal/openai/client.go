package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/leadbot/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultChatModel is the chat model used when none is configured
const DefaultChatModel = openai.GPT3Dot5Turbo

// ErrNoMessages is returned when a completion request carries no messages
var ErrNoMessages = errors.New("completion request has no messages")

// Message roles
const (
	RoleSystem = openai.ChatMessageRoleSystem
	RoleUser   = openai.ChatMessageRoleUser
)

// Message is one chat message sent to the model
type Message struct {
	Role    string
	Content string
}

// CompletionRequest describes a single chat completion call
type CompletionRequest struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// ChatAPI defines the interface for chat completion
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req CompletionRequest) (string, error)
}

// Client wraps the OpenAI API client
type Client struct {
	api ChatAPI
}

type OpenAIAdapter struct {
	client *openai.Client
	model  string
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	model := cfg.Model
	if model == "" {
		model = DefaultChatModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

// CreateChatCompletion calls the OpenAI API and returns the first choice
func (a *OpenAIAdapter) CreateChatCompletion(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for n, m := range req.Messages {
		messages[n] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", domain.ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	return &Client{api: NewOpenAIAdapter(cfg)}
}

// NewClientWithAPI wraps an existing ChatAPI implementation
func NewClientWithAPI(api ChatAPI) *Client {
	return &Client{api: api}
}

// Complete runs a chat completion and returns the trimmed reply text.
// A blank reply is reported as domain.ErrEmptyCompletion.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", ErrNoMessages
	}

	content, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", domain.ErrEmptyCompletion
	}

	return content, nil
}
