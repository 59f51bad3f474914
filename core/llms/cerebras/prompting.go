// Package cerebras prompts chat models served through the Cerebras inference
// API using its OpenAI-compatible streaming endpoint.
package cerebras

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"

	"github.com/knolabs/daela/core/llms"
	"github.com/knolabs/daela/internal/utils"
)

const (
	defaultBaseURL = "https://api.cerebras.ai/v1"
	defaultModel   = "llama3.1-8b"

	endMessage  = "[DONE]"
	chunkPrefix = "data:"
)

type Client struct {
	apiKey  string
	model   string
	baseURL string

	httpClient *http.Client
}

type ClientOption func(*Client)

// WithModel overrides the default model.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithBaseURL overrides the API endpoint, primarily for tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("cerebras api key not found")
	}

	client := &Client{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Prompt sends the conversation to the model and collects the streamed reply.
// Selected tool calls are returned on the response and are not executed here.
func (c *Client) Prompt(ctx context.Context, opts ...llms.PromptOption) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "prompt chat model")
	defer span.End()

	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	messages := toMessages(options.Instructions, options.Messages)

	var toolChoice *string
	tools := toTools(options.Tools)
	if tools != nil {
		toolChoice = utils.Ptr("auto")
		if options.ForcedToolsCall {
			toolChoice = utils.Ptr("required")
		}
	}

	reqBody := requestBody{
		Model:      c.model,
		Messages:   messages,
		Stream:     true,
		Tools:      tools,
		ToolChoice: toolChoice,
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("non-OK HTTP status %s: %s", resp.Status, strings.TrimSpace(string(body)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}

	toolCalls := toolCallAccumulator{}
	var content strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))
		if len(chunk) == 0 {
			continue
		}
		if chunk == endMessage {
			break
		}

		var responseBody streamingResponseBody
		if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
			logger.WarnContext(ctx, "Failed to unmarshal response chunk", "error", err)
			continue
		}
		if len(responseBody.Choices) == 0 {
			continue
		}

		delta := responseBody.Choices[0].Delta
		toolCalls.add(delta.ToolCalls)

		content.WriteString(delta.Content)
		if options.Stream != nil && delta.Content != "" {
			options.Stream(delta.Content)
		}
	}

	if err := scanner.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "streamed response interrupted")
		return nil, fmt.Errorf("error reading streamed response: %w", err)
	}

	return &llms.Response{
		Content:   content.String(),
		ToolCalls: toolCalls.collect(),
	}, nil
}

// toolCallAccumulator merges streamed tool call deltas. The first delta for a
// call carries its id and function name, later deltas under the same index
// carry argument fragments.
type toolCallAccumulator []llms.ToolCall

func (a *toolCallAccumulator) add(deltas []toolCall) {
	for _, delta := range deltas {
		index := len(*a) - 1
		if delta.Index != nil {
			index = *delta.Index
		} else if delta.ID != "" {
			index = len(*a)
		}

		for len(*a) <= index {
			*a = append(*a, llms.ToolCall{})
		}

		call := &(*a)[index]
		if delta.ID != "" {
			call.ID = delta.ID
		}
		if delta.Function.Name != "" {
			call.Name = delta.Function.Name
		}
		call.Arguments += delta.Function.Arguments
	}
}

func (a toolCallAccumulator) collect() []llms.ToolCall {
	if len(a) == 0 {
		return nil
	}
	return a
}

type requestBody struct {
	Model      string    `json:"model"`
	Messages   []message `json:"messages"`
	Stream     bool      `json:"stream"`
	ToolChoice *string   `json:"tool_choice,omitempty"`
	Tools      []tool    `json:"tools,omitempty"`
}

type streamingResponseBody struct {
	Choices []struct {
		Delta struct {
			Role      string     `json:"role,omitempty"`
			Content   string     `json:"content,omitempty"`
			ToolCalls []toolCall `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason,omitempty"`
	} `json:"choices"`
}
