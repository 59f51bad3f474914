// Package azure prompts chat models deployed on the Azure OpenAI service.
package azure

import (
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

const apiVersion = "2024-06-01"

type Client struct {
	apiKey     string
	endpoint   string
	deployment string

	httpClient *http.Client
}

// NewClient builds a client for a single model deployment. The endpoint is
// the resource base URL, e.g. https://myresource.openai.azure.com.
func NewClient(apiKey, endpoint, deployment string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("azure openai api key not found")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("azure openai endpoint not found")
	}
	if deployment == "" {
		return nil, fmt.Errorf("azure openai deployment not found")
	}

	return &Client{
		apiKey:     apiKey,
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		deployment: deployment,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}, nil
}

// Prompt sends the conversation to the deployment and returns its reply.
// Responses are not streamed; a configured stream callback receives the full
// content once.
func (c *Client) Prompt(ctx context.Context, opts ...llms.PromptOption) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "prompt chat model")
	defer span.End()

	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	var toolChoice *string
	tools := toTools(options.Tools)
	if tools != nil {
		toolChoice = utils.Ptr("auto")
		if options.ForcedToolsCall {
			toolChoice = utils.Ptr("required")
		}
	}

	reqBody := requestBody{
		Messages:   toMessages(options.Instructions, options.Messages),
		Tools:      tools,
		ToolChoice: toolChoice,
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	requestURL := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s", c.endpoint, c.deployment, apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

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

	var responseBody responseBody
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		return nil, fmt.Errorf("error unmarshalling response: %w", err)
	}
	if len(responseBody.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}

	choice := responseBody.Choices[0].Message
	response := &llms.Response{Content: choice.Content}
	for _, call := range choice.ToolCalls {
		response.ToolCalls = append(response.ToolCalls, llms.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	if options.Stream != nil && response.Content != "" {
		options.Stream(response.Content)
	}

	return response, nil
}

type requestBody struct {
	Messages   []message `json:"messages"`
	ToolChoice *string   `json:"tool_choice,omitempty"`
	Tools      []tool    `json:"tools,omitempty"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Role      string     `json:"role"`
			Content   string     `json:"content"`
			ToolCalls []toolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}
