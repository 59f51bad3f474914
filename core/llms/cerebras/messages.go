package cerebras

import (
	"encoding/base64"
	"fmt"

	"github.com/knolabs/daela/core/llms"
)

type message struct {
	Role       messageRole `json:"role"`
	Content    any         `json:"content"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall  `json:"tool_calls,omitempty"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
	messageRoleTool      messageRole = "tool"
)

type contentPart struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	ImageURL *contentImageURL `json:"image_url,omitempty"`
}

type contentImageURL struct {
	URL string `json:"url"`
}

type toolCall struct {
	Index    *int             `json:"index,omitempty"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

func toMessages(instructions string, history []llms.Message) []message {
	messages := []message{}
	if instructions != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: instructions,
		})
	}

	for _, msg := range history {
		messages = append(messages, toMessage(msg))
	}
	return messages
}

func toMessage(msg llms.Message) message {
	out := message{
		Role:       messageRole(msg.Role),
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
	}

	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, toolCall{
			ID:   call.ID,
			Type: "function",
			Function: toolCallFunction{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}

	if msg.Image != nil {
		out.Content = []contentPart{
			{Type: "text", Text: msg.Content},
			{Type: "image_url", ImageURL: &contentImageURL{URL: imageDataURL(msg.Image)}},
		}
	}

	return out
}

func imageDataURL(image *llms.ImageAttachment) string {
	mime := image.MIME
	if mime == "" {
		mime = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(image.Data))
}

func toTools(in []llms.Tool) []tool {
	if len(in) == 0 {
		return nil
	}

	tools := make([]tool, 0, len(in))
	for _, t := range in {
		tools = append(tools, tool{
			Type: "function",
			Function: toolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return tools
}
