package llms

// Role describes who a conversation message is from.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry in the conversation history handed to a model.
type Message struct {
	Role    Role
	Content string

	// Image optionally attaches an image to a user message. Clients that do
	// not support multimodal input ignore it.
	Image *ImageAttachment

	// ToolCallID links a tool-role message to the call it responds to.
	ToolCallID string
	// ToolCalls are the calls the assistant selected in this message.
	ToolCalls []ToolCall
}

// ImageAttachment is an opaque encoded image handed to a multimodal model.
type ImageAttachment struct {
	MIME string
	Data []byte
}

// ToolCall is a single model-selected tool invocation. Arguments is the raw
// JSON object produced by the model; Response is filled in once the tool has
// been executed.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
	Response  string
}

// Response is a single reply from a model: either content text, or one or
// more selected tool calls, or both.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// HasToolCalls reports whether the model selected any tool instead of (or in
// addition to) replying directly.
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}
