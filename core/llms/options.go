package llms

// PromptOptions carries everything a prompt needs beyond the prompt text
// itself: instructions, prior conversation, advertised tools and an optional
// image attachment.
type PromptOptions struct {
	Instructions string
	Messages     []Message
	Tools        []Tool
	Image        *ImageAttachment

	// Stream, when set, receives response content chunks as they arrive.
	// Clients that do not stream call it once with the full content.
	Stream func(chunk string)

	// ForcedToolsCall requires the model to select a tool instead of
	// replying directly.
	ForcedToolsCall bool
}

type PromptOption func(*PromptOptions)

// WithSystemPrompt sets the system prompt. Repeating this option overwrites
// the previous system prompt.
func WithSystemPrompt(prompt string) PromptOption {
	return func(o *PromptOptions) { o.Instructions = prompt }
}

// WithMessages sets the prior conversation, oldest first.
func WithMessages(messages ...Message) PromptOption {
	return func(o *PromptOptions) { o.Messages = messages }
}

// WithTools advertises tools for this prompt.
func WithTools(tools ...Tool) PromptOption {
	return func(o *PromptOptions) { o.Tools = tools }
}

// WithImage attaches an image to the prompt's user message.
func WithImage(image *ImageAttachment) PromptOption {
	return func(o *PromptOptions) { o.Image = image }
}

// WithStream sets the streaming callback for response content chunks.
func WithStream(stream func(string)) PromptOption {
	return func(o *PromptOptions) { o.Stream = stream }
}

// WithForcedToolsCall requires a tool selection from the model.
func WithForcedToolsCall() PromptOption {
	return func(o *PromptOptions) { o.ForcedToolsCall = true }
}
