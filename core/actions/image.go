package actions

import "context"

// ImageParams are the arguments of the image analysis trigger action.
type ImageParams struct {
	UserMessage string `json:"user_message" jsonschema:"description=The user message that triggered this function"`
}

// NewAnalyzeImageAction builds the vision trigger action. It is a
// pass-through: the handler produces no result of its own, its sole effect
// is that the session re-issues the triggering message to the model with the
// latest cached video frame attached.
func NewAnalyzeImageAction(opts ...Option) Action {
	opts = append([]Option{WithFrameAttachment()}, opts...)

	return New(
		"analyze_dental_image",
		"Called when asked to evaluate dental issues using vision capabilities, "+
			"for example an image of teeth, gums, or the webcam feed showing the same.",
		func(_ context.Context, _ ImageParams) (string, error) {
			return "", nil
		},
		opts...,
	)
}
