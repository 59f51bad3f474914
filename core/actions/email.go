package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/knolabs/daela/core/mail"
)

// EmailParams are the arguments of the send-email action.
type EmailParams struct {
	ToEmail     string `json:"to_email" jsonschema:"description=The email address to send to"`
	Subject     string `json:"subject" jsonschema:"description=The subject line of the email"`
	BodyContent string `json:"body_content" jsonschema:"description=The content/body of the email"`
}

var defaultEmailFillers = []string{
	"I'll help you send that email right away.",
	"Let me send that email for you.",
	"Sending your email now.",
}

const emailBodyTemplate = `<!DOCTYPE html>
<html>
<body>
    <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
        %s
    </div>
</body>
</html>`

// NewSendEmailAction builds the send-email action. The body is normalized
// into a minimal HTML wrapper and delivered through the given sender in a
// single attempt; failures name the underlying transport error.
func NewSendEmailAction(sender mail.Sender, from mail.Address, opts ...Option) Action {
	opts = append([]Option{WithFillers(defaultEmailFillers...)}, opts...)

	return New(
		"send_email",
		"Called when the user wants to send an email. Sends a single email to the given recipient.",
		func(ctx context.Context, params EmailParams) (string, error) {
			email := mail.Email{
				From:    from,
				To:      params.ToEmail,
				Subject: params.Subject,
				HTML:    strings.TrimSpace(fmt.Sprintf(emailBodyTemplate, params.BodyContent)),
			}

			if err := sender.Send(ctx, email); err != nil {
				return "", fmt.Errorf("failed to send email: %w", err)
			}

			return fmt.Sprintf("Email sent successfully to %s", params.ToEmail), nil
		},
		opts...,
	)
}
