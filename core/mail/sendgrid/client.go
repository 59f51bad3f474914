package sendgrid

import (
	"context"
	"fmt"
	"net/http"

	"github.com/knolabs/daela/core/mail"
	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
)

const defaultHost = "https://api.sendgrid.com"

var _ mail.Sender = (*Client)(nil)

// Client delivers mail through the SendGrid v3 mail send endpoint.
type Client struct {
	apiKey string
	host   string
	rest   *rest.Client
}

type Option func(*Client)

// WithHost overrides the API host, mainly for tests.
func WithHost(host string) Option {
	return func(c *Client) { c.host = host }
}

func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey: apiKey,
		host:   defaultHost,
		rest:   &rest.Client{HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Send issues a single mail send request. Any non-2xx response is reported
// as an error carrying the SendGrid status and body. There is no retry.
func (c *Client) Send(ctx context.Context, email mail.Email) error {
	ctx, span := tracer.Start(ctx, "send email")
	defer span.End()

	from := sgmail.NewEmail(email.From.Name, email.From.Email)
	to := sgmail.NewEmail("", email.To)
	message := sgmail.NewSingleEmail(from, email.Subject, to, "", email.HTML)

	request := rest.Request{
		Method:  rest.Post,
		BaseURL: c.host + "/v3/mail/send",
		Headers: map[string]string{
			"Authorization": "Bearer " + c.apiKey,
			"Content-Type":  "application/json",
		},
		Body: sgmail.GetRequestBody(message),
	}

	response, err := c.rest.SendWithContext(ctx, request)
	if err != nil {
		err = fmt.Errorf("mail delivery request failed: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		err = fmt.Errorf("mail delivery rejected with status %d: %s", response.StatusCode, response.Body)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
