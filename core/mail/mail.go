// Package mail defines the email-delivery contract used by the send-email
// action. Delivery is synchronous and carries no retry policy.
package mail

import "context"

// Address is a sender or recipient address with an optional display name.
type Address struct {
	Email string
	Name  string
}

// Email is a single outgoing message with an HTML body.
type Email struct {
	From    Address
	To      string
	Subject string
	HTML    string
}

// Sender delivers a single email, returning an error when the underlying
// transport reports a failure.
type Sender interface {
	Send(ctx context.Context, email Email) error
}
