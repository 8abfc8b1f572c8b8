package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/yuin/goldmark"
)

// ErrNotConfigured is returned when no email credentials are set.
var ErrNotConfigured = errors.New("email is not configured")

// Message is a transactional email. Body is Markdown; it is sent as the text
// part and rendered to HTML for the html part.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends transactional email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Resend implements Mailer with the Resend API.
type Resend struct {
	client *resend.Client
	from   string
}

// NewResend builds a mailer sending as from.
func NewResend(apiKey, from string) *Resend {
	return &Resend{client: resend.NewClient(apiKey), from: from}
}

// Send implements Mailer.
func (r *Resend) Send(ctx context.Context, msg Message) error {
	html, err := RenderHTML(msg.Body)
	if err != nil {
		return err
	}
	_, err = r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    html,
		Text:    msg.Body,
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// Disabled is the Mailer used when email is not configured.
type Disabled struct{}

// Send implements Mailer.
func (Disabled) Send(context.Context, Message) error { return ErrNotConfigured }

// RenderHTML converts a Markdown body to HTML.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

const markdownPunct = "\\`*_{}[]()#+-.!|<>~&"

// EscapeMarkdown makes user-supplied text render literally inside a Markdown
// body. Line breaks are folded to spaces so text cannot open a new block.
func EscapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\r' || r == '\n':
			b.WriteByte(' ')
		case strings.ContainsRune(markdownPunct, r):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
