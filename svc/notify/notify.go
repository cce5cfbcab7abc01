// Package notify renders verification codes into emails and hands them to
// an email.EmailSender.
package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/dmitrymomot/credkit/pkg/email"
	"github.com/dmitrymomot/credkit/pkg/otp"
	"github.com/dmitrymomot/credkit/svc/account"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var (
	htmlTemplate = htmltemplate.Must(htmltemplate.ParseFS(templatesFS, "templates/code.html.tmpl"))
	textTemplate = texttemplate.Must(texttemplate.ParseFS(templatesFS, "templates/code.txt.tmpl"))
)

var ErrUnknownPurpose = errors.New("notify: unknown code purpose")

type message struct {
	subject string
	intro   string
	tag     string
}

var messages = map[otp.Purpose]message{
	otp.PurposeRegistration: {
		subject: "Verify your email address",
		intro:   "Use this code to finish creating your account:",
		tag:     "registration",
	},
	otp.PurposePasswordReset: {
		subject: "Reset your password",
		intro:   "Use this code to choose a new password:",
		tag:     "password-reset",
	},
}

// Mailer implements account.Notifier over an email sender.
type Mailer struct {
	sender  email.EmailSender
	product string
	support string
}

var _ account.Notifier = (*Mailer)(nil)

// Option configures a Mailer.
type Option func(*Mailer)

// WithProduct sets the product name shown in messages.
func WithProduct(name string) Option {
	return func(m *Mailer) {
		if name != "" {
			m.product = name
		}
	}
}

// WithSupportEmail adds a support contact to messages.
func WithSupportEmail(addr string) Option {
	return func(m *Mailer) { m.support = addr }
}

// NewMailer creates a Mailer.
func NewMailer(sender email.EmailSender, opts ...Option) *Mailer {
	m := &Mailer{sender: sender, product: "Secure Job Platform"}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type view struct {
	Subject   string
	Product   string
	Name      string
	Intro     string
	Code      string
	ExpiresIn string
	Support   string
}

// SendCode renders and sends d.
func (m *Mailer) SendCode(ctx context.Context, d account.Delivery) error {
	msg, ok := messages[d.Purpose]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPurpose, d.Purpose)
	}

	v := view{
		Subject:   msg.subject,
		Product:   m.product,
		Name:      d.Name,
		Intro:     msg.intro,
		Code:      d.Code,
		ExpiresIn: humanize(d.ExpiresIn),
		Support:   m.support,
	}

	var html, text bytes.Buffer
	if err := htmlTemplate.Execute(&html, v); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if err := textTemplate.Execute(&text, v); err != nil {
		return fmt.Errorf("render text: %w", err)
	}

	return m.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   d.Email,
		Subject:  msg.subject,
		BodyHTML: html.String(),
		BodyText: text.String(),
		Tag:      msg.tag,
	})
}

// humanize renders durations the way people read them: "5 minutes".
func humanize(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d <= 0:
		return "a moment"
	case d < time.Minute:
		return plural(int(d/time.Second), "second")
	case d < time.Hour:
		return plural(int(d.Round(time.Minute)/time.Minute), "minute")
	default:
		return plural(int(d.Round(time.Hour)/time.Hour), "hour")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, strings.TrimSuffix(unit, "s"))
}
