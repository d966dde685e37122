// Package notify implements the email collaborator of the chat pipeline.
// The owner is emailed when a visitor message arrives and when the contact
// form is submitted; the contact sender additionally receives an automatic
// acknowledgement.
//
// Everything here is best-effort: callers treat delivery failures as log
// lines, never as request failures, and message persistence must not depend
// on the notifier at all.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/skumar-dev/portfolio-chat-backend/internal/domain"
)

// Mailer sends a single message. It exists so tests can capture outgoing
// mail without a network; SMTPMailer is the production implementation.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// SMTPMailer delivers mail through a plain-auth SMTP submission endpoint
// (the original deployment used Gmail app passwords).
type SMTPMailer struct {
	Addr     string // host:port
	Username string
	Password string
	From     string
}

// Send performs a blocking SMTP exchange. The context governs only the
// caller's patience; net/smtp has no native cancellation, so cancellation
// is checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	host := m.Addr
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, host)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		m.From, strings.Join(to, ", "), subject, body)
	return smtp.SendMail(m.Addr, auth, m.From, to, []byte(msg))
}

// EmailNotifier formats the pipeline's notification mails and hands them to
// a Mailer.
type EmailNotifier struct {
	Mailer Mailer
	// Owner is the portfolio owner's address; all notifications land there.
	Owner string
	// SiteName appears in subjects, e.g. "[Portfolio] ...".
	SiteName string
}

// titleCaser capitalizes contact names for subjects.
var titleCaser = cases.Title(language.English)

// VisitorMessage emails the owner about a new chat message. Bot and admin
// messages never reach here; the sender only notifies for visitors.
func (n *EmailNotifier) VisitorMessage(ctx context.Context, m *domain.ChatMessage) error {
	from := m.Email
	if from == "" {
		from = "Anonymous visitor"
	}
	subject := fmt.Sprintf("[%s] New chat message", n.SiteName)
	body := fmt.Sprintf(
		"From: %s\nSession: %s\nTime: %s\n\n%s\n",
		from, m.Metadata.SessionID, m.Timestamp.Format("2006-01-02 15:04:05 MST"), m.Content,
	)
	return n.Mailer.Send(ctx, []string{n.Owner}, subject, body)
}

// ContactForm emails the owner a contact-form submission and sends the
// automatic acknowledgement back to the visitor. The acknowledgement is
// best-effort on top of best-effort: a failure there is reported only if
// the owner mail also failed.
func (n *EmailNotifier) ContactForm(ctx context.Context, name, email, message string) error {
	display := titleCaser.String(strings.TrimSpace(name))

	subject := fmt.Sprintf("[%s] Contact form message from %s", n.SiteName, display)
	body := fmt.Sprintf("Name: %s\nEmail: %s\n\n%s\n", display, email, message)
	ownerErr := n.Mailer.Send(ctx, []string{n.Owner}, subject, body)

	ackSubject := fmt.Sprintf("Thanks for reaching out! - %s", n.SiteName)
	ackBody := fmt.Sprintf(
		"Hi %s,\n\nThank you for your message! I've received it and typically respond within 24-48 hours.\n\nYour message:\n%q\n",
		display, clip(message, 200),
	)
	if err := n.Mailer.Send(ctx, []string{email}, ackSubject, ackBody); err != nil && ownerErr == nil {
		return nil // owner got theirs; the ack is disposable
	}
	return ownerErr
}

// clip truncates s to max runes with an ellipsis.
func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
