package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// sendMailFunc matches smtp.SendMail and allows tests to intercept delivery.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier implements Notifier by sending plain-text email over SMTP.
type SMTPNotifier struct {
	host     string
	port     int
	username string
	password string
	from     string
	sendMail sendMailFunc
}

// SMTPOption configures an SMTPNotifier.
type SMTPOption func(*SMTPNotifier)

// WithSendMailFunc overrides the delivery function. Used in tests.
func WithSendMailFunc(fn sendMailFunc) SMTPOption {
	return func(s *SMTPNotifier) {
		s.sendMail = fn
	}
}

// NewSMTPNotifier creates an SMTP notifier. Username and password are
// optional; when both are empty the connection is unauthenticated.
func NewSMTPNotifier(host string, port int, username, password, from string, opts ...SMTPOption) *SMTPNotifier {
	s := &SMTPNotifier{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		sendMail: smtp.SendMail,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers a message as a plain-text email.
func (s *SMTPNotifier) Send(_ context.Context, msg Message) error {
	var auth smtp.Auth
	if s.username != "" || s.password != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	if err := s.sendMail(addr, auth, s.from, []string{msg.To}, buildEmail(s.from, msg)); err != nil {
		return fmt.Errorf("sending email to %s: %w", msg.To, err)
	}
	return nil
}

// buildEmail renders the RFC 5322 message body with CRLF line endings.
func buildEmail(from string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
