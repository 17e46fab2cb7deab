package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/xqin1/pipeflow/internal/domain"
)

const (
	defaultSMTPHost = "smtp.gmail.com"
	defaultSMTPPort = 587
)

// SMTPSender delivers email notifications over SMTP with STARTTLS.
// Credentials are process-wide; host/port/addresses come from the
// workflow's email target.
type SMTPSender struct {
	username string
	password string
}

// NewSMTPSender creates an email sender with the given credentials.
func NewSMTPSender(username, password string) *SMTPSender {
	return &SMTPSender{username: username, password: password}
}

// Ensure SMTPSender implements EmailSender.
var _ EmailSender = (*SMTPSender)(nil)

// Send delivers one message to the target. The context deadline is not
// honored mid-handshake; net/smtp has no context support, so the dial
// blocks at most on the OS-level TCP timeout.
func (s *SMTPSender) Send(ctx context.Context, target *domain.EmailTarget, subject, body string) error {
	host := target.SMTPHost
	if host == "" {
		host = defaultSMTPHost
	}
	port := target.SMTPPort
	if port == 0 {
		port = defaultSMTPPort
	}
	from := target.From
	if from == "" {
		from = s.username
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", from, target.To, subject, body)
	addr := fmt.Sprintf("%s:%d", host, port)
	auth := smtp.PlainAuth("", s.username, s.password, host)

	if err := smtp.SendMail(addr, auth, from, []string{target.To}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", addr, err)
	}
	return nil
}
