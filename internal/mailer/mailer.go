// Package mailer delivers password reset links.
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP creates a mailer for the relay at addr (host:port). Credentials are
// optional.
func NewSMTP(addr, username, password, from string) *SMTPMailer {
	m := &SMTPMailer{addr: addr, from: from, send: smtp.SendMail}
	if username != "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		m.auth = smtp.PlainAuth("", username, password, host)
	}
	return m
}

// SendPasswordReset mails the reset link to the given address.
func (m *SMTPMailer) SendPasswordReset(_ context.Context, to, link string) error {
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("invalid recipient %q", to)
	}
	msg := buildResetMessage(m.from, to, link)
	if err := m.send(m.addr, m.auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

func buildResetMessage(from, to, link string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: Reset your PicTag password\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Follow this link to choose a new password:\r\n\r\n")
	b.WriteString(link + "\r\n\r\n")
	b.WriteString("If you did not ask to reset your password, ignore this message.\r\n")
	return []byte(b.String())
}

// LogMailer writes reset links to the log. Used when no relay is configured.
type LogMailer struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.log.Info("password reset requested", zap.String("email", to), zap.String("link", link))
	return nil
}
