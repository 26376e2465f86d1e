// Package mailer sends the account verification mail. With no SMTP
// configuration the server falls back to logging the verification link,
// which is what development runs want anyway.
package mailer

import (
	"fmt"
	"log/slog"
	"net/smtp"
)

// Mailer delivers the verification mail for a fresh registration.
type Mailer interface {
	SendVerification(email, username, verifyURL string) error
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPMailer(host, port, user, pass, from string) *SMTPMailer {
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, pass, host)
	}
	return &SMTPMailer{
		addr: host + ":" + port,
		auth: auth,
		from: from,
	}
}

func (m *SMTPMailer) SendVerification(email, username, verifyURL string) error {
	body := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Verify your Kutter account\r\n\r\n"+
			"Hi %s,\r\n\r\nConfirm your account by opening the link below:\r\n\r\n%s\r\n",
		m.from, email, username, verifyURL,
	)
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{email}, []byte(body)); err != nil {
		return fmt.Errorf("failed to send verification mail: %w", err)
	}
	return nil
}

// LogMailer logs the verification link instead of sending mail.
type LogMailer struct{}

func (LogMailer) SendVerification(email, _, verifyURL string) error {
	slog.Info("Verification mail (SMTP not configured)", "email", email, "url", verifyURL)
	return nil
}
