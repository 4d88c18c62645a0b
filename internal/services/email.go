package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/huangang/uptask/internal/config"
	"github.com/huangang/uptask/internal/models"
	"github.com/huangang/uptask/pkg/logger"
)

// Mail is one outgoing message. It is also the async queue payload.
type Mail struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"` // HTML
}

// Mailer delivers mail over SMTP. With mail disabled it only logs.
type Mailer struct {
	cfg *config.MailConfig
}

func NewMailer(cfg *config.MailConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) Enabled() bool {
	return m.cfg != nil && m.cfg.Enabled && m.cfg.Host != ""
}

func (m *Mailer) Send(_ context.Context, mail *Mail) error {
	if len(mail.To) == 0 {
		return nil
	}
	if !m.Enabled() {
		logger.Info().Strs("to", mail.To).Str("subject", mail.Subject).Msg("[Email] mail disabled, not sending")
		return nil
	}
	return m.sendEmail(mail.To, mail.Subject, mail.Body)
}

// ConfirmationMail carries the account confirmation link.
func ConfirmationMail(frontendURL string, user *models.User) *Mail {
	link := fmt.Sprintf("%s/confirm/%s", strings.TrimRight(frontendURL, "/"), user.Token)
	return &Mail{
		To:      []string{user.Email},
		Subject: "UpTask - Confirm your account",
		Body: buildMailBody(user.Name,
			"Your UpTask account is almost ready. Confirm it with the link below.",
			"Confirm account", link,
			"If you did not create this account you can ignore this message."),
	}
}

// ResetPasswordMail carries the password reset link.
func ResetPasswordMail(frontendURL string, user *models.User) *Mail {
	link := fmt.Sprintf("%s/forgot-password/%s", strings.TrimRight(frontendURL, "/"), user.Token)
	return &Mail{
		To:      []string{user.Email},
		Subject: "UpTask - Reset your password",
		Body: buildMailBody(user.Name,
			"You asked to reset your password. Use the link below to choose a new one.",
			"Reset password", link,
			"If you did not ask for this you can ignore this message."),
	}
}

func buildMailBody(name, intro, action, link, footer string) string {
	var sb strings.Builder

	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<p>Hello %s,</p>", html.EscapeString(name)))
	sb.WriteString(fmt.Sprintf("<p>%s</p>", intro))
	sb.WriteString(fmt.Sprintf("<p><a href=\"%s\" style=\"background: #0284c7; color: #fff; padding: 10px 16px; border-radius: 4px; text-decoration: none;\">%s</a></p>",
		html.EscapeString(link), action))
	sb.WriteString(fmt.Sprintf("<p style=\"color: #888; font-size: 12px;\">%s</p>", footer))
	sb.WriteString("</body></html>")

	return sb.String()
}

func (m *Mailer) buildMessage(from string, to []string, subject, body string) string {
	var message strings.Builder
	headers := [][2]string{
		{"From", from},
		{"To", strings.Join(to, ",")},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}
	for _, h := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	message.WriteString("\r\n")
	message.WriteString(body)
	return message.String()
}

func (m *Mailer) sendEmail(to []string, subject, body string) error {
	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}
	message := m.buildMessage(from, to, subject, body)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	var err error
	if m.cfg.UseTLS {
		err = m.sendEmailTLS(addr, auth, envelopeAddress(from), to, message)
	} else {
		err = smtp.SendMail(addr, auth, envelopeAddress(from), to, []byte(message))
	}

	if err != nil {
		logger.Error().Err(err).Strs("to", to).Msg("[Email] failed to send email")
		return err
	}

	logger.Info().Strs("to", to).Str("subject", subject).Msg("[Email] sent")
	return nil
}

// envelopeAddress strips a display name: "UpTask <a@b.c>" becomes "a@b.c".
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i != -1 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return strings.TrimSpace(from)
}

func (m *Mailer) sendEmailTLS(addr string, auth smtp.Auth, from string, to []string, message string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(message)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
