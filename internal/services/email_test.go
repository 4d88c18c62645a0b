package services

import (
	"context"
	"strings"
	"testing"

	"github.com/huangang/uptask/internal/config"
	"github.com/huangang/uptask/internal/models"
)

func TestConfirmationMail(t *testing.T) {
	user := &models.User{Name: "<Ana>", Email: "ana@example.com", Token: "abc123"}
	mail := ConfirmationMail("https://app.example.com/", user)

	if len(mail.To) != 1 || mail.To[0] != "ana@example.com" {
		t.Errorf("To = %v", mail.To)
	}
	if !strings.Contains(mail.Body, "https://app.example.com/confirm/abc123") {
		t.Errorf("body missing confirmation link: %s", mail.Body)
	}
	if strings.Contains(mail.Body, "<Ana>") {
		t.Error("user name must be escaped")
	}
}

func TestResetPasswordMail(t *testing.T) {
	mail := ResetPasswordMail("http://localhost:5173", &models.User{Name: "Ana", Email: "ana@example.com", Token: "t0k"})
	if !strings.Contains(mail.Body, "http://localhost:5173/forgot-password/t0k") {
		t.Errorf("body missing reset link: %s", mail.Body)
	}
}

func TestEnvelopeAddress(t *testing.T) {
	tests := map[string]string{
		"UpTask <accounts@uptask.local>": "accounts@uptask.local",
		"plain@example.com":              "plain@example.com",
		" spaced@example.com ":           "spaced@example.com",
	}
	for in, want := range tests {
		if got := envelopeAddress(in); got != want {
			t.Errorf("envelopeAddress(%q) = %q, expected %q", in, got, want)
		}
	}
}

func TestMailer_BuildMessage(t *testing.T) {
	m := NewMailer(&config.MailConfig{})
	msg := m.buildMessage("UpTask <a@b.c>", []string{"x@y.z", "w@y.z"}, "Hi", "<p>body</p>")

	for _, want := range []string{"From: UpTask <a@b.c>\r\n", "To: x@y.z,w@y.z\r\n", "Subject: Hi\r\n", "\r\n\r\n<p>body</p>"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestMailer_DisabledIsNoop(t *testing.T) {
	m := NewMailer(&config.MailConfig{Enabled: false, Host: "smtp.invalid"})
	if m.Enabled() {
		t.Fatal("mailer should be disabled")
	}
	if err := m.Send(context.Background(), &Mail{To: []string{"a@b.c"}, Subject: "s"}); err != nil {
		t.Errorf("Send() on disabled mailer error = %v", err)
	}
	if err := NewMailer(nil).Send(context.Background(), &Mail{}); err != nil {
		t.Errorf("Send() with no recipients error = %v", err)
	}
}
