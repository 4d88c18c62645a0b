package services

import (
	"context"
	"strings"
	"testing"

	"github.com/huangang/uptask/internal/config"
	"github.com/huangang/uptask/internal/models"
	"github.com/huangang/uptask/internal/utils"
	"github.com/huangang/uptask/pkg/response"
)

func newAuthService(t *testing.T) (*AuthService, *captureMailQueue) {
	t.Helper()
	utils.SetJWTSecret("auth-test-secret")
	mail := &captureMailQueue{}
	db := newTestDB(t)
	return NewAuthService(db, &config.JWTConfig{ExpireHour: 1}, mail, "https://app.example.com/"), mail
}

func TestAuthService_RegisterConfirmLogin(t *testing.T) {
	svc, mail := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, &RegisterRequest{Name: " Ana ", Email: "Ana@Example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Email != "ana@example.com" || user.Name != "Ana" || user.Confirmed {
		t.Errorf("user = %+v", user)
	}

	sent := mail.last()
	if sent == nil || sent.To[0] != "ana@example.com" {
		t.Fatalf("confirmation mail = %+v", sent)
	}
	link := "https://app.example.com/confirm/" + user.Token
	if !strings.Contains(sent.Body, link) {
		t.Errorf("mail body missing %q", link)
	}

	_, err = svc.Register(ctx, &RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "secret123"})
	assertKind(t, err, response.ErrAlreadyExists)

	_, err = svc.Login(ctx, &LoginRequest{Email: "ana@example.com", Password: "secret123"})
	assertKind(t, err, response.ErrForbidden)

	if err := svc.Confirm(ctx, user.Token); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	assertKind(t, svc.Confirm(ctx, user.Token), response.ErrInvalid)

	_, err = svc.Login(ctx, &LoginRequest{Email: "ana@example.com", Password: "wrong-pass"})
	assertKind(t, err, response.ErrUnauthorized)

	_, err = svc.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	assertKind(t, err, response.ErrNotFound)

	resp, err := svc.Login(ctx, &LoginRequest{Email: "ANA@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	claims, err := utils.ParseToken(resp.Token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID != user.ID || claims.Email != "ana@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := newAuthService(t)

	_, err := svc.Register(context.Background(), &RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "123"})
	assertKind(t, err, response.ErrInvalid)

	_, err = svc.Register(context.Background(), &RegisterRequest{Name: "", Email: "ana@example.com", Password: "secret123"})
	assertKind(t, err, response.ErrInvalid)
}

func TestAuthService_PasswordReset(t *testing.T) {
	svc, mail := newAuthService(t)
	ctx := context.Background()
	user := createUser(t, svc.db, "Beto")

	assertKind(t, svc.ForgotPassword(ctx, &ForgotPasswordRequest{Email: "ghost@example.com"}), response.ErrNotFound)

	if err := svc.ForgotPassword(ctx, &ForgotPasswordRequest{Email: user.Email}); err != nil {
		t.Fatalf("ForgotPassword() error = %v", err)
	}

	var stored models.User
	svc.db.First(&stored, user.ID)
	if stored.Token == "" {
		t.Fatal("reset token should be stored")
	}
	if !strings.Contains(mail.last().Body, "/forgot-password/"+stored.Token) {
		t.Error("reset mail should carry the token link")
	}

	if err := svc.CheckResetToken(ctx, stored.Token); err != nil {
		t.Errorf("CheckResetToken() error = %v", err)
	}
	assertKind(t, svc.CheckResetToken(ctx, "bogus"), response.ErrInvalid)
	assertKind(t, svc.CheckResetToken(ctx, ""), response.ErrInvalid)

	assertKind(t, svc.ResetPassword(ctx, stored.Token, &ResetPasswordRequest{Password: "123"}), response.ErrInvalid)

	if err := svc.ResetPassword(ctx, stored.Token, &ResetPasswordRequest{Password: "brand-new-pass"}); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	assertKind(t, svc.CheckResetToken(ctx, stored.Token), response.ErrInvalid)

	if _, err := svc.Login(ctx, &LoginRequest{Email: user.Email, Password: "brand-new-pass"}); err != nil {
		t.Errorf("Login with new password error = %v", err)
	}
}

func TestAuthService_Profile(t *testing.T) {
	svc, _ := newAuthService(t)
	user := createUser(t, svc.db, "Caro")

	got, err := svc.Profile(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if got.Email != user.Email {
		t.Errorf("Email = %q", got.Email)
	}

	_, err = svc.Profile(context.Background(), 9999)
	assertKind(t, err, response.ErrNotFound)
}
