package services

import (
	"context"
	"strings"
	"time"

	"github.com/huangang/uptask/internal/config"
	"github.com/huangang/uptask/internal/models"
	"github.com/huangang/uptask/internal/utils"
	"github.com/huangang/uptask/pkg/logger"
	"github.com/huangang/uptask/pkg/response"
	"gorm.io/gorm"
)

// AuthService owns accounts: registration, confirmation, login and
// password reset. It is the identity context the rest of the core trusts.
type AuthService struct {
	db          *gorm.DB
	jwtConfig   *config.JWTConfig
	mail        MailQueue
	frontendURL string
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, mail MailQueue, frontendURL string) *AuthService {
	return &AuthService{
		db:          db,
		jwtConfig:   jwtCfg,
		mail:        mail,
		frontendURL: frontendURL,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6"`
}

type LoginResponse struct {
	Token    string       `json:"token"`
	User     *models.User `json:"user"`
	ExpireAt time.Time    `json:"expire_at"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unconfirmed account and mails its confirmation link.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return nil, internal("register", err)
	}
	if count > 0 {
		return nil, response.NewAlreadyExists("user already registered")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, internal("register", err)
	}

	user := models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: hash,
		Token:    utils.NewOneTimeToken(),
	}
	if err := db.Create(&user).Error; err != nil {
		if isDuplicate(err) {
			return nil, response.NewAlreadyExists("user already registered")
		}
		return nil, internal("register", err)
	}

	s.sendMail(ctx, ConfirmationMail(s.frontendURL, &user))
	return &user, nil
}

// Login checks the credentials of a confirmed account and issues a JWT.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewNotFound("user does not exist")
		}
		return nil, internal("login", err)
	}
	if !user.Confirmed {
		return nil, response.NewForbidden("your account has not been confirmed")
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		return nil, response.NewUnauthorized("incorrect password")
	}

	hours := s.jwtConfig.ExpireHour
	token, err := utils.GenerateToken(user.ID, user.Email, user.Name, hours)
	if err != nil {
		return nil, internal("login", err)
	}

	return &LoginResponse{
		Token:    token,
		User:     &user,
		ExpireAt: time.Now().Add(time.Duration(hours) * time.Hour),
	}, nil
}

func (s *AuthService) userByToken(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, response.NewInvalid("invalid token")
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewInvalid("invalid token")
		}
		return nil, internal("check token", err)
	}
	return &user, nil
}

// Confirm marks the account holding token as confirmed and spends the token.
func (s *AuthService) Confirm(ctx context.Context, token string) error {
	user, err := s.userByToken(ctx, token)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"confirmed": true,
		"token":     "",
	}).Error; err != nil {
		return internal("confirm account", err)
	}
	logger.Info().Uint("user_id", user.ID).Msg("account confirmed")
	return nil
}

// ForgotPassword issues a reset token and mails the reset link.
func (s *AuthService) ForgotPassword(ctx context.Context, req *ForgotPasswordRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return err
	}

	var user models.User
	db := s.db.WithContext(ctx)
	if err := db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if isNotFound(err) {
			return response.NewNotFound("user does not exist")
		}
		return internal("request password reset", err)
	}

	user.Token = utils.NewOneTimeToken()
	if err := db.Model(&user).Update("token", user.Token).Error; err != nil {
		return internal("request password reset", err)
	}

	s.sendMail(ctx, ResetPasswordMail(s.frontendURL, &user))
	return nil
}

// CheckResetToken reports whether token belongs to an account.
func (s *AuthService) CheckResetToken(ctx context.Context, token string) error {
	_, err := s.userByToken(ctx, token)
	return err
}

// ResetPassword sets a new password and spends the token.
func (s *AuthService) ResetPassword(ctx context.Context, token string, req *ResetPasswordRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	user, err := s.userByToken(ctx, token)
	if err != nil {
		return err
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return internal("reset password", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"password": hash,
		"token":    "",
	}).Error; err != nil {
		return internal("reset password", err)
	}
	return nil
}

// Profile returns the caller's own account.
func (s *AuthService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if isNotFound(err) {
			return nil, errUserNotFound
		}
		return nil, internal("load profile", err)
	}
	return &user, nil
}

// mail failures never fail the request; the user can ask again
func (s *AuthService) sendMail(ctx context.Context, mail *Mail) {
	if s.mail == nil {
		return
	}
	if err := s.mail.Enqueue(ctx, mail); err != nil {
		logger.Warn().Err(err).Strs("to", mail.To).Msg("could not enqueue mail")
	}
}
