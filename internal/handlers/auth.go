package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/uptask/internal/middleware"
	"github.com/huangang/uptask/internal/services"
	"github.com/huangang/uptask/pkg/response"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register creates an account and mails its confirmation link
// POST /api/users
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, user)
}

// Login handles user login
// POST /api/users/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// Confirm spends a confirmation token
// GET /api/users/confirm/:token
func (h *AuthHandler) Confirm(c *gin.Context) {
	if err := h.authService.Confirm(c.Request.Context(), c.Param("token")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "account confirmed")
}

// ForgotPassword mails a reset link
// POST /api/users/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req services.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "we sent you an email with instructions")
}

// CheckResetToken
// GET /api/users/forgot-password/:token
func (h *AuthHandler) CheckResetToken(c *gin.Context) {
	if err := h.authService.CheckResetToken(c.Request.Context(), c.Param("token")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "valid token")
}

// ResetPassword
// POST /api/users/forgot-password/:token
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req services.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), c.Param("token"), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "password updated")
}

// Profile returns the current logged-in user
// GET /api/users/profile
func (h *AuthHandler) Profile(c *gin.Context) {
	user, err := h.authService.Profile(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}
