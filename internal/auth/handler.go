package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/pkg/response"
)

// LoginRequest is the body for POST /api/auth/login and /api/website-admins/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is the body for POST /api/auth/refresh-token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// LogoutRequest is the body for POST /api/auth/logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ChangePasswordRequest is the body for POST /api/auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6,nefield=CurrentPassword"`
	RefreshToken    string `json:"refreshToken"`
}

// ForgotPasswordRequest is the body for POST /api/auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// VerifyOTPRequest is the body for POST /api/auth/verify-otp. Older clients send the code as
// "otp".
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"omitempty,len=6,numeric"`
	OTP   string `json:"otp" binding:"omitempty,len=6,numeric"`
}

// ResetPasswordRequest is the body for POST /api/auth/reset-password.
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"omitempty,len=6,numeric"`
	OTP         string `json:"otp" binding:"omitempty,len=6,numeric"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

func otpCode(code, alias string) string {
	if code != "" {
		return code
	}
	return alias
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func principal(c *gin.Context) authz.Principal {
	p, _ := authz.FromContext(c.Request.Context())
	return p
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// AdminLogin handles POST /api/website-admins/login.
func (h *Handler) AdminLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session, err := h.svc.AdminLogin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// Refresh handles POST /api/auth/refresh-token.
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	token, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"token": token})
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(c *gin.Context) {
	profile, err := h.svc.Me(c.Request.Context(), principal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	var req LogoutRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.svc.Logout(c.Request.Context(), principal(c), req.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "logged out")
}

// ChangePassword handles POST /api/auth/change-password.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), principal(c), req.CurrentPassword, req.NewPassword, req.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "password changed")
}

// ForgotPassword handles POST /api/auth/forgot-password. The answer is the same whether or not
// the email exists.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "if the email is registered, a verification code has been sent")
}

// VerifyOTP handles POST /api/auth/verify-otp.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	code := otpCode(req.Code, req.OTP)
	if code == "" {
		response.BadRequest(c, "invalid request: code is required")
		return
	}
	if err := h.svc.VerifyOTP(c.Request.Context(), req.Email, code); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "code verified")
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	code := otpCode(req.Code, req.OTP)
	if code == "" {
		response.BadRequest(c, "invalid request: code is required")
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), req.Email, code, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "password has been reset")
}
