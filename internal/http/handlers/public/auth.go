package public

import (
	"errors"
	"strings"

	"github.com/postways-next/internal/http/response"
	"github.com/postways-next/internal/models"
	"github.com/postways-next/internal/service"

	"github.com/gin-gonic/gin"
)

// UserView 用户响应结构
type UserView struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

func buildUserView(user *models.User) UserView {
	return UserView{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		IsAdmin:  user.IsAdmin,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register 注册新用户并直接签发 Token 对
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	user, err := h.AccountService.Register(req.Username, req.Email, req.Password)
	if err != nil {
		respondAccountError(c, err)
		return
	}
	pair, err := h.TokenService.IssuePair(user)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, gin.H{
		"user":  buildUserView(user),
		"token": pair,
	})
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录并签发 Token 对
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	user, pair, err := h.TokenService.Login(strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(c, response.CodeUnauthorized, "error.invalid_credentials", nil)
		case errors.Is(err, service.ErrAccountDisabled):
			respondError(c, response.CodeUnauthorized, "error.account_disabled", nil)
		default:
			respondError(c, response.CodeInternal, "error.internal", err)
		}
		return
	}
	response.Success(c, gin.H{
		"user":  buildUserView(user),
		"token": pair,
	})
}

// RefreshRequest 刷新请求
type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// Refresh 轮换刷新 Token 并签发新访问 Token
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	pair, err := h.TokenService.Refresh(req.Refresh)
	if err != nil {
		respondTokenError(c, err)
		return
	}
	response.Success(c, pair)
}

// VerifyTokenRequest 校验请求
type VerifyTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyToken 校验 Token 是否仍然有效
// 按 Token 自带类型做完整校验：签名、有效期、拉黑状态与吊销水位。
func (h *Handler) VerifyToken(c *gin.Context) {
	var req VerifyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if _, err := h.TokenService.VerifyAny(req.Token); err != nil {
		respondTokenError(c, err)
		return
	}
	response.Success(c, nil)
}

// Logout 拉黑当前刷新 Token
func (h *Handler) Logout(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.TokenService.Logout(req.Refresh); err != nil {
		respondTokenError(c, err)
		return
	}
	response.Success(c, nil)
}

// Me 获取当前登录用户信息
func (h *Handler) Me(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	response.Success(c, buildUserView(user))
}
