package public

import (
	"github.com/postways-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword        string `json:"old_password" binding:"required"`
	NewPassword        string `json:"new_password" binding:"required"`
	NewPasswordConfirm string `json:"new_password_confirm" binding:"required"`
}

// ChangePassword 修改密码，成功后全部会话失效
func (h *Handler) ChangePassword(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.AccountService.ChangePassword(userID, req.OldPassword, req.NewPassword, req.NewPasswordConfirm); err != nil {
		respondAccountError(c, err)
		return
	}
	response.Success(c, nil)
}

// RecoveryRequest 找回密码请求
type RecoveryRequest struct {
	Email string `json:"email" binding:"required"`
}

// RequestRecovery 申请找回密码
// 为避免探测注册邮箱，无论邮箱是否存在都返回成功。
func (h *Handler) RequestRecovery(c *gin.Context) {
	var req RecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.AccountService.RequestRecovery(req.Email); err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithMsg(c, "recovery_email_sent", nil)
}

// ResetPasswordRequest 重置密码请求
type ResetPasswordRequest struct {
	Token              string `json:"token" binding:"required"`
	NewPassword        string `json:"new_password" binding:"required"`
	NewPasswordConfirm string `json:"new_password_confirm" binding:"required"`
}

// ResetPassword 使用找回 Token 重置密码
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.AccountService.ResetPassword(req.Token, req.NewPassword, req.NewPasswordConfirm); err != nil {
		respondAccountError(c, err)
		return
	}
	response.Success(c, nil)
}

// ChangeUsernameRequest 修改用户名请求
type ChangeUsernameRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ChangeUsername 修改用户名，冷却期 30 天
func (h *Handler) ChangeUsername(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req ChangeUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.AccountService.ChangeUsername(userID, req.Username, req.Password); err != nil {
		respondAccountError(c, err)
		return
	}
	response.Success(c, nil)
}

// ChangeEmailRequest 发起换绑邮箱请求
type ChangeEmailRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// InitiateEmailChange 发起换绑邮箱，验证通过前当前邮箱不变
func (h *Handler) InitiateEmailChange(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req ChangeEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.AccountService.InitiateEmailChange(userID, req.Email, req.Password); err != nil {
		respondAccountError(c, err)
		return
	}
	response.SuccessWithMsg(c, "verification_email_sent", nil)
}

// VerifyEmailChangeRequest 换绑邮箱验证请求
type VerifyEmailChangeRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyEmailChange 验证换绑邮箱，成功后全部会话失效
func (h *Handler) VerifyEmailChange(c *gin.Context) {
	var req VerifyEmailChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	user, err := h.AccountService.VerifyEmailChange(req.Token)
	if err != nil {
		respondAccountError(c, err)
		return
	}
	response.Success(c, buildUserView(user))
}

// DeleteAccountRequest 注销账号请求
type DeleteAccountRequest struct {
	Password string `json:"password"`
	UserID   uint   `json:"user_id"`
}

// DeleteAccount 注销账号
// 本人注销需提供口令，管理员可指定 user_id 删除其他账号。
func (h *Handler) DeleteAccount(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req DeleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	targetID := req.UserID
	if targetID == 0 {
		targetID = actor.ID
	}
	if err := h.AccountService.DeleteAccount(actor, targetID, req.Password); err != nil {
		respondAccountError(c, err)
		return
	}
	response.Success(c, nil)
}
