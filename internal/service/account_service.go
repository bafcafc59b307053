package service

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/postways-next/internal/cache"
	"github.com/postways-next/internal/config"
	"github.com/postways-next/internal/constants"
	"github.com/postways-next/internal/logger"
	"github.com/postways-next/internal/models"
	"github.com/postways-next/internal/queue"
	"github.com/postways-next/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9.@+_-]+$`)

// cooldownError 携带剩余天数的冷却期错误
type cooldownError struct {
	remainingDays int
}

func (e cooldownError) Error() string {
	return "error.username_cooldown_active"
}

func (e cooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

func (e cooldownError) Key() string {
	return "error.username_cooldown_active"
}

func (e cooldownError) Args() []interface{} {
	return []interface{}{e.remainingDays}
}

// AccountService 账号与身份变更服务
// 改密、改名、换绑邮箱与注销都会吊销用户全部会话。
type AccountService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	tokens   *TokenService
	queue    *queue.Client
}

// NewAccountService 创建账号服务
func NewAccountService(cfg *config.Config, userRepo repository.UserRepository, tokens *TokenService, queueClient *queue.Client) *AccountService {
	return &AccountService{
		cfg:      cfg,
		userRepo: userRepo,
		tokens:   tokens,
		queue:    queueClient,
	}
}

func validateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > 150 {
		return ErrUsernameInvalid
	}
	if !usernamePattern.MatchString(username) {
		return ErrUsernameInvalid
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrEmailInvalid
	}
	return strings.ToLower(email), nil
}

// Register 注册新用户
func (s *AccountService) Register(username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(s.cfg.Security.PasswordPolicy, password); err != nil {
		return nil, err
	}

	taken, err := s.userRepo.ExistsUsername(username, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}
	taken, err = s.userRepo.ExistsEmail(normalized, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     username,
		Email:        normalized,
		PasswordHash: hash,
		Status:       constants.UserStatusActive,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword 修改密码并吊销全部会话
// 口令写入与吊销在同一事务内提交，不会出现改密成功但旧会话仍有效的窗口。
func (s *AccountService) ChangePassword(userID uint, oldPassword, newPassword, confirm string) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotFound
	}
	if err := verifyPassword(user.PasswordHash, oldPassword); err != nil {
		return ErrWrongPassword
	}
	if newPassword != confirm {
		return ErrPasswordMismatch
	}
	if err := validatePassword(s.cfg.Security.PasswordPolicy, newPassword); err != nil {
		return err
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return s.updateAndRevokeSessions(user)
}

// updateAndRevokeSessions 在同一事务内落盘用户变更并吊销全部会话
func (s *AccountService) updateAndRevokeSessions(user *models.User) error {
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.WithTx(tx).Update(user); err != nil {
			return err
		}
		return s.tokens.revokeAllInTx(tx, user)
	})
	if err != nil {
		return err
	}
	return cache.SetUserAuthState(context.Background(), cache.BuildUserAuthState(user))
}

// RequestRecovery 申请找回密码
// 无论邮箱是否存在都返回成功，避免探测注册邮箱。
// 先吊销既有会话再签发找回 Token，旧会话与旧找回链接一并失效。
func (s *AccountService) RequestRecovery(email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil
	}
	user, err := s.userRepo.GetByEmail(normalized)
	if err != nil {
		return err
	}
	if user == nil || user.Status != constants.UserStatusActive {
		return nil
	}
	if err := s.tokens.RevokeAllForUser(user); err != nil {
		return err
	}
	token, _, _, err := s.tokens.sign(user, constants.TokenTypeRecovery, time.Hour)
	if err != nil {
		return err
	}
	err = s.queue.EnqueueRecoveryEmail(queue.RecoveryEmailPayload{
		UserID: user.ID,
		Email:  user.Email,
		Token:  token,
	})
	if err != nil {
		logger.Errorw("找回密码邮件入队失败", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword 使用找回 Token 重置密码并吊销全部会话
// 走完整校验（签名、有效期、吊销水位），重置成功推进水位后同一
// Token 不能再次使用。
func (s *AccountService) ResetPassword(token, newPassword, confirm string) error {
	claims, err := s.tokens.Verify(token, constants.TokenTypeRecovery)
	if err != nil {
		return ErrRecoveryTokenInvalid
	}
	user, err := s.userRepo.GetByID(claims.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrRecoveryTokenInvalid
	}
	if newPassword != confirm {
		return ErrPasswordMismatch
	}
	if err := validatePassword(s.cfg.Security.PasswordPolicy, newPassword); err != nil {
		return err
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return s.updateAndRevokeSessions(user)
}

// ChangeUsername 修改用户名
// 冷却期 30 天，满 30 天（含边界）即可再次修改。改名后吊销全部会话。
func (s *AccountService) ChangeUsername(userID uint, newUsername, password string) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotFound
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return ErrWrongPassword
	}
	newUsername = strings.TrimSpace(newUsername)
	if err := validateUsername(newUsername); err != nil {
		return err
	}
	if strings.EqualFold(newUsername, user.Username) {
		return ErrUsernameTaken
	}
	if user.UsernameChangedAt != nil {
		cooldown := time.Duration(constants.UsernameChangeCooldownDays) * 24 * time.Hour
		elapsed := time.Since(*user.UsernameChangedAt)
		if elapsed < cooldown {
			remaining := int((cooldown - elapsed + 24*time.Hour - 1) / (24 * time.Hour))
			return cooldownError{remainingDays: remaining}
		}
	}
	taken, err := s.userRepo.ExistsUsername(newUsername, user.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrUsernameTaken
	}

	now := time.Now()
	user.Username = newUsername
	user.UsernameChangedAt = &now
	return s.updateAndRevokeSessions(user)
}

// InitiateEmailChange 发起换绑邮箱
// 只写入 pending 字段并发送验证邮件，当前邮箱在验证通过前保持不变。
func (s *AccountService) InitiateEmailChange(userID uint, newEmail, password string) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotFound
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return ErrWrongPassword
	}
	normalized, err := normalizeEmail(newEmail)
	if err != nil {
		return err
	}
	if strings.EqualFold(normalized, user.Email) {
		return ErrSameAsCurrent
	}
	taken, err := s.userRepo.ExistsEmail(normalized, user.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}

	token := uuid.NewString()
	expires := time.Now().Add(time.Duration(constants.EmailVerifyExpireHours) * time.Hour)
	user.PendingEmail = normalized
	user.EmailVerificationToken = token
	user.EmailVerificationExpires = &expires
	if err := s.userRepo.Update(user); err != nil {
		return err
	}
	err = s.queue.EnqueueChangeVerifyEmail(queue.ChangeVerifyEmailPayload{
		UserID:   user.ID,
		NewEmail: normalized,
		Token:    token,
	})
	if err != nil {
		logger.Errorw("换绑验证邮件入队失败", "user_id", user.ID, "error", err)
	}
	return nil
}

// VerifyEmailChange 验证换绑邮箱
// 校验通过后原子切换邮箱、清空 pending 字段并吊销全部会话。
func (s *AccountService) VerifyEmailChange(token string) (*models.User, error) {
	user, err := s.userRepo.GetByEmailVerificationToken(token)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.PendingEmailInFlight() {
		return nil, ErrVerificationInvalid
	}
	if user.EmailVerificationExpires == nil || time.Now().After(*user.EmailVerificationExpires) {
		return nil, ErrVerificationExpired
	}

	taken, err := s.userRepo.ExistsEmail(user.PendingEmail, user.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		user.ClearPendingEmail()
		_ = s.userRepo.Update(user)
		return nil, ErrEmailTaken
	}

	user.Email = user.PendingEmail
	user.ClearPendingEmail()
	if err := s.updateAndRevokeSessions(user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteAccount 注销账号
// 仅本人（需口令）或管理员可执行，先吊销会话再级联删除数据。
func (s *AccountService) DeleteAccount(actor *models.User, targetID uint, password string) error {
	target, err := s.userRepo.GetByID(targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrNotFound
	}
	if actor.ID != target.ID && !actor.IsAdmin {
		return ErrForbidden
	}
	if actor.ID == target.ID {
		if err := verifyPassword(target.PasswordHash, password); err != nil {
			return ErrWrongPassword
		}
	}
	if err := s.tokens.RevokeAllForUser(target); err != nil {
		return err
	}
	if err := s.userRepo.DeleteCascade(target.ID); err != nil {
		return err
	}
	return cache.DelUserAuthState(context.Background(), target.ID)
}
