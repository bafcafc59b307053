package service

import (
	"context"
	"errors"
	"time"

	"github.com/postways-next/internal/cache"
	"github.com/postways-next/internal/config"
	"github.com/postways-next/internal/constants"
	"github.com/postways-next/internal/models"
	"github.com/postways-next/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TokenService Token 签发与轮换服务
type TokenService struct {
	cfg       *config.Config
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
}

// NewTokenService 创建 Token 服务
func NewTokenService(cfg *config.Config, userRepo repository.UserRepository, tokenRepo repository.TokenRepository) *TokenService {
	return &TokenService{
		cfg:       cfg,
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
	}
}

// TokenClaims JWT 声明，JTI 存放在 RegisteredClaims.ID
type TokenClaims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair 一次签发的访问/刷新 Token 对
type TokenPair struct {
	Access           string    `json:"access"`
	Refresh          string    `json:"refresh"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (s *TokenService) accessTTL() time.Duration {
	minutes := s.cfg.JWT.AccessExpireMinutes
	if minutes <= 0 {
		minutes = 15
	}
	return time.Duration(minutes) * time.Minute
}

func (s *TokenService) refreshTTL() time.Duration {
	hours := s.cfg.JWT.RefreshExpireHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

func (s *TokenService) sign(user *models.User, tokenType string, ttl time.Duration) (string, string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	jti := uuid.NewString()
	claims := TokenClaims{
		UserID:    user.ID,
		Username:  user.Username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, jti, expiresAt, nil
}

// IssuePair 为用户签发新的 Token 对，并登记刷新 Token
func (s *TokenService) IssuePair(user *models.User) (*TokenPair, error) {
	access, _, accessExp, err := s.sign(user, constants.TokenTypeAccess, s.accessTTL())
	if err != nil {
		return nil, err
	}
	refresh, jti, refreshExp, err := s.sign(user, constants.TokenTypeRefresh, s.refreshTTL())
	if err != nil {
		return nil, err
	}
	record := &models.OutstandingToken{
		JTI:       jti,
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: refreshExp,
	}
	if err := s.tokenRepo.CreateOutstanding(record); err != nil {
		return nil, err
	}
	return &TokenPair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Login 校验账号口令并签发 Token 对
func (s *TokenService) Login(username, password string) (*models.User, *TokenPair, error) {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrInvalidCredentials
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if user.Status != constants.UserStatusActive {
		return nil, nil, ErrAccountDisabled
	}

	pair, err := s.IssuePair(user)
	if err != nil {
		return nil, nil, err
	}
	_ = cache.SetUserAuthState(context.Background(), cache.BuildUserAuthState(user))
	return user, pair, nil
}

// Parse 解析并校验签名与有效期，不做拉黑与吊销检查
func (s *TokenService) Parse(tokenString string) (*TokenClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &TokenClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.SecretKey), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Verify 完整校验：签名、有效期、类型、拉黑状态与批量吊销水位
func (s *TokenService) Verify(tokenString, expectedType string) (*TokenClaims, error) {
	claims, err := s.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != expectedType {
		return nil, ErrTokenWrongType
	}
	if expectedType == constants.TokenTypeRefresh {
		blacklisted, err := s.tokenRepo.IsBlacklisted(claims.ID)
		if err != nil {
			return nil, err
		}
		if blacklisted {
			return nil, ErrTokenBlacklisted
		}
	}
	if err := s.checkAuthState(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyAny 按 Token 自带类型做完整校验，供 verify 接口使用
func (s *TokenService) VerifyAny(tokenString string) (*TokenClaims, error) {
	claims, err := s.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	return s.Verify(tokenString, claims.TokenType)
}

// checkAuthState 校验用户状态与 token_invalid_before 水位
// 优先走缓存快照，未命中回源数据库并回填。
func (s *TokenService) checkAuthState(claims *TokenClaims) error {
	ctx := context.Background()
	state, hit, err := cache.GetUserAuthState(ctx, claims.UserID)
	if err != nil || !hit || state == nil {
		user, err := s.userRepo.GetByID(claims.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrTokenInvalid
		}
		state = cache.BuildUserAuthState(user)
		_ = cache.SetUserAuthState(ctx, state)
	}
	if state.Status != constants.UserStatusActive {
		return ErrAccountDisabled
	}
	if state.TokenInvalidBefore > 0 && claims.IssuedAt != nil &&
		claims.IssuedAt.Unix() < state.TokenInvalidBefore {
		return ErrTokenInvalid
	}
	return nil
}

// Refresh 轮换刷新 Token
// 新刷新 Token 先登记在册，再拉黑旧 Token；两步在同一事务内完成，
// 轮换失败时旧 Token 保持可用。
func (s *TokenService) Refresh(refreshToken string) (*TokenPair, error) {
	claims, err := s.Verify(refreshToken, constants.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrTokenInvalid
	}

	access, _, accessExp, err := s.sign(user, constants.TokenTypeAccess, s.accessTTL())
	if err != nil {
		return nil, err
	}
	if !s.cfg.JWT.RotateRefresh {
		exp := time.Time{}
		if claims.ExpiresAt != nil {
			exp = claims.ExpiresAt.Time
		}
		return &TokenPair{
			Access:           access,
			Refresh:          refreshToken,
			AccessExpiresAt:  accessExp,
			RefreshExpiresAt: exp,
		}, nil
	}

	refresh, jti, refreshExp, err := s.sign(user, constants.TokenTypeRefresh, s.refreshTTL())
	if err != nil {
		return nil, err
	}
	record := &models.OutstandingToken{
		JTI:       jti,
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: refreshExp,
	}
	if err := s.tokenRepo.Rotate(record, claims.ID); err != nil {
		return nil, err
	}
	return &TokenPair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Logout 拉黑当前刷新 Token
func (s *TokenService) Logout(refreshToken string) error {
	claims, err := s.Verify(refreshToken, constants.TokenTypeRefresh)
	if err != nil {
		return err
	}
	return s.tokenRepo.Blacklist(claims.ID)
}

// revokeAllInTx 在指定事务内拉黑全部在册 Token 并推进水位
// 缓存快照由调用方在事务提交后刷新。
func (s *TokenService) revokeAllInTx(tx *gorm.DB, user *models.User) error {
	if _, err := s.tokenRepo.WithTx(tx).RevokeAllForUser(user.ID); err != nil {
		return err
	}
	now := time.Now()
	user.TokenInvalidBefore = &now
	return s.userRepo.WithTx(tx).Update(user)
}

// RevokeAllForUser 吊销用户的全部会话
// 拉黑所有在册刷新 Token，并把 token_invalid_before 推到当前时刻，
// 让已签发的访问 Token 一并失效。两步在同一事务内提交。
func (s *TokenService) RevokeAllForUser(user *models.User) error {
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		return s.revokeAllInTx(tx, user)
	})
	if err != nil {
		return err
	}
	return cache.SetUserAuthState(context.Background(), cache.BuildUserAuthState(user))
}

// FlushExpired 清理过期的在册记录
func (s *TokenService) FlushExpired() (int64, error) {
	return s.tokenRepo.DeleteExpired(time.Now())
}
