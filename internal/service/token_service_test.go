package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/postways-next/internal/config"
	"github.com/postways-next/internal/constants"
	"github.com/postways-next/internal/models"
	"github.com/postways-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupTokenServiceTest(t *testing.T) (*TokenService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:token_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.OutstandingToken{},
		&models.BlacklistedToken{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	cfg := &config.Config{}
	cfg.JWT.SecretKey = "token-service-test-secret-key-0123456789"
	cfg.JWT.AccessExpireMinutes = 15
	cfg.JWT.RefreshExpireHours = 24
	cfg.JWT.RotateRefresh = true

	svc := NewTokenService(cfg, repository.NewUserRepository(db), repository.NewTokenRepository(db))
	return svc, db
}

func seedTokenUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	hash, err := hashPassword("secret-pass-1")
	if err != nil {
		t.Fatalf("hash password failed: %v", err)
	}
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Status:       constants.UserStatusActive,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

func TestTokenServiceLoginIssuesPair(t *testing.T) {
	svc, db := setupTokenServiceTest(t)
	seedTokenUser(t, db, "alice")

	user, pair, err := svc.Login("alice", "secret-pass-1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user == nil || pair == nil || pair.Access == "" || pair.Refresh == "" {
		t.Fatalf("incomplete login result: %+v", pair)
	}

	claims, err := svc.Verify(pair.Access, constants.TokenTypeAccess)
	if err != nil {
		t.Fatalf("verify access failed: %v", err)
	}
	if claims.UserID != user.ID || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	var outstanding int64
	if err := db.Model(&models.OutstandingToken{}).Where("user_id = ?", user.ID).Count(&outstanding).Error; err != nil {
		t.Fatalf("count outstanding failed: %v", err)
	}
	if outstanding != 1 {
		t.Fatalf("expected 1 outstanding token, got: %d", outstanding)
	}
}

func TestTokenServiceLoginRejectsBadCredentials(t *testing.T) {
	svc, db := setupTokenServiceTest(t)
	seedTokenUser(t, db, "alice")

	if _, _, err := svc.Login("alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got: %v", err)
	}
	if _, _, err := svc.Login("nobody", "secret-pass-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got: %v", err)
	}
}

func TestTokenServiceLoginIsCaseInsensitive(t *testing.T) {
	svc, db := setupTokenServiceTest(t)
	seedTokenUser(t, db, "Alice")

	if _, _, err := svc.Login("alice", "secret-pass-1"); err != nil {
		t.Fatalf("case-insensitive login failed: %v", err)
	}
}

func TestTokenServiceVerifyRejectsWrongType(t *testing.T) {
	svc, db := setupTokenServiceTest(t)
	user := seedTokenUser(t, db, "alice")

	pair, err := svc.IssuePair(user)
	if err != nil {
		t.Fatalf("issue pair failed: %v", err)
	}
	if _, err := svc.Verify(pair.Access, constants.TokenTypeRefresh); !errors.Is(err, ErrTokenWrongType) {
		t.Fatalf("expected ErrTokenWrongType, got: %v", err)
	}
	if _, err := svc.Verify(pair.Refresh, constants.TokenTypeAccess); !errors.Is(err, ErrTokenWrongType) {
		t.Fatalf("expected ErrTokenWrongType, got: %v", err)
	}
}

func TestTokenServiceVerifyAny(t *testing.T) {
	svc, db := setupTokenServiceTest(t)
	user := seedTokenUser(t, db, "alice")

	pair, err := svc.IssuePair(user)
	if err != nil {
		t.Fatalf("issue pair failed: %v", err)
	}
	// 访问与刷新 Token 都按自带类型通过校验
	claims, err := svc.VerifyAny(pair.Access)
	if err != nil {
		t.Fatalf("verify access failed: %v", err)
	}
	if claims.TokenType != constants.TokenTypeAccess {
		t.Fatalf("unexpected token type: %s", claims.TokenType)
	}
	if _, err := svc.VerifyAny(pair.Refresh); err != nil {
		t.Fatalf("verify refresh failed: %v", err)
	}

	if _, err := svc.VerifyAny("garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got: %v", err)
	}
	// 拉黑后的刷新 Token 不再通过
	if err := svc.Logout(pair.Refresh); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := svc.VerifyAny(pair.Refresh); !errors.Is(err, ErrTokenBlacklisted) {
		t.Fatalf("expected ErrTokenBlacklisted, got: %v", err)
	}
}

func TestTokenServiceRotationChain(t *testing.T) {
	svc, db := setupTokenServiceTest(t)
	user := seedTokenUser(t, db, "alice")

	pair, err := svc.IssuePair(user)
	if err != nil {
		t.Fatalf("issue pair failed: %v", err)
	}

	const rotations = 5
	current := pair.Refresh
	for i := 0; i < rotations; i++ {
		next, err := svc.Refresh(current)
		if err != nil {
			t.Fatalf("rotation %d failed: %v", i, err)
		}
		if next.Refresh == current {
			t.Fatalf("rotation %d returned the same refresh token", i)
		}
		// 旧 Token 已拉黑，重放必须被拒绝
		if _, err := svc.Refresh(current); !errors.Is(err, ErrTokenBlacklisted) {
			t.Fatalf("rotation %d: expected ErrTokenBlacklisted on replay, got: %v", i, err)
		}
		current = next.Refresh
	}

	// 全链只有最后一个 Token 可用：在册 N+1 条，拉黑 N 条
	var outstanding, blacklisted int64
	if err := db.Model(&models.OutstandingToken{}).Where("user_id = ?", user.ID).Count(&outstanding).Error; err != nil {
		t.Fatalf("count outstanding failed: %v", err)
	}
	if err := db.Model(&models.BlacklistedToken{}).Count(&blacklisted).Error; err != nil {
		t.Fatalf("count blacklisted failed: %v", err)
	}
	if outstanding != rotations+1 {
		t.Fatalf("expected %d outstanding tokens, got: %d", rotations+1, outstanding)
	}
	if blacklisted != rotations {
		t.Fatalf("expected %d blacklisted tokens, got: %d", rotations, blacklisted)
	}
	if _, err := svc.Verify(current, constants.TokenTypeRefresh); err != nil {
		t.Fatalf("final refresh token should stay valid: %v", err)
	}
}

func TestTokenServiceLogoutBlacklistsRefresh(t *testing.T) {
	svc, db := setupTokenServiceTest(t)
	user := seedTokenUser(t, db, "alice")

	pair, err := svc.IssuePair(user)
	if err != nil {
		t.Fatalf("issue pair failed: %v", err)
	}
	if err := svc.Logout(pair.Refresh); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := svc.Refresh(pair.Refresh); !errors.Is(err, ErrTokenBlacklisted) {
		t.Fatalf("expected ErrTokenBlacklisted after logout, got: %v", err)
	}
}

func TestTokenServiceRevokeAllInvalidatesEverything(t *testing.T) {
	svc, db := setupTokenServiceTest(t)
	user := seedTokenUser(t, db, "alice")

	var pairs []*TokenPair
	for i := 0; i < 3; i++ {
		pair, err := svc.IssuePair(user)
		if err != nil {
			t.Fatalf("issue pair %d failed: %v", i, err)
		}
		pairs = append(pairs, pair)
	}

	// 吊销水位按秒比较，确保旧 Token 的签发时刻落在水位之前
	time.Sleep(1100 * time.Millisecond)
	if err := svc.RevokeAllForUser(user); err != nil {
		t.Fatalf("revoke all failed: %v", err)
	}

	for i, pair := range pairs {
		if _, err := svc.Verify(pair.Refresh, constants.TokenTypeRefresh); err == nil {
			t.Fatalf("refresh %d should be revoked", i)
		}
		if _, err := svc.Verify(pair.Access, constants.TokenTypeAccess); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("access %d: expected ErrTokenInvalid past watermark, got: %v", i, err)
		}
	}

	// 吊销后新签发的 Token 必须立即可用
	fresh, err := svc.IssuePair(user)
	if err != nil {
		t.Fatalf("issue pair after revoke failed: %v", err)
	}
	if _, err := svc.Verify(fresh.Access, constants.TokenTypeAccess); err != nil {
		t.Fatalf("fresh access should be valid: %v", err)
	}
	if _, err := svc.Verify(fresh.Refresh, constants.TokenTypeRefresh); err != nil {
		t.Fatalf("fresh refresh should be valid: %v", err)
	}
}

func TestTokenServiceRevokeAllIsIdempotent(t *testing.T) {
	svc, db := setupTokenServiceTest(t)
	user := seedTokenUser(t, db, "alice")

	if _, err := svc.IssuePair(user); err != nil {
		t.Fatalf("issue pair failed: %v", err)
	}
	if err := svc.RevokeAllForUser(user); err != nil {
		t.Fatalf("first revoke failed: %v", err)
	}
	if err := svc.RevokeAllForUser(user); err != nil {
		t.Fatalf("second revoke failed: %v", err)
	}

	var blacklisted int64
	if err := db.Model(&models.BlacklistedToken{}).Count(&blacklisted).Error; err != nil {
		t.Fatalf("count blacklisted failed: %v", err)
	}
	if blacklisted != 1 {
		t.Fatalf("expected 1 blacklisted token, got: %d", blacklisted)
	}
}

func TestTokenServiceFlushExpired(t *testing.T) {
	svc, db := setupTokenServiceTest(t)
	user := seedTokenUser(t, db, "alice")

	expired := &models.OutstandingToken{
		JTI:       "expired-jti",
		UserID:    user.ID,
		Token:     "stale",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	if err := db.Create(expired).Error; err != nil {
		t.Fatalf("seed expired token failed: %v", err)
	}
	if err := db.Create(&models.BlacklistedToken{TokenID: expired.ID}).Error; err != nil {
		t.Fatalf("seed blacklist row failed: %v", err)
	}
	if _, err := svc.IssuePair(user); err != nil {
		t.Fatalf("issue pair failed: %v", err)
	}

	deleted, err := svc.FlushExpired()
	if err != nil {
		t.Fatalf("flush expired failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted token, got: %d", deleted)
	}

	var outstanding, blacklisted int64
	if err := db.Model(&models.OutstandingToken{}).Count(&outstanding).Error; err != nil {
		t.Fatalf("count outstanding failed: %v", err)
	}
	if err := db.Model(&models.BlacklistedToken{}).Count(&blacklisted).Error; err != nil {
		t.Fatalf("count blacklisted failed: %v", err)
	}
	if outstanding != 1 || blacklisted != 0 {
		t.Fatalf("expected 1 outstanding and 0 blacklisted, got: %d/%d", outstanding, blacklisted)
	}
}
