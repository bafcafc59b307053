package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/postways-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupTokenRepositoryTest(t *testing.T) (*GormTokenRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:token_repository_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.OutstandingToken{}, &models.BlacklistedToken{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewTokenRepository(db), db
}

func seedOutstanding(t *testing.T, repo *GormTokenRepository, jti string, userID uint, expiresAt time.Time) *models.OutstandingToken {
	t.Helper()
	token := &models.OutstandingToken{
		JTI:       jti,
		UserID:    userID,
		Token:     "signed-" + jti,
		ExpiresAt: expiresAt,
	}
	if err := repo.CreateOutstanding(token); err != nil {
		t.Fatalf("create outstanding %s failed: %v", jti, err)
	}
	return token
}

func TestTokenRepositoryBlacklistIsIdempotent(t *testing.T) {
	repo, db := setupTokenRepositoryTest(t)
	seedOutstanding(t, repo, "jti-1", 1, time.Now().Add(time.Hour))

	for i := 0; i < 3; i++ {
		if err := repo.Blacklist("jti-1"); err != nil {
			t.Fatalf("blacklist attempt %d failed: %v", i, err)
		}
	}
	var count int64
	if err := db.Model(&models.BlacklistedToken{}).Count(&count).Error; err != nil {
		t.Fatalf("count blacklisted failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 blacklist row, got: %d", count)
	}

	blacklisted, err := repo.IsBlacklisted("jti-1")
	if err != nil {
		t.Fatalf("is blacklisted failed: %v", err)
	}
	if !blacklisted {
		t.Fatal("jti-1 should be blacklisted")
	}
}

func TestTokenRepositoryBlacklistUnknownJTI(t *testing.T) {
	repo, _ := setupTokenRepositoryTest(t)

	// 不在册的 JTI 拉黑按无操作处理
	if err := repo.Blacklist("ghost"); err != nil {
		t.Fatalf("blacklist of unknown jti should be a no-op, got: %v", err)
	}
	blacklisted, err := repo.IsBlacklisted("ghost")
	if err != nil {
		t.Fatalf("is blacklisted failed: %v", err)
	}
	if blacklisted {
		t.Fatal("unknown jti must not read as blacklisted")
	}
}

func TestTokenRepositoryRotate(t *testing.T) {
	repo, _ := setupTokenRepositoryTest(t)
	seedOutstanding(t, repo, "old", 1, time.Now().Add(time.Hour))

	next := &models.OutstandingToken{
		JTI:       "new",
		UserID:    1,
		Token:     "signed-new",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := repo.Rotate(next, "old"); err != nil {
		t.Fatalf("rotate failed: %v", err)
	}

	oldBlacklisted, err := repo.IsBlacklisted("old")
	if err != nil {
		t.Fatalf("is blacklisted failed: %v", err)
	}
	newBlacklisted, err := repo.IsBlacklisted("new")
	if err != nil {
		t.Fatalf("is blacklisted failed: %v", err)
	}
	if !oldBlacklisted || newBlacklisted {
		t.Fatalf("expected old blacklisted and new clean, got: old=%v new=%v", oldBlacklisted, newBlacklisted)
	}

	stored, err := repo.GetOutstandingByJTI("new")
	if err != nil {
		t.Fatalf("get outstanding failed: %v", err)
	}
	if stored == nil || stored.UserID != 1 {
		t.Fatalf("new token not registered: %+v", stored)
	}
}

func TestTokenRepositoryRotateFailureKeepsOldValid(t *testing.T) {
	repo, _ := setupTokenRepositoryTest(t)
	seedOutstanding(t, repo, "old", 1, time.Now().Add(time.Hour))
	seedOutstanding(t, repo, "taken", 1, time.Now().Add(time.Hour))

	// 新 Token 撞 JTI 唯一键，整个轮换回滚
	dup := &models.OutstandingToken{
		JTI:       "taken",
		UserID:    1,
		Token:     "signed-dup",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := repo.Rotate(dup, "old"); err == nil {
		t.Fatal("rotate with duplicate jti should fail")
	}
	blacklisted, err := repo.IsBlacklisted("old")
	if err != nil {
		t.Fatalf("is blacklisted failed: %v", err)
	}
	if blacklisted {
		t.Fatal("old token must stay valid after failed rotation")
	}
}

func TestTokenRepositoryRevokeAllForUser(t *testing.T) {
	repo, _ := setupTokenRepositoryTest(t)
	seedOutstanding(t, repo, "a", 1, time.Now().Add(time.Hour))
	seedOutstanding(t, repo, "b", 1, time.Now().Add(time.Hour))
	seedOutstanding(t, repo, "other", 2, time.Now().Add(time.Hour))
	if err := repo.Blacklist("a"); err != nil {
		t.Fatalf("pre-blacklist failed: %v", err)
	}

	revoked, err := repo.RevokeAllForUser(1)
	if err != nil {
		t.Fatalf("revoke all failed: %v", err)
	}
	// a 已拉黑，只新增 b 一条
	if revoked != 1 {
		t.Fatalf("expected 1 newly revoked token, got: %d", revoked)
	}
	for _, jti := range []string{"a", "b"} {
		blacklisted, err := repo.IsBlacklisted(jti)
		if err != nil {
			t.Fatalf("is blacklisted failed: %v", err)
		}
		if !blacklisted {
			t.Fatalf("%s should be blacklisted", jti)
		}
	}
	blacklisted, err := repo.IsBlacklisted("other")
	if err != nil {
		t.Fatalf("is blacklisted failed: %v", err)
	}
	if blacklisted {
		t.Fatal("other user's token must not be touched")
	}
}

func TestTokenRepositoryDeleteExpired(t *testing.T) {
	repo, db := setupTokenRepositoryTest(t)
	seedOutstanding(t, repo, "stale", 1, time.Now().Add(-time.Hour))
	seedOutstanding(t, repo, "fresh", 1, time.Now().Add(time.Hour))
	if err := repo.Blacklist("stale"); err != nil {
		t.Fatalf("blacklist failed: %v", err)
	}
	if err := repo.Blacklist("fresh"); err != nil {
		t.Fatalf("blacklist failed: %v", err)
	}

	deleted, err := repo.DeleteExpired(time.Now())
	if err != nil {
		t.Fatalf("delete expired failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted token, got: %d", deleted)
	}

	stale, err := repo.GetOutstandingByJTI("stale")
	if err != nil {
		t.Fatalf("get outstanding failed: %v", err)
	}
	if stale != nil {
		t.Fatal("stale token should be gone")
	}
	fresh, err := repo.GetOutstandingByJTI("fresh")
	if err != nil {
		t.Fatalf("get outstanding failed: %v", err)
	}
	if fresh == nil {
		t.Fatal("fresh token should survive")
	}

	var blacklisted int64
	if err := db.Model(&models.BlacklistedToken{}).Count(&blacklisted).Error; err != nil {
		t.Fatalf("count blacklisted failed: %v", err)
	}
	if blacklisted != 1 {
		t.Fatalf("expected 1 surviving blacklist row, got: %d", blacklisted)
	}
}
