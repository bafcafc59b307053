package repository

import (
	"errors"
	"time"

	"github.com/postways-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository Token 记录数据访问接口
type TokenRepository interface {
	CreateOutstanding(token *models.OutstandingToken) error
	GetOutstandingByJTI(jti string) (*models.OutstandingToken, error)
	IsBlacklisted(jti string) (bool, error)
	Blacklist(jti string) error
	Rotate(newToken *models.OutstandingToken, oldJTI string) error
	RevokeAllForUser(userID uint) (int64, error)
	DeleteExpired(before time.Time) (int64, error)
	WithTx(tx *gorm.DB) TokenRepository
}

// GormTokenRepository GORM 实现
type GormTokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository 创建 Token 仓库
func NewTokenRepository(db *gorm.DB) *GormTokenRepository {
	return &GormTokenRepository{db: db}
}

// WithTx 返回绑定到指定事务的仓库
func (r *GormTokenRepository) WithTx(tx *gorm.DB) TokenRepository {
	return &GormTokenRepository{db: tx}
}

// CreateOutstanding 登记新签发的刷新 Token
func (r *GormTokenRepository) CreateOutstanding(token *models.OutstandingToken) error {
	return r.db.Create(token).Error
}

// GetOutstandingByJTI 根据 JTI 获取在册记录
func (r *GormTokenRepository) GetOutstandingByJTI(jti string) (*models.OutstandingToken, error) {
	var token models.OutstandingToken
	if err := r.db.Where("jti = ?", jti).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// IsBlacklisted 判断指定 JTI 是否已拉黑
// 不在册的 JTI 视为未拉黑，由签名与过期校验兜底。
func (r *GormTokenRepository) IsBlacklisted(jti string) (bool, error) {
	var count int64
	err := r.db.Model(&models.BlacklistedToken{}).
		Joins("JOIN outstanding_tokens ON outstanding_tokens.id = blacklisted_tokens.token_id").
		Where("outstanding_tokens.jti = ?", jti).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Blacklist 拉黑指定 JTI，幂等
func (r *GormTokenRepository) Blacklist(jti string) error {
	return r.blacklistTx(r.db, jti)
}

func (r *GormTokenRepository) blacklistTx(tx *gorm.DB, jti string) error {
	var token models.OutstandingToken
	if err := tx.Where("jti = ?", jti).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.BlacklistedToken{TokenID: token.ID}).Error
}

// Rotate 轮换刷新 Token
// 同一事务内先登记新 Token 再拉黑旧 Token，任一步失败旧 Token 仍有效，
// 不会出现两个 Token 同时失效的窗口。
func (r *GormTokenRepository) Rotate(newToken *models.OutstandingToken, oldJTI string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(newToken).Error; err != nil {
			return err
		}
		return r.blacklistTx(tx, oldJTI)
	})
}

// RevokeAllForUser 拉黑用户全部在册 Token，返回新增拉黑条数
func (r *GormTokenRepository) RevokeAllForUser(userID uint) (int64, error) {
	var revoked int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var ids []uint
		err := tx.Model(&models.OutstandingToken{}).
			Where("user_id = ?", userID).
			Where("id NOT IN (?)", tx.Model(&models.BlacklistedToken{}).Select("token_id")).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		for _, id := range ids {
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.BlacklistedToken{TokenID: id})
			if result.Error != nil {
				return result.Error
			}
			revoked += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return revoked, nil
}

// DeleteExpired 清理已过期的在册记录及其拉黑行
func (r *GormTokenRepository) DeleteExpired(before time.Time) (int64, error) {
	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&models.OutstandingToken{}).Select("id").
			Where("expires_at < ?", before)
		if err := tx.Where("token_id IN (?)", expired).
			Delete(&models.BlacklistedToken{}).Error; err != nil {
			return err
		}
		result := tx.Where("expires_at < ?", before).
			Delete(&models.OutstandingToken{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
