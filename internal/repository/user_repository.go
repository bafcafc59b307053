package repository

import (
	"errors"
	"time"

	"github.com/postways-next/internal/models"

	"gorm.io/gorm"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	ExistsUsername(username string, excludeID uint) (bool, error)
	ExistsEmail(email string, excludeID uint) (bool, error)
	GetByEmailVerificationToken(token string) (*models.User, error)
	Create(user *models.User) error
	Update(user *models.User) error
	UpdateActivity(userID uint, at time.Time) error
	DeleteCascade(userID uint) error
	WithTx(tx *gorm.DB) UserRepository
}

// GormUserRepository GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// WithTx 返回绑定到指定事务的仓库
func (r *GormUserRepository) WithTx(tx *gorm.DB) UserRepository {
	return &GormUserRepository{db: tx}
}

// GetByID 根据 ID 获取用户
func (r *GormUserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByUsername 根据用户名获取用户（大小写不敏感）
func (r *GormUserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("LOWER(username) = LOWER(?)", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取用户（大小写不敏感）
func (r *GormUserRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// ExistsUsername 判断用户名是否被占用（可排除指定用户）
func (r *GormUserRepository) ExistsUsername(username string, excludeID uint) (bool, error) {
	query := r.db.Model(&models.User{}).Where("LOWER(username) = LOWER(?)", username)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExistsEmail 判断邮箱是否被占用（同时检查换绑中的 pending_email）
func (r *GormUserRepository) ExistsEmail(email string, excludeID uint) (bool, error) {
	query := r.db.Model(&models.User{}).
		Where("LOWER(email) = LOWER(?) OR LOWER(pending_email) = LOWER(?)", email, email)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetByEmailVerificationToken 根据换绑验证 Token 获取用户
func (r *GormUserRepository) GetByEmailVerificationToken(token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	var user models.User
	if err := r.db.Where("email_verification_token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Create 创建用户
func (r *GormUserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// Update 更新用户
func (r *GormUserRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// UpdateActivity 更新最近活跃时间（节流由缓存层完成）
func (r *GormUserRepository) UpdateActivity(userID uint, at time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).
		Update("last_activity_at", at).Error
}

// DeleteCascade 删除用户及其文章与点赞
// 显式逐表删除，不依赖数据库外键级联，保证 sqlite/postgres 行为一致。
func (r *GormUserRepository) DeleteCascade(userID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN (?)",
			tx.Model(&models.Post{}).Select("id").Where("author_id = ?", userID),
		).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", userID).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, userID).Error
	})
}
