package repository

import (
	"errors"

	"github.com/postways-next/internal/models"

	"gorm.io/gorm"
)

// PostWithCount 文章及其点赞数
type PostWithCount struct {
	models.Post
	LikeCount int64 `json:"like_count"`
}

// PostRepository 文章数据访问接口
type PostRepository interface {
	GetByID(id uint) (*models.Post, error)
	ListPublished(page, pageSize int) ([]PostWithCount, int64, error)
	ListByAuthor(authorID uint, page, pageSize int) ([]PostWithCount, int64, error)
	Create(post *models.Post) error
	Update(post *models.Post) error
	Delete(id uint) error
}

// GormPostRepository GORM 实现
type GormPostRepository struct {
	db *gorm.DB
}

// NewPostRepository 创建文章仓库
func NewPostRepository(db *gorm.DB) *GormPostRepository {
	return &GormPostRepository{db: db}
}

// GetByID 根据 ID 获取文章
func (r *GormPostRepository) GetByID(id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

const likeCountSelect = "posts.*, (SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS like_count"

// ListPublished 分页获取已发布文章（附带点赞数）
func (r *GormPostRepository) ListPublished(page, pageSize int) ([]PostWithCount, int64, error) {
	return r.list(r.db.Model(&models.Post{}).Where("published = ?", true), page, pageSize)
}

// ListByAuthor 分页获取指定作者的全部文章（含草稿）
func (r *GormPostRepository) ListByAuthor(authorID uint, page, pageSize int) ([]PostWithCount, int64, error) {
	return r.list(r.db.Model(&models.Post{}).Where("author_id = ?", authorID), page, pageSize)
}

func (r *GormPostRepository) list(query *gorm.DB, page, pageSize int) ([]PostWithCount, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	var posts []PostWithCount
	err := query.Select(likeCountSelect).
		Order("posts.created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// Create 创建文章
func (r *GormPostRepository) Create(post *models.Post) error {
	return r.db.Create(post).Error
}

// Update 更新文章
func (r *GormPostRepository) Update(post *models.Post) error {
	return r.db.Save(post).Error
}

// Delete 删除文章及其点赞
func (r *GormPostRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
}
