package repository

import (
	"errors"

	"github.com/postways-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ToggleResult 点赞切换结果
type ToggleResult struct {
	Created bool  // true=新增点赞 false=取消点赞
	Count   int64 // 切换后的总数（与写入同事务读取）
}

// LikeStats 批量查询中单篇文章的点赞状态
type LikeStats struct {
	Count int64 `json:"count"`
	Liked bool  `json:"liked"`
}

// LikeRepository 点赞数据访问接口
type LikeRepository interface {
	Toggle(userID, postID uint) (*ToggleResult, error)
	CountByPost(postID uint) (int64, error)
	BatchStats(userID uint, postIDs []uint) (map[uint]*LikeStats, error)
}

// GormLikeRepository GORM 实现
type GormLikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository 创建点赞仓库
func NewLikeRepository(db *gorm.DB) *GormLikeRepository {
	return &GormLikeRepository{db: db}
}

// Toggle 原子切换点赞状态
// 先对现有行加行锁再删除；不存在则以 ON CONFLICT DO NOTHING 插入，
// 零行生效说明并发请求已抢先建行，按取消处理。插入失败不会让事务进入
// postgres 的中止态。计数在同一事务内读取，保证与写入一致。
func (r *GormLikeRepository) Toggle(userID, postID uint) (*ToggleResult, error) {
	result := &ToggleResult{}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Like
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND post_id = ?", userID, postID).
			First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Delete(&models.Like{}, existing.ID).Error; err != nil {
				return err
			}
			result.Created = false
		case errors.Is(err, gorm.ErrRecordNotFound):
			like := models.Like{UserID: userID, PostID: postID}
			insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
			if insert.Error != nil {
				return insert.Error
			}
			if insert.RowsAffected == 0 {
				// 并发请求先插入了同一行，回退为取消
				if err := tx.Where("user_id = ? AND post_id = ?", userID, postID).
					Delete(&models.Like{}).Error; err != nil {
					return err
				}
				result.Created = false
			} else {
				result.Created = true
			}
		default:
			return err
		}
		return tx.Model(&models.Like{}).Where("post_id = ?", postID).
			Count(&result.Count).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CountByPost 获取文章点赞数
func (r *GormLikeRepository) CountByPost(postID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

// BatchStats 批量获取点赞数与当前用户的点赞状态
// userID 为 0 表示匿名请求，liked 恒为 false。
func (r *GormLikeRepository) BatchStats(userID uint, postIDs []uint) (map[uint]*LikeStats, error) {
	stats := make(map[uint]*LikeStats, len(postIDs))
	if len(postIDs) == 0 {
		return stats, nil
	}
	for _, id := range postIDs {
		stats[id] = &LikeStats{}
	}

	type countRow struct {
		PostID uint
		Total  int64
	}
	var counts []countRow
	err := r.db.Model(&models.Like{}).
		Select("post_id, COUNT(*) AS total").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	for _, row := range counts {
		stats[row.PostID].Count = row.Total
	}

	if userID != 0 {
		var liked []uint
		err := r.db.Model(&models.Like{}).
			Where("user_id = ? AND post_id IN ?", userID, postIDs).
			Pluck("post_id", &liked).Error
		if err != nil {
			return nil, err
		}
		for _, id := range liked {
			stats[id].Liked = true
		}
	}
	return stats, nil
}
