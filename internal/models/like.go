package models

import (
	"time"
)

// Like 点赞表
// (user_id, post_id) 复合唯一约束是切换引擎正确性的底座：
// 任何时刻一对 (user, post) 至多存在一行。
type Like struct {
	ID     uint  `gorm:"primarykey" json:"id"`                                    // 主键
	UserID uint  `gorm:"not null;uniqueIndex:uniq_like_user_post" json:"user_id"` // 点赞用户
	User   *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	PostID uint  `gorm:"not null;uniqueIndex:uniq_like_user_post;index" json:"post_id"` // 被赞文章
	Post   *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"` // 创建时间
}

// TableName 指定表名
func (Like) TableName() string {
	return "likes"
}
