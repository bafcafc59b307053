package models

import (
	"time"
)

// Post 日志文章表
type Post struct {
	ID        uint   `gorm:"primarykey" json:"id"`              // 主键
	Title     string `gorm:"size:100;not null" json:"title"`    // 标题
	Content   string `gorm:"type:text;not null" json:"content"` // 正文
	AuthorID  uint   `gorm:"index;not null" json:"author_id"`   // 作者
	Author    *User  `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Image     string `gorm:"size:200;default:''" json:"image"`     // 原图路径
	Thumbnail string `gorm:"size:200;default:''" json:"thumbnail"` // 缩略图路径（异步生成）
	Published bool   `gorm:"default:true;index" json:"published"`  // 是否发布

	CreatedAt time.Time `gorm:"index" json:"created_at"` // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"` // 更新时间
}

// TableName 指定表名
func (Post) TableName() string {
	return "posts"
}
