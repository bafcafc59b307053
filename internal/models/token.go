package models

import (
	"time"
)

// OutstandingToken 已签发的刷新 Token 记录
// 每次登录和每次成功轮换各写入一行；行只增不改。
type OutstandingToken struct {
	ID        uint      `gorm:"primarykey" json:"id"`                               // 主键
	JTI       string    `gorm:"column:jti;uniqueIndex;size:36;not null" json:"jti"` // Token 唯一标识
	UserID    uint      `gorm:"index;not null" json:"user_id"`                      // 所属用户
	User      *User     `gorm:"foreignKey:UserID" json:"-"`
	Token     string    `gorm:"type:text;not null" json:"-"`      // 完整 Token 串（排查用）
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"` // 失效时间
	CreatedAt time.Time `json:"created_at"`                       // 签发时间
}

// TableName 指定表名
func (OutstandingToken) TableName() string {
	return "outstanding_tokens"
}

// BlacklistedToken 已吊销的刷新 Token
// 与 OutstandingToken 1:1，插入必须幂等（轮换与批量吊销可能竞争）。
type BlacklistedToken struct {
	ID      uint              `gorm:"primarykey" json:"id"`                 // 主键
	TokenID uint              `gorm:"uniqueIndex;not null" json:"token_id"` // 关联的签发记录
	Token   *OutstandingToken `gorm:"foreignKey:TokenID;constraint:OnDelete:CASCADE" json:"-"`

	BlacklistedAt time.Time `gorm:"autoCreateTime" json:"blacklisted_at"` // 吊销时间
}

// TableName 指定表名
func (BlacklistedToken) TableName() string {
	return "blacklisted_tokens"
}
