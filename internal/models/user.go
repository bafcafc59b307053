package models

import (
	"time"
)

// User 用户表
type User struct {
	ID           uint   `gorm:"primarykey" json:"id"`                          // 主键
	Username     string `gorm:"uniqueIndex;size:150;not null" json:"username"` // 用户名（大小写不敏感唯一由仓库层保证）
	Email        string `gorm:"uniqueIndex;size:254;not null" json:"email"`    // 邮箱
	PasswordHash string `gorm:"not null" json:"-"`                             // 密码哈希（不返回给前端）
	IsAdmin      bool   `gorm:"default:false" json:"-"`                        // 管理员标记
	Status       string `gorm:"default:'active'" json:"status"`                // 账号状态

	// 用户名修改冷却
	UsernameChangedAt *time.Time `json:"-"` // 最近一次用户名修改时间

	// 换绑邮箱（三个字段要么全空要么全有值）
	PendingEmail             string     `gorm:"size:254;default:''" json:"-"` // 待验证的新邮箱
	EmailVerificationToken   string     `gorm:"size:36;default:''" json:"-"`  // 换绑验证 Token（UUID）
	EmailVerificationExpires *time.Time `json:"-"`                            // 验证 Token 失效时间

	// Token 服务端失效快照（与黑名单并行的第二套吊销后端）
	TokenInvalidBefore *time.Time `gorm:"index" json:"-"` // 该时间点前签发的 Token 失效

	LastActivityAt *time.Time `json:"last_activity_at"`        // 最近活跃时间
	CreatedAt      time.Time  `gorm:"index" json:"created_at"` // 创建时间
	UpdatedAt      time.Time  `json:"updated_at"`              // 更新时间
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// PendingEmailInFlight 是否存在进行中的换绑流程
func (u *User) PendingEmailInFlight() bool {
	return u != nil && u.PendingEmail != "" && u.EmailVerificationToken != "" && u.EmailVerificationExpires != nil
}

// ClearPendingEmail 清空换绑中间态
func (u *User) ClearPendingEmail() {
	if u == nil {
		return
	}
	u.PendingEmail = ""
	u.EmailVerificationToken = ""
	u.EmailVerificationExpires = nil
}
