package constants

// Token 类型常量
const (
	TokenTypeAccess   = "access"
	TokenTypeRefresh  = "refresh"
	TokenTypeRecovery = "recovery"
)

// 点赞切换结果常量
const (
	LikeResultCreated = "created"
	LikeResultRemoved = "removed"
)

// 实时广播主题常量
const (
	TopicLikes = "likes"
)

// 异步任务类型常量
const (
	TaskEmailRecovery     = "email:recovery"
	TaskEmailChangeVerify = "email:change_verify"
	TaskPostImageProcess  = "post:image_process"
)

// 队列名称常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 账号安全常量
const (
	// UsernameChangeCooldownDays 用户名修改冷却天数（边界含第 30 天整点）
	UsernameChangeCooldownDays = 30
	// EmailVerifyExpireHours 换绑邮箱验证链接有效小时数
	EmailVerifyExpireHours = 24
)
