package cache

import (
	"context"
	"fmt"
	"time"
)

// activityThrottleTTL 活跃时间写库节流窗口：窗口内的请求不再更新数据库。
const activityThrottleTTL = 60 * time.Second

func activityKey(userID uint) string {
	return fmt.Sprintf("activity:user:%d", userID)
}

// ShouldRecordActivity 判断本次请求是否需要落库更新用户活跃时间。
// Redis 不可用时放行（由数据库承担全部写入）。
func ShouldRecordActivity(ctx context.Context, userID uint) bool {
	if userID == 0 {
		return false
	}
	if !Enabled() {
		return true
	}
	ok, err := SetNX(ctx, activityKey(userID), activityThrottleTTL)
	if err != nil {
		return true
	}
	return ok
}
