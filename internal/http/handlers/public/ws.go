package public

import (
	"github.com/postways-next/internal/constants"

	"github.com/gin-gonic/gin"
)

// LikesWebSocket 订阅点赞事件推送
// 身份可选：带有效访问 Token 时自己发起的点赞不会被回推。
func (h *Handler) LikesWebSocket(c *gin.Context) {
	userID := optionalUserID(c)
	if err := h.Hub.Serve(c.Writer, c.Request, constants.TopicLikes, userID); err != nil {
		requestLog(c).Warnw("websocket_upgrade_failed", "error", err)
	}
}
