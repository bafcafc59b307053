package public

import (
	"strconv"
	"strings"

	"github.com/postways-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ToggleLike 切换当前用户对文章的点赞状态
func (h *Handler) ToggleLike(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	postID, ok := parsePostID(c)
	if !ok {
		return
	}
	outcome, err := h.LikeService.Toggle(userID, postID)
	if err != nil {
		respondPostError(c, err)
		return
	}
	response.Success(c, outcome)
}

// BatchLikeStats 批量获取点赞数与当前用户点赞状态
// ids 为空返回空对象；含非数字返回参数错误。匿名可访问，liked 恒为 false。
func (h *Handler) BatchLikeStats(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("ids"))
	if raw == "" {
		response.Success(c, gin.H{})
		return
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	seen := make(map[uint]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil || id == 0 {
			respondError(c, response.CodeBadRequest, "error.post_id_invalid", nil)
			return
		}
		if _, dup := seen[uint(id)]; dup {
			continue
		}
		seen[uint(id)] = struct{}{}
		ids = append(ids, uint(id))
	}

	stats, err := h.LikeService.BatchStats(optionalUserID(c), ids)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	result := make(map[string]interface{}, len(stats))
	for id, stat := range stats {
		result[strconv.FormatUint(uint64(id), 10)] = stat
	}
	response.Success(c, result)
}
