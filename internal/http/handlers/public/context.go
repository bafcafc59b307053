package public

import (
	handlershared "github.com/postways-next/internal/http/handlers/shared"
	"github.com/postways-next/internal/http/response"
	"github.com/postways-next/internal/models"

	"github.com/gin-gonic/gin"
)

func getUserID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUintWithKeys(c, "user_id", "error.user_id_invalid", "error.user_id_type_invalid")
}

// optionalUserID 读取可选身份，未登录返回 0
func optionalUserID(c *gin.Context) uint {
	if value, ok := c.Get("user_id"); ok {
		if id, ok := value.(uint); ok {
			return id
		}
	}
	return 0
}

// currentUser 加载当前登录用户，查不到视为凭证失效
func (h *Handler) currentUser(c *gin.Context) (*models.User, bool) {
	userID, ok := getUserID(c)
	if !ok {
		return nil, false
	}
	user, err := h.UserRepo.GetByID(userID)
	if err != nil || user == nil {
		respondError(c, response.CodeUnauthorized, "error.unauthorized", err)
		return nil, false
	}
	return user, true
}
