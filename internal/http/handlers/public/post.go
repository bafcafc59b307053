package public

import (
	"strconv"

	handlershared "github.com/postways-next/internal/http/handlers/shared"
	"github.com/postways-next/internal/http/response"
	"github.com/postways-next/internal/models"
	"github.com/postways-next/internal/service"

	"github.com/gin-gonic/gin"
)

// PostView 文章响应结构
type PostView struct {
	models.Post
	LikeCount int64 `json:"like_count"`
}

func parsePostID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "error.post_id_invalid", nil)
		return 0, false
	}
	return uint(id), true
}

// ListPosts 分页获取已发布文章
func (h *Handler) ListPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	posts, total, err := h.PostService.ListPublished(page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	totalPage := (total + int64(pageSize) - 1) / int64(pageSize)
	response.SuccessWithPage(c, posts, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// GetPost 获取文章详情，草稿仅作者与管理员可见
func (h *Handler) GetPost(c *gin.Context) {
	id, ok := parsePostID(c)
	if !ok {
		return
	}
	var viewer *models.User
	if userID := optionalUserID(c); userID != 0 {
		viewer, _ = h.UserRepo.GetByID(userID)
	}
	post, count, err := h.PostService.Get(id, viewer)
	if err != nil {
		respondPostError(c, err)
		return
	}
	response.Success(c, PostView{Post: *post, LikeCount: count})
}

// CreatePostRequest 创建文章请求
type CreatePostRequest struct {
	Title     string `form:"title" binding:"required"`
	Content   string `form:"content"`
	Published *bool  `form:"published"`
}

// CreatePost 创建文章，支持 multipart 附带配图
func (h *Handler) CreatePost(c *gin.Context) {
	author, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req CreatePostRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	imagePath := ""
	if file, err := c.FormFile("image"); err == nil && file != nil {
		path, err := h.ImageService.SaveUpload(file)
		if err != nil {
			respondPostError(c, err)
			return
		}
		imagePath = path
	}

	published := true
	if req.Published != nil {
		published = *req.Published
	}
	post, err := h.PostService.Create(author, service.CreatePostInput{
		Title:     req.Title,
		Content:   req.Content,
		Image:     imagePath,
		Published: published,
	})
	if err != nil {
		respondPostError(c, err)
		return
	}
	response.Success(c, post)
}

// UpdatePostRequest 更新文章请求
type UpdatePostRequest struct {
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	Published *bool   `json:"published"`
}

// UpdatePost 更新自己的文章
func (h *Handler) UpdatePost(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := parsePostID(c)
	if !ok {
		return
	}
	var req UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	post, err := h.PostService.Update(actor, id, service.UpdatePostInput{
		Title:     req.Title,
		Content:   req.Content,
		Published: req.Published,
	})
	if err != nil {
		respondPostError(c, err)
		return
	}
	response.Success(c, post)
}

// DeletePost 删除自己的文章
func (h *Handler) DeletePost(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := parsePostID(c)
	if !ok {
		return
	}
	if err := h.PostService.Delete(actor, id); err != nil {
		respondPostError(c, err)
		return
	}
	response.Success(c, nil)
}
