package service

import (
	"strings"

	"github.com/postways-next/internal/logger"
	"github.com/postways-next/internal/models"
	"github.com/postways-next/internal/queue"
	"github.com/postways-next/internal/repository"
)

// PostService 文章服务
type PostService struct {
	postRepo repository.PostRepository
	likeRepo repository.LikeRepository
	queue    *queue.Client
}

// NewPostService 创建文章服务
func NewPostService(postRepo repository.PostRepository, likeRepo repository.LikeRepository, queueClient *queue.Client) *PostService {
	return &PostService{
		postRepo: postRepo,
		likeRepo: likeRepo,
		queue:    queueClient,
	}
}

// CreatePostInput 创建文章入参
type CreatePostInput struct {
	Title     string
	Content   string
	Image     string
	Published bool
}

// Create 创建文章，带图片时异步生成缩略图
func (s *PostService) Create(author *models.User, input CreatePostInput) (*models.Post, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || len([]rune(title)) > 100 {
		return nil, ErrPostTitleInvalid
	}
	post := &models.Post{
		Title:     title,
		Content:   input.Content,
		AuthorID:  author.ID,
		Image:     input.Image,
		Published: input.Published,
	}
	if err := s.postRepo.Create(post); err != nil {
		return nil, err
	}
	if post.Image != "" {
		err := s.queue.EnqueuePostImageProcess(queue.PostImageProcessPayload{
			PostID:    post.ID,
			ImagePath: post.Image,
		})
		if err != nil {
			logger.Errorw("图片处理任务入队失败", "post_id", post.ID, "error", err)
		}
	}
	return post, nil
}

// ListPublished 分页获取已发布文章
func (s *PostService) ListPublished(page, pageSize int) ([]repository.PostWithCount, int64, error) {
	return s.postRepo.ListPublished(page, pageSize)
}

// Get 获取文章详情
// 草稿仅作者与管理员可见，其余请求返回无权限。
func (s *PostService) Get(id uint, viewer *models.User) (*models.Post, int64, error) {
	post, err := s.postRepo.GetByID(id)
	if err != nil {
		return nil, 0, err
	}
	if post == nil {
		return nil, 0, ErrPostNotFound
	}
	if !post.Published {
		if viewer == nil || (viewer.ID != post.AuthorID && !viewer.IsAdmin) {
			return nil, 0, ErrForbidden
		}
	}
	count, err := s.likeRepo.CountByPost(post.ID)
	if err != nil {
		return nil, 0, err
	}
	return post, count, nil
}

// UpdatePostInput 更新文章入参，nil 字段保持不变
type UpdatePostInput struct {
	Title     *string
	Content   *string
	Published *bool
}

// Update 更新自己的文章
func (s *PostService) Update(actor *models.User, id uint, input UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if post.AuthorID != actor.ID && !actor.IsAdmin {
		return nil, ErrForbidden
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" || len([]rune(title)) > 100 {
			return nil, ErrPostTitleInvalid
		}
		post.Title = title
	}
	if input.Content != nil {
		post.Content = *input.Content
	}
	if input.Published != nil {
		post.Published = *input.Published
	}
	if err := s.postRepo.Update(post); err != nil {
		return nil, err
	}
	return post, nil
}

// Delete 删除自己的文章及其点赞
func (s *PostService) Delete(actor *models.User, id uint) error {
	post, err := s.postRepo.GetByID(id)
	if err != nil {
		return err
	}
	if post == nil {
		return ErrPostNotFound
	}
	if post.AuthorID != actor.ID && !actor.IsAdmin {
		return ErrForbidden
	}
	return s.postRepo.Delete(id)
}
