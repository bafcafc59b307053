package service

import (
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/postways-next/internal/config"
	"github.com/postways-next/internal/logger"
	"github.com/postways-next/internal/repository"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// ImageService 文章配图上传与处理服务
type ImageService struct {
	cfg      *config.UploadConfig
	postRepo repository.PostRepository
}

// NewImageService 创建图片服务
func NewImageService(cfg *config.UploadConfig, postRepo repository.PostRepository) *ImageService {
	return &ImageService{cfg: cfg, postRepo: postRepo}
}

func (s *ImageService) uploadDir() string {
	if s.cfg != nil && strings.TrimSpace(s.cfg.Dir) != "" {
		return s.cfg.Dir
	}
	return "uploads"
}

func (s *ImageService) allowedExt(ext string) bool {
	allowed := []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	if s.cfg != nil && len(s.cfg.AllowedTypes) > 0 {
		allowed = s.cfg.AllowedTypes
	}
	for _, a := range allowed {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}

// SaveUpload 保存上传的图片文件，返回相对路径
func (s *ImageService) SaveUpload(file *multipart.FileHeader) (string, error) {
	if file == nil {
		return "", ErrUploadInvalid
	}
	if s.cfg != nil && s.cfg.MaxSize > 0 && file.Size > s.cfg.MaxSize {
		return "", ErrUploadInvalid
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !s.allowedExt(ext) {
		return "", ErrUploadInvalid
	}

	dir := s.uploadDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + ext
	dst := filepath.Join(dir, name)

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", err
	}
	return name, nil
}

// Process 压缩配图并生成缩略图，更新文章的缩略图路径
// 在队列工作进程中执行，失败不影响文章本身。
func (s *ImageService) Process(postID uint, imagePath string) error {
	fullPath := filepath.Join(s.uploadDir(), imagePath)
	img, err := imaging.Open(fullPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("打开图片失败: %w", err)
	}

	maxW, maxH := 1920, 1080
	if s.cfg != nil {
		if s.cfg.MaxWidth > 0 {
			maxW = s.cfg.MaxWidth
		}
		if s.cfg.MaxHeight > 0 {
			maxH = s.cfg.MaxHeight
		}
	}
	bounds := img.Bounds()
	if bounds.Dx() > maxW || bounds.Dy() > maxH {
		img = imaging.Fit(img, maxW, maxH, imaging.Lanczos)
		if err := s.save(img, fullPath); err != nil {
			return fmt.Errorf("回写压缩图失败: %w", err)
		}
	}

	thumbW, thumbH := 400, 300
	if s.cfg != nil {
		if s.cfg.ThumbWidth > 0 {
			thumbW = s.cfg.ThumbWidth
		}
		if s.cfg.ThumbHeight > 0 {
			thumbH = s.cfg.ThumbHeight
		}
	}
	thumb := imaging.Fill(img, thumbW, thumbH, imaging.Center, imaging.Lanczos)
	ext := filepath.Ext(imagePath)
	thumbName := strings.TrimSuffix(imagePath, ext) + "_thumb" + ext
	if err := s.save(thumb, filepath.Join(s.uploadDir(), thumbName)); err != nil {
		return fmt.Errorf("保存缩略图失败: %w", err)
	}

	post, err := s.postRepo.GetByID(postID)
	if err != nil {
		return err
	}
	if post == nil {
		logger.Warnw("图片处理完成但文章已删除", "post_id", postID)
		return nil
	}
	post.Thumbnail = thumbName
	return s.postRepo.Update(post)
}

func (s *ImageService) save(img image.Image, path string) error {
	quality := 85
	if s.cfg != nil && s.cfg.JPEGQuality > 0 {
		quality = s.cfg.JPEGQuality
	}
	return imaging.Save(img, path, imaging.JPEGQuality(quality))
}
