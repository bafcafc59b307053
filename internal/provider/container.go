package provider

import (
	"github.com/postways-next/internal/cache"
	"github.com/postways-next/internal/config"
	"github.com/postways-next/internal/logger"
	"github.com/postways-next/internal/models"
	"github.com/postways-next/internal/queue"
	"github.com/postways-next/internal/realtime"
	"github.com/postways-next/internal/repository"
	"github.com/postways-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Hub         *realtime.Hub

	// Repositories
	UserRepo  repository.UserRepository
	PostRepo  repository.PostRepository
	LikeRepo  repository.LikeRepository
	TokenRepo repository.TokenRepository

	// Services
	TokenService   *service.TokenService
	AccountService *service.AccountService
	PostService    *service.PostService
	LikeService    *service.LikeService
	EmailService   *service.EmailService
	ImageService   *service.ImageService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Hub:         realtime.NewHub(&cfg.Broadcast),
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.PostRepo = repository.NewPostRepository(db)
	c.LikeRepo = repository.NewLikeRepository(db)
	c.TokenRepo = repository.NewTokenRepository(db)
}

func (c *Container) initServices() {
	cfg := c.Config
	c.TokenService = service.NewTokenService(cfg, c.UserRepo, c.TokenRepo)
	c.AccountService = service.NewAccountService(cfg, c.UserRepo, c.TokenService, c.QueueClient)
	c.LikeService = service.NewLikeService(c.PostRepo, c.LikeRepo, c.Hub)
	c.PostService = service.NewPostService(c.PostRepo, c.LikeRepo, c.QueueClient)
	c.EmailService = service.NewEmailService(&cfg.Email, &cfg.Site)
	c.ImageService = service.NewImageService(&cfg.Upload, c.PostRepo)
}
