package router

import (
	"fmt"
	"strings"

	"github.com/postways-next/internal/cache"
	"github.com/postways-next/internal/config"
	publichandlers "github.com/postways-next/internal/http/handlers/public"
	"github.com/postways-next/internal/logger"
	"github.com/postways-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	handler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "pw"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		MessageKey:    "error.login_too_many",
	}
	recoveryRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:recovery", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		MessageKey:    "error.recovery_too_many",
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// 静态资源：上传图片与前端脚本
	uploadDir := cfg.Upload.Dir
	if strings.TrimSpace(uploadDir) == "" {
		uploadDir = "./uploads"
	}
	r.Static("/uploads", uploadDir)
	r.Static("/static", "./web/static")

	apiV1 := r.Group("/api/v1")
	{
		// 认证接口
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", handler.Register)
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("username")), handler.Login)
			auth.POST("/refresh", handler.Refresh)
			auth.POST("/verify", handler.VerifyToken)
			auth.POST("/logout", handler.Logout)
			auth.POST("/recovery", RateLimitMiddleware(redisClient, recoveryRule, KeyByIPAndJSONField("email")), handler.RequestRecovery)
			auth.POST("/reset-password", handler.ResetPassword)
			auth.POST("/verify-email", handler.VerifyEmailChange)
		}

		// 公开接口（身份可选）
		open := apiV1.Group("")
		open.Use(OptionalJWTAuthMiddleware(cfg.JWT.SecretKey, c.UserRepo))
		{
			open.GET("/posts", handler.ListPosts)
			open.GET("/posts/:id", handler.GetPost)
			open.GET("/likes/batch", handler.BatchLikeStats)
			open.GET("/ws/likes", handler.LikesWebSocket)
		}

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.UserRepo))
		user.Use(ActivityMiddleware(c.UserRepo))
		{
			user.GET("/me", handler.Me)
			user.PUT("/me/password", handler.ChangePassword)
			user.PUT("/me/username", handler.ChangeUsername)
			user.POST("/me/email/change", handler.InitiateEmailChange)
			user.DELETE("/me", handler.DeleteAccount)
			user.POST("/posts", handler.CreatePost)
			user.PUT("/posts/:id", handler.UpdatePost)
			user.DELETE("/posts/:id", handler.DeletePost)
			user.POST("/posts/:id/like", handler.ToggleLike)
		}
	}

	return r
}
