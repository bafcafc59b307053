package worker

import (
	"context"
	"errors"
	"time"

	"github.com/postways-next/internal/config"
	"github.com/postways-next/internal/logger"
	"github.com/postways-next/internal/queue"

	"github.com/hibiken/asynq"
)

const defaultTokenFlushInterval = time.Hour

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer

	flushInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	flushInterval := defaultTokenFlushInterval
	if cfg.FlushIntervalMinutes > 0 {
		flushInterval = time.Duration(cfg.FlushIntervalMinutes) * time.Minute
	}
	return &Service{
		name:          "worker",
		server:        server,
		mux:           mux,
		consumer:      consumer,
		flushInterval: flushInterval,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.TokenService != nil {
		go s.runTokenFlushLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runTokenFlushLoop 周期清理过期的在册 Token 记录
func (s *Service) runTokenFlushLoop(ctx context.Context) {
	runOnce := func() {
		deleted, err := s.consumer.TokenService.FlushExpired()
		if err != nil {
			logger.Warnw("worker_token_flush_failed", "error", err)
			return
		}
		if deleted > 0 {
			logger.Infow("worker_token_flush_done", "deleted", deleted)
		}
	}
	runOnce()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
