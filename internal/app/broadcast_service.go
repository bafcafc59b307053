package app

import (
	"context"
	"errors"

	"github.com/postways-next/internal/realtime"
)

// BroadcastService 实时广播分发服务
// 持有 Hub 的 Redis 订阅回路，跟随 API 服务一起启停。
type BroadcastService struct {
	hub *realtime.Hub
}

// NewBroadcastService 创建广播服务
func NewBroadcastService(hub *realtime.Hub) *BroadcastService {
	return &BroadcastService{hub: hub}
}

// Name 服务名称
func (s *BroadcastService) Name() string {
	return "broadcast"
}

// Start 启动服务
func (s *BroadcastService) Start(ctx context.Context) error {
	if s == nil || s.hub == nil {
		return errors.New("hub not initialized")
	}
	s.hub.Run(ctx)
	return nil
}

// Stop 停止服务
func (s *BroadcastService) Stop(ctx context.Context) error {
	return nil
}
