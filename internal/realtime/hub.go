package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/postways-next/internal/cache"
	"github.com/postways-next/internal/config"
	"github.com/postways-next/internal/constants"
	"github.com/postways-next/internal/logger"
	"github.com/postways-next/internal/service"
)

// Message 推送给客户端的点赞事件
type Message struct {
	Type   string `json:"type"`
	PostID uint   `json:"post_id"`
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// envelope Redis 频道上的跨进程载荷，携带发起者用于回声抑制
type envelope struct {
	Topic   string  `json:"topic"`
	ActorID uint    `json:"actor_id"`
	Message Message `json:"message"`
}

// Hub 按主题管理 WebSocket 连接并分发事件
// 多进程部署时经 Redis 发布订阅桥接，单进程或未启用 Redis 时本地直发。
type Hub struct {
	cfg *config.BroadcastConfig

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// NewHub 创建广播中心
func NewHub(cfg *config.BroadcastConfig) *Hub {
	return &Hub{
		cfg:     cfg,
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) channel() string {
	if h.cfg != nil && h.cfg.Channel != "" {
		return cache.Prefix() + ":broadcast:" + h.cfg.Channel
	}
	return cache.Prefix() + ":broadcast:" + constants.TopicLikes
}

func (h *Hub) writeTimeout() time.Duration {
	if h.cfg != nil && h.cfg.WriteTimeoutSeconds > 0 {
		return time.Duration(h.cfg.WriteTimeoutSeconds) * time.Second
	}
	return 10 * time.Second
}

func (h *Hub) sendBuffer() int {
	if h.cfg != nil && h.cfg.SendBuffer > 0 {
		return h.cfg.SendBuffer
	}
	return 16
}

func (h *Hub) register(topic string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Client]struct{})
	}
	h.clients[topic][client] = struct{}{}
}

func (h *Hub) unregister(topic string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[topic]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.clients, topic)
		}
	}
}

// dispatch 向本进程订阅了该主题的连接投递事件
// 发起者自己的连接被跳过，由客户端本地乐观更新兜底。
func (h *Hub) dispatch(env *envelope) {
	payload, err := json.Marshal(env.Message)
	if err != nil {
		logger.Errorw("广播消息序列化失败", "topic", env.Topic, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[env.Topic] {
		if env.ActorID != 0 && client.userID == env.ActorID {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// 缓冲写满说明客户端消费过慢，断开让其重连
			go client.closeSlow()
		}
	}
}

// PublishLike 发布点赞事件
// Redis 可用时走发布订阅（本进程经订阅回路收到后再分发），
// 否则直接本地分发。
func (h *Hub) PublishLike(ctx context.Context, event service.LikeEvent) error {
	env := &envelope{
		Topic:   constants.TopicLikes,
		ActorID: event.ActorID,
		Message: Message{
			Type:   "like",
			PostID: event.PostID,
			Action: event.Action,
			Count:  event.Count,
		},
	}
	if !cache.Enabled() {
		h.dispatch(env)
		return nil
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return cache.Client().Publish(ctx, h.channel(), body).Err()
}

// Run 订阅 Redis 频道并持续分发，直到 ctx 取消
// Redis 未启用时无事可做，直接阻塞等待退出。
func (h *Hub) Run(ctx context.Context) {
	if !cache.Enabled() {
		<-ctx.Done()
		return
	}
	sub := cache.Client().Subscribe(ctx, h.channel())
	defer sub.Close()

	logger.Infow("广播订阅已启动", "channel", h.channel())
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warnw("广播消息解析失败", "error", err)
				continue
			}
			h.dispatch(&env)
		}
	}
}
