package service

import (
	"context"

	"github.com/postways-next/internal/constants"
	"github.com/postways-next/internal/logger"
	"github.com/postways-next/internal/repository"
)

// LikeEvent 点赞变更事件，经广播器推送给订阅端
type LikeEvent struct {
	PostID  uint   `json:"post_id"`
	Action  string `json:"action"`
	Count   int64  `json:"count"`
	ActorID uint   `json:"-"`
}

// LikeBroadcaster 点赞事件广播接口
type LikeBroadcaster interface {
	PublishLike(ctx context.Context, event LikeEvent) error
}

// LikeService 点赞服务
type LikeService struct {
	postRepo    repository.PostRepository
	likeRepo    repository.LikeRepository
	broadcaster LikeBroadcaster
}

// NewLikeService 创建点赞服务
func NewLikeService(postRepo repository.PostRepository, likeRepo repository.LikeRepository, broadcaster LikeBroadcaster) *LikeService {
	return &LikeService{
		postRepo:    postRepo,
		likeRepo:    likeRepo,
		broadcaster: broadcaster,
	}
}

// ToggleOutcome 点赞切换结果
type ToggleOutcome struct {
	Created bool  `json:"liked"`
	Count   int64 `json:"count"`
}

// Toggle 切换用户对文章的点赞状态
// 未发布的文章对所有人（含作者）拒绝点赞。事务提交成功后才广播，
// 广播失败只记日志，不影响已落库的结果。
func (s *LikeService) Toggle(userID, postID uint) (*ToggleOutcome, error) {
	post, err := s.postRepo.GetByID(postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if !post.Published {
		return nil, ErrPostUnpublished
	}

	result, err := s.likeRepo.Toggle(userID, postID)
	if err != nil {
		return nil, err
	}

	action := constants.LikeResultRemoved
	if result.Created {
		action = constants.LikeResultCreated
	}
	if s.broadcaster != nil {
		event := LikeEvent{
			PostID:  postID,
			Action:  action,
			Count:   result.Count,
			ActorID: userID,
		}
		if err := s.broadcaster.PublishLike(context.Background(), event); err != nil {
			logger.Warnw("点赞事件广播失败", "post_id", postID, "user_id", userID, "error", err)
		}
	}
	return &ToggleOutcome{Created: result.Created, Count: result.Count}, nil
}

// BatchStats 批量获取点赞数与当前用户点赞状态
// userID 为 0 表示匿名请求。
func (s *LikeService) BatchStats(userID uint, postIDs []uint) (map[uint]*repository.LikeStats, error) {
	return s.likeRepo.BatchStats(userID, postIDs)
}
